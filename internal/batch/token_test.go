package batch

import "testing"

func TestTokenOneShot(t *testing.T) {
	token := NewToken()
	if token.Cancelled() {
		t.Fatalf("new token must be unset")
	}
	select {
	case <-token.Done():
		t.Fatalf("done channel closed before cancel")
	default:
	}

	token.Cancel()
	token.Cancel() // idempotent

	if !token.Cancelled() {
		t.Fatalf("token should be set after cancel")
	}
	select {
	case <-token.Done():
	default:
		t.Fatalf("done channel should be closed after cancel")
	}
}
