package batch

import "sync"

// Token is a one-shot cooperative cancellation flag shared by every worker of
// a batch and by the poll loop inside the remote client. It transitions
// false→true exactly once and is never reset.
type Token struct {
	once sync.Once
	done chan struct{}
}

// NewToken returns an unset token.
func NewToken() *Token {
	return &Token{done: make(chan struct{})}
}

// Cancel sets the token. Safe to call from any goroutine, any number of times.
func (t *Token) Cancel() {
	t.once.Do(func() { close(t.done) })
}

// Cancelled reports whether the token has been set.
func (t *Token) Cancelled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the token is set, so blocking waits can
// select on it rather than polling the flag.
func (t *Token) Done() <-chan struct{} {
	return t.done
}
