// Package encode turns local media files into the data URIs the GenVR API
// accepts for file-reference parameters.
package encode

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// Extensions not registered in the platform mime table but common for
// generation inputs.
var fallbackMIME = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".gif":  "image/gif",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
}

// FileToDataURI reads the file at path and returns a
// data:<mime>;base64,<payload> URI.
func FileToDataURI(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("encode: read %s: %w", path, err)
	}
	return fmt.Sprintf("data:%s;base64,%s", MIMEForPath(path), base64.StdEncoding.EncodeToString(data)), nil
}

// MIMEForPath guesses a MIME type from the file extension, defaulting to
// application/octet-stream.
func MIMEForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		// Strip optional parameters such as charset.
		if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
			mimeType = mimeType[:idx]
		}
		return mimeType
	}
	if mimeType, ok := fallbackMIME[ext]; ok {
		return mimeType
	}
	return "application/octet-stream"
}
