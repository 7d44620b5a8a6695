// Package imagetype decides which media type an uploaded exam image is sent
// to the model as. Only formats Anthropic models accept inline are
// supported: JPEG, PNG, GIF and WebP.
package imagetype

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/webp"
)

// SupportedExtensions maps accepted upload extensions to media types.
var SupportedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// formatMediaTypes maps image.DecodeConfig format names to media types.
var formatMediaTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// ErrUnsupported is returned when no supported media type can be derived.
var ErrUnsupported = errors.New("unsupported image type")

// ForName returns the media type for a key or filename by extension.
func ForName(name string) (string, bool) {
	mt, ok := SupportedExtensions[strings.ToLower(filepath.Ext(name))]
	return mt, ok
}

// isSupportedMediaType reports whether mt is one of the accepted types.
func isSupportedMediaType(mt string) bool {
	for _, v := range formatMediaTypes {
		if v == mt {
			return true
		}
	}
	return false
}

// Detect derives the media type of an object. The declared content type
// wins when it names a supported image type; otherwise the bytes are
// sniffed, and the key's extension is the last resort. Uploads without an
// explicit content type arrive as binary/octet-stream, which is why the
// sniff step exists.
func Detect(contentType string, data []byte, key string) (string, error) {
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			mt = strings.ToLower(mt)
			if isSupportedMediaType(mt) {
				return mt, nil
			}
		}
	}

	if len(data) > 0 {
		if _, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			if mt, ok := formatMediaTypes[format]; ok {
				return mt, nil
			}
		}
	}

	if mt, ok := ForName(key); ok {
		return mt, nil
	}
	return "", fmt.Errorf("%w: content type %q, key %q", ErrUnsupported, contentType, key)
}
