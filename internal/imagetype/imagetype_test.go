package imagetype

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func encodeGIF(t *testing.T) []byte {
	t.Helper()
	img := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode gif: %v", err)
	}
	return buf.Bytes()
}

func TestDetect_DeclaredContentType(t *testing.T) {
	got, err := Detect("image/jpeg; charset=binary", nil, "q.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "image/jpeg" {
		t.Errorf("declared type should win, got %s", got)
	}
}

func TestDetect_SniffsWhenContentTypeGeneric(t *testing.T) {
	got, err := Detect("binary/octet-stream", encodePNG(t), "scan.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "image/png" {
		t.Errorf("expected sniffed image/png, got %s", got)
	}

	got, err = Detect("", encodeGIF(t), "scan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "image/gif" {
		t.Errorf("expected sniffed image/gif, got %s", got)
	}
}

func TestDetect_FallsBackToExtension(t *testing.T) {
	got, err := Detect("application/octet-stream", []byte("not an image"), "dea01.JPEG")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "image/jpeg" {
		t.Errorf("expected image/jpeg from extension, got %s", got)
	}
}

func TestDetect_Unsupported(t *testing.T) {
	_, err := Detect("image/heic", []byte("ftypheic"), "photo.heic")
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestForName(t *testing.T) {
	tests := map[string]bool{
		"a.png":     true,
		"a.JPG":     true,
		"a.webp":    true,
		"a.pdf":     false,
		"notes.txt": false,
		"noext":     false,
	}
	for name, want := range tests {
		if _, got := ForName(name); got != want {
			t.Errorf("ForName(%q) ok = %v, want %v", name, got, want)
		}
	}
}
