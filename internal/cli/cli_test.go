package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fpang/cert-teacher/internal/store"
)

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{850 * time.Millisecond, "850ms"},
		{12300 * time.Millisecond, "12.3s"},
		{75 * time.Second, "1:15"},
	}
	for _, tt := range tests {
		if got := FormatElapsed(tt.in); got != tt.want {
			t.Errorf("FormatElapsed(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrintJSON_KeepsJapanese(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintJSON(&buf, store.QuestionRecord{ID: "q", JapaneseQuestion: "問題 <A>"}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, `"japanese_question": "問題 <A>"`) {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestValidateImageFile(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "q.PNG")
	if err := os.WriteFile(img, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("text"), 0o644); err != nil {
		t.Fatal(err)
	}

	path, mediaType, err := ValidateImageFile(img)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != img || mediaType != "image/png" {
		t.Errorf("got %s %s", path, mediaType)
	}

	if _, _, err := ValidateImageFile(txt); !errors.Is(err, ErrNotImage) {
		t.Errorf("expected ErrNotImage, got %v", err)
	}
	if _, _, err := ValidateImageFile(dir); err == nil {
		t.Error("expected error for directory")
	}
	if _, _, err := ValidateImageFile(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPromptForImage(t *testing.T) {
	var out bytes.Buffer
	got, err := PromptForImage(strings.NewReader("  ./exam.png \n"), &out)
	if err != nil || got != "./exam.png" {
		t.Fatalf("got %q, %v", got, err)
	}
	if !strings.Contains(out.String(), "Image file") {
		t.Errorf("expected prompt, got %q", out.String())
	}

	if _, err := PromptForImage(strings.NewReader("\n"), &out); !errors.Is(err, ErrCanceled) {
		t.Errorf("expected ErrCanceled, got %v", err)
	}
}
