package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"

	"github.com/fpang/cert-teacher/internal/imagetype"
)

// ErrCanceled is returned when the user dismisses the picker.
var ErrCanceled = errors.New("no file selected")

// imagePatterns lists the picker's filename patterns.
func imagePatterns() []string {
	patterns := make([]string, 0, 2*len(imagetype.SupportedExtensions))
	for ext := range imagetype.SupportedExtensions {
		patterns = append(patterns, "*"+ext, "*"+strings.ToUpper(ext))
	}
	sort.Strings(patterns)
	return patterns
}

// PickImage opens the native file dialog restricted to image types.
func PickImage() (string, error) {
	selected, err := zenity.SelectFile(
		zenity.Title("Select an exam question image"),
		zenity.FileFilters{
			{Name: "Images", Patterns: imagePatterns()},
		},
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return "", ErrCanceled
		}
		return "", fmt.Errorf("file picker: %w", err)
	}
	return selected, nil
}

// PromptForImage asks for an image path on in. It is the fallback when no
// dialog can be shown, e.g. over SSH.
func PromptForImage(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Image file: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", ErrCanceled
	}
	return line, nil
}

// SelectImage tries the native picker first and falls back to a prompt.
func SelectImage(in io.Reader, out io.Writer) (string, error) {
	path, err := PickImage()
	if err == nil || errors.Is(err, ErrCanceled) {
		return path, err
	}
	log.Debug().Err(err).Msg("File dialog unavailable, prompting instead")
	return PromptForImage(in, out)
}
