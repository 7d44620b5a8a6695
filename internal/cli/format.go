// Package cli holds helpers shared by the cert-cli subcommands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// FormatElapsed formats a duration for progress lines: "850ms", "12.3s",
// or M:SS past a minute.
func FormatElapsed(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		total := int(d.Seconds())
		return fmt.Sprintf("%d:%02d", total/60, total%60)
	}
}

// PrintJSON writes v as indented JSON. Japanese text is kept readable
// rather than \u-escaped.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
