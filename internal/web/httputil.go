package web

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"
)

// msgOperationFailed is the only detail end users see for server-side
// failures. The cause goes to the log.
const msgOperationFailed = "operation failed"

// safeFilenameRegex allows letters and digits in any script (with their
// combining marks), dots, hyphens, underscores, spaces, and parentheses.
// The first character must be a letter or digit.
var safeFilenameRegex = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N}\p{M}._ ()-]{0,254}$`)

func validateFilename(name string) bool {
	if !utf8.ValidString(name) {
		return false
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return false
	}
	return safeFilenameRegex.MatchString(name)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func httpError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
