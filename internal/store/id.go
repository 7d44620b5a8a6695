package store

import (
	"path"
	"strings"
)

// RecordID derives the record id from an object key by removing the final
// extension only: "dea01.png" -> "dea01", "a.b.png" -> "a.b". A dot in a
// directory component is not an extension, and neither is the leading dot
// of a name like ".png".
func RecordID(key string) string {
	ext := path.Ext(key)
	if ext == "" || strings.TrimLeft(path.Base(key), ".") == strings.TrimPrefix(ext, ".") {
		return key
	}
	return strings.TrimSuffix(key, ext)
}
