// Package filex contains small filename helpers used when deriving object
// storage keys from user-supplied file names.
package filex

import (
	"path"
	"strings"
)

// Ext returns the extension of name without the leading dot, lowercased.
// Returns "" when the name has no extension ("README") or a bare trailing
// dot ("archive.").
func Ext(name string) string {
	ext := path.Ext(name)
	if ext == "" || ext == "." {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// BaseName strips any directory components from a user-supplied file name.
// Browsers normally send bare names, but the metadata record should never
// contain path separators regardless of the client.
func BaseName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return path.Base(name)
}
