// Package static embeds the drawing page served at the web root.
package static

import (
	"embed"
	"io/fs"
)

//go:embed index.html app.js
var files embed.FS

// FS returns the embedded assets.
func FS() fs.FS {
	return files
}

// ReadFile reads an embedded asset.
func ReadFile(name string) ([]byte, error) {
	return files.ReadFile(name)
}
