// Package static embeds the upload page served at the service root.
package static

import (
	"embed"
	"io/fs"
)

//go:embed index.html
var pageFS embed.FS

// IndexHTML returns the upload page.
func IndexHTML() []byte {
	data, err := fs.ReadFile(pageFS, "index.html")
	if err != nil {
		panic(err)
	}
	return data
}
