package main

import (
	"embed"
	"io/fs"
)

//go:embed frontend/*.html frontend/*.css frontend/*.js
var frontendFiles embed.FS

// getFrontendFS returns the visualizer assets rooted at "frontend".
func getFrontendFS() fs.FS {
	sub, err := fs.Sub(frontendFiles, "frontend")
	if err != nil {
		// the pattern above guarantees the directory exists
		panic(err)
	}
	return sub
}
