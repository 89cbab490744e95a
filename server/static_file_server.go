package server

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var staticFiles embed.FS

// FileServerHandler serves the embedded stylesheet and assets under /static/.
func FileServerHandler() http.Handler {
	return http.StripPrefix("/static/", http.FileServer(http.FS(StaticFilesFS())))
}

func StaticFilesFS() fs.FS {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic("Failed to create sub filesystem: " + err.Error())
	}

	return subFS
}
