package web

import (
	"embed"
)

// staticFiles holds the embedded status page assets.
//
//go:embed static/*
var staticFiles embed.FS
