package web

import "embed"

// Templates embeds the printable HTML documents.
//
//go:embed templates/*.html
var Templates embed.FS
