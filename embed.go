package docsgate

import "embed"

// EmbeddedAssets contains the stylesheet shipped with the binary, served
// under /assets/.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
