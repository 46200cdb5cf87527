package web

import "embed"

// Templates embeds the document and mail templates.
//
//go:embed templates/**/*.html
var Templates embed.FS

// Static embeds assets inlined into rendered documents.
//
//go:embed static/**/*
var Static embed.FS
