// Package web holds the dashboard's HTML templates and static assets.
package web

import "embed"

// Templates embeds layouts, partials and pages.
//
//go:embed templates/**/*.html
var Templates embed.FS

// Static embeds stylesheets and other assets served under /static/.
//
//go:embed static/**/*
var Static embed.FS
