// Package web holds the browser pages served at / and /webhook-test.
package web

import "embed"

//go:embed *.html
var Pages embed.FS
