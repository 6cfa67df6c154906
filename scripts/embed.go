// Package scripts embeds the bundled post-processing hooks.
package scripts

import "embed"

// FS holds hooks/*.risor. Select one with "builtin:<name>".
//
//go:embed hooks/*.risor
var FS embed.FS
