// Package locales embeds the default interface translations.
package locales

import "embed"

//go:embed *.json
var FS embed.FS
