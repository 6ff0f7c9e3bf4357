// Package migrations содержит SQL миграции goose для схемы сервиса
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
