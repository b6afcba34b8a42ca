package relay

import (
	"embed"
	"io/fs"
)

// migrationsFS contains the relay SQL migration tree, including dialect
// alternatives under data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

// GetMigrationsFS returns the embedded relay migration tree.
func GetMigrationsFS() fs.FS {
	return migrationsFS
}
