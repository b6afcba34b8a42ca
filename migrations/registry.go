// Package migrations exposes the embedded relay schema, per dialect, for
// registration with a persistence client.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	relay "github.com/goliatone/go-relay"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const (
	defaultSourceLabel = "go-relay"
	rootPath           = "data/sql/migrations"
	sqliteSubdir       = "sqlite"
)

// Source is one dialect's migration filesystem.
type Source struct {
	Dialect string
	Path    string
	FS      fs.FS
}

// RegisterFunc receives one dialect's filesystem. Implementations typically
// call the persistence client's RegisterSQLMigrations.
type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

// Registration describes what Register handed out: which dialects were
// validated and the sources behind them.
type Registration struct {
	SourceLabel       string
	ValidationTargets []string
	Sources           []Source
}

type Option func(*Registration)

func WithSourceLabel(label string) Option {
	return func(r *Registration) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			r.SourceLabel = trimmed
		}
	}
}

// WithValidationTargets restricts registration to the named dialects.
func WithValidationTargets(targets ...string) Option {
	return func(r *Registration) {
		if normalized := normalizeDialects(targets); len(normalized) > 0 {
			r.ValidationTargets = normalized
		}
	}
}

// WithSources replaces the embedded sources, e.g. with a deployment-local
// schema overlay.
func WithSources(sources ...Source) Option {
	return func(r *Registration) {
		replacement := make([]Source, 0, len(sources))
		for _, source := range sources {
			dialect := strings.TrimSpace(strings.ToLower(source.Dialect))
			if dialect == "" || source.FS == nil {
				continue
			}
			replacement = append(replacement, Source{Dialect: dialect, Path: source.Path, FS: source.FS})
		}
		if len(replacement) > 0 {
			r.Sources = replacement
		}
	}
}

// Sources returns the embedded migration filesystems, postgres at the root
// and sqlite in its subtree, after checking each actually ships *.up.sql
// files.
func Sources() ([]Source, error) {
	base, err := fs.Sub(relay.GetMigrationsFS(), rootPath)
	if err != nil {
		return nil, fmt.Errorf("migrations: embedded root %s: %w", rootPath, err)
	}
	sqliteFS, err := fs.Sub(base, sqliteSubdir)
	if err != nil {
		return nil, fmt.Errorf("migrations: embedded sqlite subtree: %w", err)
	}

	sources := []Source{
		{Dialect: DialectPostgres, Path: rootPath, FS: base},
		{Dialect: DialectSQLite, Path: rootPath + "/" + sqliteSubdir, FS: sqliteFS},
	}
	for _, source := range sources {
		matches, globErr := fs.Glob(source.FS, "*.up.sql")
		if globErr != nil {
			return nil, fmt.Errorf("migrations: glob %s %s: %w", source.Dialect, source.Path, globErr)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("migrations: %s source %q has no *.up.sql files", source.Dialect, source.Path)
		}
	}
	return sources, nil
}

// Register hands each targeted dialect's filesystem to registerFn. All
// dialects are targeted unless WithValidationTargets narrows the set.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel:       defaultSourceLabel,
		ValidationTargets: []string{DialectPostgres, DialectSQLite},
	}

	sources, err := Sources()
	if err != nil {
		return reg, err
	}
	reg.Sources = sources

	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}

	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}
	targets := normalizeDialects(reg.ValidationTargets)
	if len(targets) == 0 {
		return reg, fmt.Errorf("migrations: validation targets are required")
	}

	for _, source := range reg.Sources {
		if !slices.Contains(targets, source.Dialect) {
			continue
		}
		if err := registerFn(ctx, source.Dialect, reg.SourceLabel, source.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", source.Dialect, source.Path, err)
		}
	}
	return reg, nil
}

func normalizeDialects(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(strings.ToLower(value))
		if trimmed == "" || slices.Contains(out, trimmed) {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
