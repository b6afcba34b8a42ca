package migrations

import (
	"context"
	"io/fs"
	"testing"
	"testing/fstest"
)

func TestSources_ReturnsPostgresAndSQLite(t *testing.T) {
	sources, err := Sources()
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}

	var postgresFound bool
	var sqliteFound bool
	for _, source := range sources {
		matches, globErr := fs.Glob(source.FS, "*.up.sql")
		if globErr != nil {
			t.Fatalf("glob %s: %v", source.Dialect, globErr)
		}
		if len(matches) == 0 {
			t.Fatalf("expected %s migration files, got none", source.Dialect)
		}
		switch source.Dialect {
		case DialectPostgres:
			postgresFound = true
		case DialectSQLite:
			sqliteFound = true
		}
	}

	if !postgresFound {
		t.Fatalf("expected postgres source")
	}
	if !sqliteFound {
		t.Fatalf("expected sqlite source")
	}
}

func TestRegister_UsesValidationTargets(t *testing.T) {
	var calls []string
	reg, err := Register(context.Background(), func(_ context.Context, dialect string, label string, _ fs.FS) error {
		if label != "go-relay" {
			t.Fatalf("unexpected source label: %s", label)
		}
		calls = append(calls, dialect)
		return nil
	}, WithValidationTargets(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if len(calls) != 1 || calls[0] != DialectSQLite {
		t.Fatalf("expected single sqlite registration, got %v", calls)
	}
	if len(reg.Sources) != 2 {
		t.Fatalf("expected full source set in registration, got %d", len(reg.Sources))
	}
}

func TestRegister_RequiresRegisterFunc(t *testing.T) {
	if _, err := Register(context.Background(), nil); err == nil {
		t.Fatalf("expected nil register function error")
	}
}

func TestRegister_WithSourcesOverride(t *testing.T) {
	overlay := fstest.MapFS{
		"0001_custom.up.sql":   {Data: []byte("CREATE TABLE custom ();")},
		"0001_custom.down.sql": {Data: []byte("DROP TABLE custom;")},
	}

	var seen []string
	_, err := Register(context.Background(), func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		matches, globErr := fs.Glob(fsys, "*.up.sql")
		if globErr != nil {
			return globErr
		}
		if len(matches) != 1 {
			t.Fatalf("expected overlay migration, got %v", matches)
		}
		seen = append(seen, dialect)
		return nil
	},
		WithSources(Source{Dialect: DialectSQLite, Path: "overlay", FS: overlay}),
		WithValidationTargets(DialectSQLite),
		WithSourceLabel("relay-overlay"),
	)
	if err != nil {
		t.Fatalf("register with overlay: %v", err)
	}
	if len(seen) != 1 || seen[0] != DialectSQLite {
		t.Fatalf("expected overlay registration, got %v", seen)
	}
}
