// Package dbtest opens throwaway in-memory SQLite databases with the
// repository schema applied, for package tests.
package dbtest

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

var seq atomic.Int64

// Open returns a fresh in-memory database with all migrations from the
// repository's sql/ directory applied. Shared cache keeps the database
// alive across the pool's connections; a single open connection keeps
// concurrent test writers from tripping SQLite table locks.
func Open(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:dbtest_%d?mode=memory&cache=shared", seq.Add(1))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	for _, f := range migrationFiles(t) {
		ddl, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read migration %s: %v", f, err)
		}
		if _, err := db.Exec(string(ddl)); err != nil {
			t.Fatalf("apply migration %s: %v", f, err)
		}
	}
	return db
}

func migrationFiles(t *testing.T) []string {
	t.Helper()
	_, self, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot locate repository root")
	}
	root := filepath.Dir(filepath.Dir(filepath.Dir(self))) // internal/dbtest -> repo root
	entries, err := os.ReadDir(filepath.Join(root, "sql"))
	if err != nil {
		t.Fatalf("read sql dir: %v", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, filepath.Join(root, "sql", e.Name()))
		}
	}
	sort.Strings(files)
	return files
}
