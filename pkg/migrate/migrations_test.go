package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMigrationsDirValidates(t *testing.T) {
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("migrations dir failed validation: %v", err)
	}
}

func TestGeoEchoesMigrationPresent(t *testing.T) {
	entries, err := os.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	found := false
	for _, e := range entries {
		if strings.Contains(e.Name(), "create_geo_echoes") {
			found = true
			b, err := os.ReadFile(filepath.Join("migrations", e.Name()))
			if err != nil {
				t.Fatalf("read migration: %v", err)
			}
			sql := string(b)
			for _, fragment := range []string{"geo_echoes", "arweave_tx_id", "idx_geo_echoes_upload_candidates"} {
				if !strings.Contains(sql, fragment) {
					t.Fatalf("migration missing %q", fragment)
				}
			}
		}
	}
	if !found {
		t.Fatal("create_geo_echoes migration not found")
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()

	path, err := CreateSQLMigration(dir, "Add Echo Flag!")
	if err != nil {
		t.Fatalf("CreateSQLMigration returned error: %v", err)
	}
	if !strings.HasSuffix(path, "_add_echo_flag.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("generated migration failed validation: %v", err)
	}
}
