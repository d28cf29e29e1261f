package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/tools/go/packages"
)

func TestStorageImportForbidden(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"surveycore/internal/core", true},
		{"surveycore/internal/infra/persistence/sqlite", true},
		{"surveycore/internal/blob", true},
		{"github.com/jackc/pgx/v5/stdlib", true},
		{"modernc.org/sqlite", true},
		{"database/sql", true},
		{"database/sql/driver", true},
		{"surveycore/internal/corex", false},
		{"surveycore/internal/filter", false},
		{"surveycore/pkg/domain", false},
		{"math", false},
	}
	for _, c := range cases {
		if got := StorageImportForbidden(c.in); got != c.want {
			t.Fatalf("StorageImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestDomainImportForbidden(t *testing.T) {
	if !DomainImportForbidden("surveycore/pkg/domain") || !DomainImportForbidden("example.com/pkg/domain@v1") {
		t.Fatalf("expected domain paths to match")
	}
	if DomainImportForbidden("surveycore/pkg/domainx") {
		t.Fatalf("unexpected match")
	}
}

func writeGo(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "a.go", "package tmp\nimport (\n\t\"fmt\"\n\t\"database/sql\"\n)\nvar _ = fmt.Sprint\nvar _ sql.DB\n")
	writeGo(t, dir, "a_test.go", "package tmp\nimport \"modernc.org/sqlite\"\n")
	writeGo(t, dir, "notes.txt", "import \"database/sql\"")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeGo(t, filepath.Join(dir, "sub"), "b.go", "package sub\nimport \"github.com/jackc/pgx/v5\"\n")

	viols, err := directImportViolations(dir, StorageImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "database/sql (in a.go)" {
		t.Fatalf("unexpected violations %v", viols)
	}
	AssertNoDirectImports(t, dir, func(string) bool { return false }, "none")

	writeGo(t, dir, "broken.go", "package tmp\nimport (")
	if _, err := directImportViolations(dir, StorageImportForbidden); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := directImportViolations(filepath.Join(dir, "missing"), StorageImportForbidden); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestTransitiveDependencyViolationsWalksGraph(t *testing.T) {
	old := loadPackages
	defer func() { loadPackages = old }()

	sqlPkg := &packages.Package{PkgPath: "database/sql", Imports: map[string]*packages.Package{}}
	core := &packages.Package{PkgPath: "surveycore/internal/core", Imports: map[string]*packages.Package{"database/sql": sqlPkg}}
	root := &packages.Package{PkgPath: "surveycore/internal/report", Imports: map[string]*packages.Package{
		"surveycore/internal/core": core,
		"database/sql":             sqlPkg,
	}}
	loadPackages = func(string) ([]*packages.Package, error) { return []*packages.Package{root}, nil }
	viols, err := transitiveDependencyViolations(".", StorageImportForbidden)
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if fmt.Sprint(viols) != "[database/sql surveycore/internal/core]" {
		t.Fatalf("unexpected violations %v", viols)
	}

	root.Errors = []packages.Error{{Msg: "no Go files"}}
	if _, err := transitiveDependencyViolations(".", StorageImportForbidden); err == nil {
		t.Fatalf("expected load error to surface")
	}

	loadPackages = func(string) ([]*packages.Package, error) { return nil, errors.New("boom") }
	if _, err := transitiveDependencyViolations(".", StorageImportForbidden); err == nil {
		t.Fatalf("expected loader error")
	}
	loadPackages = func(string) ([]*packages.Package, error) { return nil, nil }
	if _, err := transitiveDependencyViolations(".", StorageImportForbidden); err == nil {
		t.Fatalf("expected empty match error")
	}
}

type recordingFatal struct{ msg string }

func (r *recordingFatal) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func TestFailHelpers(t *testing.T) {
	var r recordingFatal
	failIfTransitiveViolations(&r, "pure", nil)
	failIfDirectViolations(&r, "pure", nil)
	if r.msg != "" {
		t.Fatalf("no violations must not fail: %q", r.msg)
	}
	failIfTransitiveViolations(&r, "pure", []string{"database/sql"})
	if r.msg == "" {
		t.Fatalf("expected failure message")
	}
}
