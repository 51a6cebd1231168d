package prompt

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemplate(t *testing.T, workdir, name, content string) {
	t.Helper()
	dir := filepath.Join(workdir, "templates")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		msg      string
		wantRule string
	}{
		{"expected ';' before '}' token", "Every statement in C/C++ must end with a semicolon."},
		{"'cout' was not declared in this scope", "Standard library features require proper headers."},
		{"'total' was not declared in this scope", "Variables must be declared before use."},
		{"use of undeclared identifier 'count'", "Variables must be declared before use."},
		{"invalid conversion from 'int' to 'int*' [-fpermissive]", "Pointers must store addresses, not values."},
		{"expected ')' before '{' token", "Conditional expressions must be enclosed in parentheses."},
		{"redefinition of 'int x'", "A variable can only be declared once per scope."},
	}
	for _, tt := range tests {
		e, ok := Match(tt.msg)
		if !ok {
			t.Errorf("%q: no match", tt.msg)
			continue
		}
		if e.Rule != tt.wantRule {
			t.Errorf("%q: rule = %q, want %q", tt.msg, e.Rule, tt.wantRule)
		}
	}

	if _, ok := Match("Segmentation fault"); ok {
		t.Error("runtime crash should not match a compiler exemplar")
	}
}

func TestCatalogEntriesMatchTheirOwnError(t *testing.T) {
	for _, e := range Catalog {
		got, ok := Match(e.Error)
		if !ok {
			t.Errorf("%q does not match any entry", e.Error)
			continue
		}
		if got.Error != e.Error {
			t.Errorf("%q matched %q first", e.Error, got.Error)
		}
	}
}

func TestGenerateDataset(t *testing.T) {
	a := GenerateDataset(50, 7)
	b := GenerateDataset(50, 7)
	if len(a) != 50 {
		t.Fatalf("expected 50 samples, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs for the same seed", i)
		}
		if !strings.HasPrefix(a[i].Output, "🟥 Error Overview\nError Message: "+a[i].Input) {
			t.Errorf("sample %d output does not start with its error: %q", i, a[i].Output[:40])
		}
	}

	var buf bytes.Buffer
	if err := WriteDataset(&buf, a[:2]); err != nil {
		t.Fatalf("write: %v", err)
	}
	var decoded []Sample
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(decoded) != 2 {
		t.Errorf("decoded %d samples", len(decoded))
	}
}

func TestSaveDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "data.json")
	if err := SaveDataset(path, GenerateDataset(3, 1)); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded []Sample
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("saved file is not JSON: %v", err)
	}
	if len(decoded) != 3 {
		t.Errorf("decoded %d samples", len(decoded))
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the dataset file, found %d entries", len(entries))
	}
}
