package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type doc struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

func TestSave_OverwritesWholeDocument(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if err := s.Save("a.json", doc{Name: "first", Items: []string{"x", "y", "z"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save("a.json", doc{Name: "second"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	var got doc
	if err := s.Load("a.json", &got); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Name != "second" || len(got.Items) != 0 {
		t.Errorf("expected second document only, got %+v", got)
	}

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected no leftover temp files, got %d entries", len(entries))
	}
}

func TestSave_PrettyPrintedUTF8(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save("n.json", doc{Name: "阿里巴巴 <&>"}); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(s.Path("n.json"))
	if err != nil {
		t.Fatal(err)
	}
	text := string(raw)
	if !strings.Contains(text, "阿里巴巴 <&>") {
		t.Errorf("expected unescaped text, got %s", text)
	}
	if !strings.Contains(text, "\n  \"name\"") {
		t.Errorf("expected 2-space indentation, got %s", text)
	}
}

func TestLoad_Missing(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	var got doc
	err = s.Load("missing.json", &got)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if s.Exists("missing.json") {
		t.Error("expected Exists to be false")
	}
}

func TestLoad_Corrupt(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir(), "bad.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	var got doc
	err = s.Load("bad.json", &got)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestSave_UnwritableDir(t *testing.T) {
	s := &Store{dir: filepath.Join(t.TempDir(), "does", "not", "exist")}
	if err := s.Save("a.json", doc{}); err == nil {
		t.Fatal("expected error writing into a missing directory")
	}
}
