package refdocs

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hyperifyio/reportbuilder/internal/llm"
	"github.com/hyperifyio/reportbuilder/internal/runctx"
)

func newRun(t *testing.T) *runctx.Run {
	t.Helper()
	r, err := runctx.New(t.TempDir(), "refs", time.Now(), llm.ModelConfig{Model: "m"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func write(t *testing.T, dir, name string, b []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, b, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func writeDocx(t *testing.T, dir, name string, documentXML string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDecodeText_Windows1252(t *testing.T) {
	// "café “quoted” – ok" in Windows-1252
	in := []byte("caf\xe9 \x93quoted\x94 \x96 ok")
	if got, want := DecodeText(in), "café “quoted” – ok"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got := DecodeText([]byte("plain ütf-8")); got != "plain ütf-8" {
		t.Fatalf("utf-8 passthrough: %q", got)
	}
}

func TestLoadFile_Docx(t *testing.T) {
	dir := t.TempDir()
	xmlBody := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>First paragraph</w:t></w:r><w:r><w:t xml:space="preserve"> continues.</w:t></w:r></w:p>
<w:p></w:p>
<w:p><w:r><w:t>Second</w:t><w:tab/><w:t>tabbed</w:t></w:r></w:p>
</w:body></w:document>`
	p := writeDocx(t, dir, "notes.docx", xmlBody)
	doc, err := LoadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if want := "First paragraph continues.\nSecond\ttabbed"; doc.Content != want {
		t.Fatalf("content=%q, want %q", doc.Content, want)
	}
}

func TestLoadFile_Rejects(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"unsupported": write(t, dir, "image.png", []byte("not text")),
		"empty":       write(t, dir, "blank.txt", []byte("  \n\t ")),
		"broken pdf":  write(t, dir, "broken.pdf", []byte("%PDF-1.4 garbage")),
		"missing":     filepath.Join(dir, "nope.txt"),
	}
	for name, p := range cases {
		if _, err := LoadFile(p); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoad_PathsThenFolderWithoutDuplicates(t *testing.T) {
	dir := t.TempDir()
	a := write(t, dir, "a.txt", []byte("  alpha notes  "))
	write(t, dir, "b.txt", []byte("bravo notes"))
	write(t, dir, "skip.bin", []byte("binary"))
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	run := newRun(t)
	docs := Load(run, []string{a, " ", a}, dir)
	want := []Document{
		{Path: a, Content: "alpha notes"},
		{Path: filepath.Join(dir, "b.txt"), Content: "bravo notes"},
	}
	if diff := cmp.Diff(want, docs); diff != "" {
		t.Fatalf("documents mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_NothingRequested(t *testing.T) {
	if docs := Load(nil, nil, ""); docs != nil {
		t.Fatalf("expected nil, got %v", docs)
	}
}
