package refdocs

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/hyperifyio/reportbuilder/internal/runctx"
)

// Document is a user-supplied reference file and its extracted text.
type Document struct {
	Path    string
	Content string
}

var (
	errUnsupported = errors.New("unsupported file type")
	errEmpty       = errors.New("no text content")
)

// Load reads the listed files, then every regular file in folder, each path
// at most once. Files that cannot be read or hold no text are logged to the
// run and skipped.
func Load(run *runctx.Run, paths []string, folder string) []Document {
	var out []Document
	loaded := make(map[string]bool)
	try := func(p string) {
		if loaded[p] {
			run.Logf("Skipping duplicate reference doc path: %s", p)
			return
		}
		doc, err := LoadFile(p)
		if err != nil {
			run.Logf("Skipping reference document %s: %v", p, err)
			return
		}
		loaded[p] = true
		run.Logf("Loaded reference doc: %s (%d chars)", p, utf8.RuneCountInString(doc.Content))
		out = append(out, doc)
	}
	for _, p := range paths {
		if p = strings.TrimSpace(p); p != "" {
			try(p)
		}
	}
	if folder != "" {
		entries, err := os.ReadDir(folder)
		if err != nil {
			run.Logf("Error: reference docs folder %s: %v", folder, err)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.Type().IsRegular() {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, n := range names {
			try(filepath.Join(folder, n))
		}
	}
	if len(out) == 0 && (len(paths) > 0 || folder != "") {
		run.Logf("Warning: reference doc flags set, but no content loaded")
	}
	return out
}

// LoadFile extracts the text of one .txt, .pdf or .docx file.
func LoadFile(path string) (Document, error) {
	st, err := os.Stat(path)
	if err != nil {
		return Document{}, err
	}
	if !st.Mode().IsRegular() {
		return Document{}, fmt.Errorf("%s is not a regular file", path)
	}
	var text string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		b, err := os.ReadFile(path)
		if err != nil {
			return Document{}, err
		}
		text = DecodeText(b)
	case ".pdf":
		text, err = pdfText(path)
	case ".docx":
		text, err = docxText(path)
	default:
		return Document{}, errUnsupported
	}
	if err != nil {
		return Document{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Document{}, errEmpty
	}
	return Document{Path: path, Content: text}, nil
}

// DecodeText reads b as UTF-8 when valid, otherwise as Windows-1252, and
// falls back to Latin-1 when Windows-1252 leaves undefined bytes.
func DecodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	if s, err := charmap.Windows1252.NewDecoder().Bytes(b); err == nil && !bytes.ContainsRune(s, utf8.RuneError) {
		return string(s)
	}
	s, _ := charmap.ISO8859_1.NewDecoder().Bytes(b)
	return string(s)
}

// pdfText returns the plain text of every page. The parser panics on some
// malformed files; that is reported as an error.
func pdfText(path string) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("parse pdf: %v", p)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		if f != nil {
			_ = f.Close()
		}
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()
	rd, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rd); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

// docxText returns the non-empty paragraphs of word/document.xml, one per
// line.
func docxText(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()
	var body *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			body = f
			break
		}
	}
	if body == nil {
		return "", errors.New("docx has no word/document.xml")
	}
	rc, err := body.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	var paras []string
	var cur strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				cur.WriteByte('\t')
			case "br", "cr":
				cur.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if p := cur.String(); strings.TrimSpace(p) != "" {
					paras = append(paras, p)
				}
				cur.Reset()
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	return strings.Join(paras, "\n"), nil
}
