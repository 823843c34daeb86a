package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PageMeta is stored next to each cached page body and carries the
// validators needed for conditional revalidation.
type PageMeta struct {
	URL          string    `json:"url"`
	ContentType  string    `json:"content_type"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	SavedAt      time.Time `json:"saved_at"`
}

// Pages is an on-disk page cache laid out as <sha256(url)>.meta.json and
// <sha256(url)>.body. There is no eviction besides PurgeOlderThan.
type Pages struct {
	Dir string
}

func (p *Pages) ensureDir() error {
	if p == nil || strings.TrimSpace(p.Dir) == "" {
		return errors.New("page cache dir not configured")
	}
	return os.MkdirAll(p.Dir, 0o755)
}

func key(url string) string {
	h := sha256.Sum256([]byte(url))
	return hex.EncodeToString(h[:])
}

func (p *Pages) metaPath(url string) string { return filepath.Join(p.Dir, key(url)+".meta.json") }
func (p *Pages) bodyPath(url string) string { return filepath.Join(p.Dir, key(url)+".body") }

// Meta returns the stored metadata for url.
func (p *Pages) Meta(url string) (*PageMeta, error) {
	if err := p.ensureDir(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p.metaPath(url))
	if err != nil {
		return nil, err
	}
	var m PageMeta
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode page meta: %w", err)
	}
	return &m, nil
}

// Body returns the stored page body for url.
func (p *Pages) Body(url string) ([]byte, error) {
	if err := p.ensureDir(); err != nil {
		return nil, err
	}
	return os.ReadFile(p.bodyPath(url))
}

// Save writes body then metadata; metadata goes through a rename so a reader
// never observes meta without its body.
func (p *Pages) Save(url, contentType, etag, lastModified string, body []byte) error {
	if err := p.ensureDir(); err != nil {
		return err
	}
	if err := os.WriteFile(p.bodyPath(url), body, 0o644); err != nil {
		return fmt.Errorf("write page body: %w", err)
	}
	b, err := json.Marshal(PageMeta{
		URL:          url,
		ContentType:  contentType,
		ETag:         etag,
		LastModified: lastModified,
		SavedAt:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode page meta: %w", err)
	}
	tmp := p.metaPath(url) + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write page meta: %w", err)
	}
	return os.Rename(tmp, p.metaPath(url))
}

// PurgeOlderThan deletes entries saved more than maxAge ago and returns how
// many were removed. Unreadable metadata is skipped.
func (p *Pages) PurgeOlderThan(maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	if err := p.ensureDir(); err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	removed := 0
	err := filepath.WalkDir(p.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".meta.json") {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var m PageMeta
		if json.Unmarshal(b, &m) != nil || now.Sub(m.SavedAt) <= maxAge {
			return nil
		}
		removed++
		_ = os.Remove(path)
		_ = os.Remove(strings.TrimSuffix(path, ".meta.json") + ".body")
		return nil
	})
	return removed, err
}

// Clear removes every cached page and leaves an empty directory behind.
func (p *Pages) Clear() error {
	if p == nil || strings.TrimSpace(p.Dir) == "" {
		return errors.New("page cache dir not configured")
	}
	if err := os.RemoveAll(p.Dir); err != nil {
		return err
	}
	return os.MkdirAll(p.Dir, 0o755)
}
