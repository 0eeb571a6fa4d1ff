// Package content provides the read-only word and phrase catalog that feeds
// pronunciation requests.
package content

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wordsprout/wordsprout/internal/cache"
	"github.com/wordsprout/wordsprout/internal/speech"
)

//go:embed data/words.yml
var defaultCatalog []byte

// ErrEmptyCatalog is returned when a catalog has no usable entries.
var ErrEmptyCatalog = errors.New("catalog has no entries")

// Entry is one word or phrase.
type Entry struct {
	Text     string          `yaml:"text"`
	Language speech.Language `yaml:"language"`
	Asset    string          `yaml:"asset,omitempty"`
	Category string          `yaml:"category,omitempty"`
}

// Catalog is an ordered list of entries.
type Catalog struct {
	Words []Entry `yaml:"words"`
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file. An empty path loads the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a YAML catalog. Languages are normalized and
// entries without text are dropped.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	words := c.Words[:0]
	for i, e := range c.Words {
		e.Text = strings.TrimSpace(e.Text)
		if e.Text == "" {
			continue
		}
		if e.Language == "" {
			e.Language = speech.English
		}
		lang, err := speech.ParseLanguage(string(e.Language))
		if err != nil {
			return nil, fmt.Errorf("entry %d (%q): %w", i+1, e.Text, err)
		}
		e.Language = lang
		e.Category = strings.ToLower(strings.TrimSpace(e.Category))
		words = append(words, e)
	}
	if len(words) == 0 {
		return nil, ErrEmptyCatalog
	}
	c.Words = words
	return &c, nil
}

// Find returns the first entry whose text matches, ignoring case.
func (c *Catalog) Find(text string) (Entry, bool) {
	text = strings.TrimSpace(text)
	for _, e := range c.Words {
		if strings.EqualFold(e.Text, text) {
			return e, true
		}
	}
	return Entry{}, false
}

// Texts returns the entry texts in catalog order.
func (c *Catalog) Texts() []string {
	out := make([]string, len(c.Words))
	for i, e := range c.Words {
		out[i] = e.Text
	}
	return out
}

// Categories returns the distinct categories, sorted.
func (c *Catalog) Categories() []string {
	seen := make(map[string]struct{})
	for _, e := range c.Words {
		if e.Category != "" {
			seen[e.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// InCategory returns the entries of one category.
func (c *Catalog) InCategory(category string) []Entry {
	category = strings.ToLower(category)
	var out []Entry
	for _, e := range c.Words {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

// PreloadItems lists every entry with an asset, deduplicated by key.
func (c *Catalog) PreloadItems() []cache.PreloadItem {
	seen := make(map[string]struct{})
	var items []cache.PreloadItem
	for _, e := range c.Words {
		if e.Asset == "" {
			continue
		}
		if _, ok := seen[e.Asset]; ok {
			continue
		}
		seen[e.Asset] = struct{}{}
		items = append(items, cache.PreloadItem{Key: e.Asset, Category: e.Category})
	}
	return items
}
