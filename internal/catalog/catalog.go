// Package catalog loads the static list of voice conversion models and renders
// it as a category grouped menu.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/digkill/TGVoiceBot/internal/models"
)

const (
	HeaderPrefix = "cat_"
	ModelPrefix  = "voice_"
)

// DefaultCategoryOrder is the menu order; categories not listed are not shown.
var DefaultCategoryOrder = []string{"voice_actor", "character", "actor", "celebritie", "singer"}

var categoryLabels = map[string]string{
	"voice_actor": "🎙 Voice actors",
	"character":   "🧸 Characters",
	"actor":       "🎬 Actors",
	"celebritie":  "⭐️ Celebrities",
	"singer":      "🎤 Singers",
}

// Catalog is an immutable, ordered set of catalog entries.
type Catalog struct {
	order   []string
	entries map[string]models.CatalogEntry
}

// MenuItem is one button of the model menu. Header items only label a
// category and cannot be selected.
type MenuItem struct {
	Label  string
	Data   string
	Header bool
	Entry  models.CatalogEntry
}

// New builds a catalog from entries, keeping their order. Later duplicates
// replace earlier ones in place.
func New(entries []models.CatalogEntry) *Catalog {
	c := &Catalog{entries: make(map[string]models.CatalogEntry, len(entries))}
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		if _, ok := c.entries[e.ID]; !ok {
			c.order = append(c.order, e.ID)
		}
		c.entries[e.ID] = e
	}
	return c
}

// Load reads the catalog file. A missing or malformed file is logged and
// yields an empty catalog, so lookups simply miss.
func Load(path string, log *slog.Logger) *Catalog {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Error("read catalog", "path", path, "err", err)
		return New(nil)
	}

	var entries []models.CatalogEntry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		entries, err = ParseTOML(data)
	default:
		entries, err = ParseJSON(bytes.NewReader(data))
	}
	if err != nil {
		log.Error("parse catalog", "path", path, "err", err)
		return New(nil)
	}

	c := New(entries)
	log.Info("catalog loaded", "path", path, "models", c.Len())
	return c
}

// ParseJSON decodes the {"<id>": {name, category, url, pitch, type}} mapping,
// preserving the order of keys in the file.
func ParseJSON(r io.Reader) ([]models.CatalogEntry, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read catalog start: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("catalog must be a JSON object")
	}

	var entries []models.CatalogEntry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read catalog key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected catalog key %v", tok)
		}
		var entry models.CatalogEntry
		if err := dec.Decode(&entry); err != nil {
			return nil, fmt.Errorf("decode catalog entry %q: %w", key, err)
		}
		entry.ID = key
		entries = append(entries, entry)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("read catalog end: %w", err)
	}
	return entries, nil
}

// ParseTOML decodes a file of [[model]] tables, each carrying its own id.
func ParseTOML(data []byte) ([]models.CatalogEntry, error) {
	var doc struct {
		Model []models.CatalogEntry `toml:"model"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode toml catalog: %w", err)
	}
	for i, e := range doc.Model {
		if e.ID == "" {
			return nil, fmt.Errorf("model #%d has no id", i+1)
		}
	}
	return doc.Model, nil
}

func (c *Catalog) Get(id string) (models.CatalogEntry, bool) {
	e, ok := c.entries[id]
	return e, ok
}

func (c *Catalog) Len() int {
	return len(c.order)
}

// Entries returns all entries in file order.
func (c *Catalog) Entries() []models.CatalogEntry {
	out := make([]models.CatalogEntry, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entries[id])
	}
	return out
}

// ListByCategory groups entries by category in the given order. Each
// non-empty category starts with a header item carrying its model count.
func (c *Catalog) ListByCategory(order []string) []MenuItem {
	grouped := make(map[string][]models.CatalogEntry)
	for _, id := range c.order {
		e := c.entries[id]
		grouped[e.Category] = append(grouped[e.Category], e)
	}

	var items []MenuItem
	for _, category := range order {
		entries := grouped[category]
		if len(entries) == 0 {
			continue
		}
		items = append(items, MenuItem{
			Label:  fmt.Sprintf("%s (%d)", CategoryLabel(category), len(entries)),
			Data:   HeaderPrefix + category,
			Header: true,
		})
		for _, e := range entries {
			items = append(items, MenuItem{
				Label: e.Name,
				Data:  ModelPrefix + e.ID,
				Entry: e,
			})
		}
	}
	return items
}

// Layout arranges menu items into keyboard rows: a header alone on its row,
// then its models two per row.
func Layout(items []MenuItem) [][]MenuItem {
	var rows [][]MenuItem
	for _, item := range items {
		switch {
		case item.Header:
			rows = append(rows, []MenuItem{item})
		case len(rows) == 0 || rows[len(rows)-1][0].Header || len(rows[len(rows)-1]) == 2:
			rows = append(rows, []MenuItem{item})
		default:
			rows[len(rows)-1] = append(rows[len(rows)-1], item)
		}
	}
	return rows
}

func CategoryLabel(category string) string {
	if label, ok := categoryLabels[category]; ok {
		return label
	}
	return category
}
