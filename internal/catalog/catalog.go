// Package catalog loads the launcher's read-only game catalog.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/starford/playtrace/internal/notes"
)

// Item is one launchable game.
type Item struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	Src   string `json:"src" yaml:"src"`
}

type file struct {
	Games []Item `json:"games" yaml:"games"`
}

// Catalog is an ordered, read-only list of items backed by a file.
type Catalog struct {
	path string

	mu    sync.RWMutex
	items []Item
}

// Load reads the catalog at path. An empty path or a missing file yields an
// empty catalog.
func Load(path string) (*Catalog, error) {
	c := &Catalog{path: path}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// FromItems builds an in-memory catalog.
func FromItems(items []Item) *Catalog {
	return &Catalog{items: append([]Item(nil), items...)}
}

// Path returns the backing file path, if any.
func (c *Catalog) Path() string {
	return c.path
}

// Reload re-reads the backing file. On error the previous items are kept.
func (c *Catalog) Reload() error {
	if c.path == "" {
		return nil
	}
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		c.set(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("catalog: read %s: %w", c.path, err)
	}
	items, err := Parse(filepath.Ext(c.path), data)
	if err != nil {
		return fmt.Errorf("catalog: parse %s: %w", c.path, err)
	}
	c.set(items)
	return nil
}

// Parse decodes catalog data. ext selects YAML (.yaml, .yml) or JSON with
// comments (.json, .jsonc). The document is either a list of items or an
// object with a "games" list. Items without an id are skipped.
func Parse(ext string, data []byte) ([]Item, error) {
	var (
		list []Item
		doc  file
	)
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &list); err != nil {
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return nil, err
			}
			list = doc.Games
		}
	case ".json", ".jsonc":
		clean := jsonc.ToJSON(data)
		if err := json.Unmarshal(clean, &list); err != nil {
			if err := json.Unmarshal(clean, &doc); err != nil {
				return nil, err
			}
			list = doc.Games
		}
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", ext)
	}

	out := make([]Item, 0, len(list))
	seen := make(map[string]bool, len(list))
	for _, it := range list {
		it.ID = strings.TrimSpace(it.ID)
		if it.ID == "" || seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	return out, nil
}

func (c *Catalog) set(items []Item) {
	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
}

// Items returns a copy of the items in catalog order.
func (c *Catalog) Items() []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Item{}, c.items...)
}

// Lookup finds an item by id.
func (c *Catalog) Lookup(id string) (Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, it := range c.items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// ByTitle finds the first item with the given title.
func (c *Catalog) ByTitle(title string) (Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, it := range c.items {
		if it.Title == title {
			return it, true
		}
	}
	return Item{}, false
}

// Entities exposes the catalog to the note registry.
func (c *Catalog) Entities() []notes.Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]notes.Entity, len(c.items))
	for i, it := range c.items {
		out[i] = notes.Entity{Key: it.ID, Title: it.Title}
	}
	return out
}
