// Package prompts serves the premium prompt collection from an embedded YAML file.
package prompts

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/repository"
)

//go:embed catalog.yaml
var embedded []byte

var _ repository.PromptCatalog = (*Catalog)(nil)

type Catalog struct {
	items  []model.Prompt
	bySlug map[string]int
}

// Load parses the embedded collection.
func Load() (*Catalog, error) { return Parse(embedded) }

// Parse builds a catalog from YAML. Slugs are lower-cased and must be unique.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Prompts []model.Prompt `yaml:"prompts"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse prompt catalog: %w", err)
	}
	c := &Catalog{bySlug: make(map[string]int, len(doc.Prompts))}
	for _, p := range doc.Prompts {
		p.Slug = strings.ToLower(strings.TrimSpace(p.Slug))
		if p.Slug == "" || strings.TrimSpace(p.Body) == "" {
			return nil, fmt.Errorf("prompt catalog: entry %q needs slug and body", p.Title)
		}
		if _, dup := c.bySlug[p.Slug]; dup {
			return nil, fmt.Errorf("prompt catalog: duplicate slug %q", p.Slug)
		}
		p.Body = strings.TrimSpace(p.Body)
		c.items = append(c.items, p)
		c.bySlug[p.Slug] = len(c.items) - 1
	}
	sort.SliceStable(c.items, func(i, j int) bool {
		if c.items[i].Category != c.items[j].Category {
			return c.items[i].Category < c.items[j].Category
		}
		return c.items[i].Slug < c.items[j].Slug
	})
	for i, p := range c.items {
		c.bySlug[p.Slug] = i
	}
	return c, nil
}

func (c *Catalog) List() []model.Prompt {
	out := make([]model.Prompt, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Catalog) Get(slug string) (model.Prompt, bool) {
	i, ok := c.bySlug[strings.ToLower(strings.TrimSpace(slug))]
	if !ok {
		return model.Prompt{}, false
	}
	return c.items[i], true
}
