// Package plan describes subscription tiers and their limits.
package plan

import (
	"fmt"
	"sort"
)

// Plan is one subscription tier.
type Plan struct {
	Slug         string
	Name         string
	PDFsPerMonth int // 0 = unlimited
	PagesPerPDF  int
}

// AllowsPages reports whether a document with n pages fits the plan.
func (p Plan) AllowsPages(n int) bool { return n <= p.PagesPerPDF }

// AllowsUpload reports whether another upload fits after used uploads this month.
func (p Plan) AllowsUpload(used int) bool {
	return p.PDFsPerMonth == 0 || used < p.PDFsPerMonth
}

// Catalog resolves plan slugs. Built from configuration.
type Catalog struct {
	plans       map[string]Plan
	defaultSlug string
}

// NewCatalog creates a catalog; defaultSlug must name one of plans.
func NewCatalog(plans []Plan, defaultSlug string) (*Catalog, error) {
	m := make(map[string]Plan, len(plans))
	for _, p := range plans {
		if p.Slug == "" {
			return nil, fmt.Errorf("plan slug is required")
		}
		m[p.Slug] = p
	}
	if _, ok := m[defaultSlug]; !ok {
		return nil, fmt.Errorf("default plan %q not in catalog", defaultSlug)
	}
	return &Catalog{plans: m, defaultSlug: defaultSlug}, nil
}

// Default returns the plan given to new users.
func (c *Catalog) Default() Plan { return c.plans[c.defaultSlug] }

// Lookup returns the plan for slug, falling back to the default for unknown slugs.
func (c *Catalog) Lookup(slug string) Plan {
	if p, ok := c.plans[slug]; ok {
		return p
	}
	return c.Default()
}

// All returns plans sorted by slug.
func (c *Catalog) All() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}
