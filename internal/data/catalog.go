package data

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/survivalskills/internal/model"
)

// Catalog is the immutable registry of skill descriptors.
// Built once at startup; safe for concurrent reads without locking.
type Catalog struct {
	byID   map[model.SkillID]model.SkillDescriptor
	bySlot [model.TreeCount][model.TierCount][]model.SkillDescriptor
	all    []model.SkillDescriptor
	costs  model.TierCosts
}

// NewCatalog validates defs and builds the lookup indexes.
// Descriptor Cost is always overwritten from costs.
func NewCatalog(defs []model.SkillDescriptor, costs model.TierCosts) (*Catalog, error) {
	c := &Catalog{
		byID:  make(map[model.SkillID]model.SkillDescriptor, len(defs)),
		all:   make([]model.SkillDescriptor, 0, len(defs)),
		costs: costs,
	}

	for i, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("skill #%d: empty id", i)
		}
		if !d.Tree.Valid() {
			return nil, fmt.Errorf("skill %q: invalid tree %d", d.ID, d.Tree)
		}
		if !d.Tier.Valid() {
			return nil, fmt.Errorf("skill %q: invalid tier %d", d.ID, d.Tier)
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("skill %q: duplicate id", d.ID)
		}
		if d.Kind.IsActivatable() && d.Cooldown <= 0 {
			return nil, fmt.Errorf("skill %q: %s skill requires a positive cooldown", d.ID, d.Kind)
		}

		d.Cost = costs.Cost(d.Tier)
		c.byID[d.ID] = d
		c.bySlot[d.Tree][d.Tier] = append(c.bySlot[d.Tree][d.Tier], d)
		c.all = append(c.all, d)
	}

	return c, nil
}

// DefaultCatalog returns the built-in catalog with default tier costs.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(builtinDescriptors(), model.DefaultTierCosts())
	if err != nil {
		// builtin table is covered by tests
		panic("builtin skill catalog: " + err.Error())
	}
	return c
}

// BuiltinCatalog builds the built-in table with custom tier costs.
func BuiltinCatalog(costs model.TierCosts) (*Catalog, error) {
	return NewCatalog(builtinDescriptors(), costs)
}

// catalogFile is the YAML layout of an external catalog.
type catalogFile struct {
	Skills []model.SkillDescriptor `yaml:"skills"`
}

// LoadCatalog reads descriptors from a YAML file.
func LoadCatalog(path string, costs model.TierCosts) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}

	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}

	c, err := NewCatalog(f.Skills, costs)
	if err != nil {
		return nil, fmt.Errorf("validating catalog %s: %w", path, err)
	}

	slog.Info("skill catalog loaded", "path", path, "skills", c.Len())
	return c, nil
}

// Skill returns the descriptor for id.
func (c *Catalog) Skill(id model.SkillID) (model.SkillDescriptor, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// Slot returns the candidate skills for a (tree, tier) slot.
// Returns nil for an unknown slot.
func (c *Catalog) Slot(tree model.Tree, tier model.Tier) []model.SkillDescriptor {
	if !tree.Valid() || !tier.Valid() {
		return nil
	}
	return append([]model.SkillDescriptor(nil), c.bySlot[tree][tier]...)
}

// Tree returns every skill of a tree ordered by tier.
func (c *Catalog) Tree(tree model.Tree) []model.SkillDescriptor {
	if !tree.Valid() {
		return nil
	}
	var out []model.SkillDescriptor
	for _, tier := range model.Tiers() {
		out = append(out, c.bySlot[tree][tier]...)
	}
	return out
}

// All returns every descriptor in definition order.
func (c *Catalog) All() []model.SkillDescriptor {
	return append([]model.SkillDescriptor(nil), c.all...)
}

// Len returns the number of skills.
func (c *Catalog) Len() int {
	return len(c.all)
}

// Costs returns the tier cost table the catalog was built with.
func (c *Catalog) Costs() model.TierCosts {
	return c.costs
}
