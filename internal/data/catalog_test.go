package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/survivalskills/internal/model"
)

func TestDefaultCatalog_CoversEverySlot(t *testing.T) {
	c := DefaultCatalog()

	assert.Equal(t, model.TreeCount*model.TierCount*2, c.Len())
	for _, tree := range model.Trees() {
		for _, tier := range model.Tiers() {
			slot := c.Slot(tree, tier)
			assert.Len(t, slot, 2, "%s/%s", tree, tier)
			for _, d := range slot {
				assert.Equal(t, tree, d.Tree)
				assert.Equal(t, tier, d.Tier)
			}
		}
	}
}

func TestDefaultCatalog_CostsAreTierDetermined(t *testing.T) {
	c := DefaultCatalog()
	want := map[model.Tier]int32{
		model.Tier1:        5,
		model.Tier2:        10,
		model.Tier3:        15,
		model.Tier4:        20,
		model.TierUltimate: 25,
	}

	for _, d := range c.All() {
		assert.Equal(t, want[d.Tier], d.Cost, "skill %s", d.ID)
	}
}

func TestDefaultCatalog_DamageCapabilitiesPresent(t *testing.T) {
	c := DefaultCatalog()

	tags := map[model.EffectTag]bool{}
	for _, d := range c.Tree(model.TreeCombat) {
		tags[d.Effect] = true
	}

	for _, tag := range []model.EffectTag{model.EffectStacking, model.EffectCritical, model.EffectExecute, model.EffectArmorPen} {
		assert.True(t, tags[tag], "combat tree must carry %s", tag)
	}
}

func TestCatalog_Lookups(t *testing.T) {
	c := DefaultCatalog()

	d, ok := c.Skill("combat_precision")
	require.True(t, ok)
	assert.Equal(t, model.TreeCombat, d.Tree)
	assert.Equal(t, model.Tier2, d.Tier)
	assert.Equal(t, model.EffectCritical, d.Effect)

	_, ok = c.Skill("no_such_skill")
	assert.False(t, ok)

	assert.Nil(t, c.Slot(model.Tree(42), model.Tier1))
	assert.Nil(t, c.Tree(model.Tree(42)))

	tree := c.Tree(model.TreeSurvival)
	require.Len(t, tree, 10)
	for i := 1; i < len(tree); i++ {
		assert.LessOrEqual(t, tree[i-1].Tier, tree[i].Tier, "tree ordered by tier")
	}
}

func TestCatalog_ReturnedSlicesAreCopies(t *testing.T) {
	c := DefaultCatalog()

	all := c.All()
	all[0].ID = "mutated"

	_, ok := c.Skill("mutated")
	assert.False(t, ok)
	assert.NotEqual(t, model.SkillID("mutated"), c.All()[0].ID)
}

func TestNewCatalog_Validation(t *testing.T) {
	costs := model.DefaultTierCosts()

	tests := []struct {
		name string
		defs []model.SkillDescriptor
	}{
		{"empty id", []model.SkillDescriptor{{Tree: model.TreeCombat}}},
		{"bad tree", []model.SkillDescriptor{{ID: "a", Tree: model.Tree(7)}}},
		{"bad tier", []model.SkillDescriptor{{ID: "a", Tier: model.Tier(7)}}},
		{"duplicate", []model.SkillDescriptor{{ID: "a"}, {ID: "a"}}},
		{"active without cooldown", []model.SkillDescriptor{{ID: "a", Kind: model.KindActive}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCatalog(tc.defs, costs)
			assert.Error(t, err)
		})
	}
}

func TestBuiltinCatalog_CustomCosts(t *testing.T) {
	c, err := BuiltinCatalog(model.TierCosts{1, 2, 3, 4, 5})
	require.NoError(t, err)

	d, ok := c.Skill("teamwork_commander")
	require.True(t, ok)
	assert.Equal(t, int32(5), d.Cost)
	assert.Equal(t, model.TierCosts{1, 2, 3, 4, 5}, c.Costs())
}

func TestLoadCatalog_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "skills.yaml")
	content := `
skills:
  - id: strike
    name: Strike
    tree: combat
    tier: "tier_1"
    kind: passive
    effect: stacking
    magnitude: 0.05
  - id: blast
    name: Blast
    tree: combat
    tier: ultimate
    kind: active
    effect: triggered
    cooldown: 30
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c, err := LoadCatalog(path, model.DefaultTierCosts())
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	d, ok := c.Skill("blast")
	require.True(t, ok)
	assert.Equal(t, model.TierUltimate, d.Tier)
	assert.Equal(t, model.KindActive, d.Kind)
	assert.Equal(t, int64(30), d.Cooldown)
	assert.Equal(t, int32(25), d.Cost)
}

func TestLoadCatalog_Errors(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"), model.DefaultTierCosts())
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("skills:\n  - id: x\n    tree: magic\n"), 0o644))
	_, err = LoadCatalog(path, model.DefaultTierCosts())
	assert.Error(t, err)
}
