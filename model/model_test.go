package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Table_Relation(t *testing.T) {
	tree := &Table{
		Name:       "tree",
		PrimaryKey: []string{"id"},
	}
	fruit := &Table{
		Name:        "fruit",
		PrimaryKey:  []string{"id"},
		ForeignKeys: map[string]string{"tree": "tree"},
	}
	profile := &Table{
		Name:        "profile",
		PrimaryKey:  []string{"id"},
		ForeignKeys: map[string]string{"user": "user"},
		Unique:      map[string]struct{}{"user": {}},
	}
	user := &Table{
		Name:       "user",
		PrimaryKey: []string{"id"},
	}
	stone := &Table{Name: "stone", PrimaryKey: []string{"id"}}

	t.Run("parent", func(t *testing.T) {
		rel, ok := fruit.Relation(tree)
		assert.True(t, ok)
		assert.Equal(t, Relation{Kind: RelationParent, Column: "tree"}, rel)
	})

	t.Run("child", func(t *testing.T) {
		rel, ok := tree.Relation(fruit)
		assert.True(t, ok)
		assert.Equal(t, Relation{Kind: RelationChild, Column: "tree"}, rel)
	})

	t.Run("unique_foreign_key", func(t *testing.T) {
		rel, ok := profile.Relation(user)
		assert.True(t, ok)
		assert.True(t, rel.Unique)
		assert.Equal(t, RelationParent, rel.Kind)

		rel, ok = user.Relation(profile)
		assert.True(t, ok)
		assert.True(t, rel.Unique)
		assert.Equal(t, RelationChild, rel.Kind)
	})

	t.Run("reverse_keys", func(t *testing.T) {
		category := &Table{
			Name:       "category",
			PrimaryKey: []string{"id"},
			ReverseKeys: map[string]map[string]string{
				"article": {"category": "category"},
			},
		}
		article := &Table{Name: "article", PrimaryKey: []string{"id"}}
		rel, ok := category.Relation(article)
		assert.True(t, ok)
		assert.Equal(t, Relation{Kind: RelationChild, Column: "category"}, rel)
	})

	t.Run("none", func(t *testing.T) {
		_, ok := fruit.Relation(stone)
		assert.False(t, ok)
	})
}

func Test_Table_Simple(t *testing.T) {
	simple := &Table{Name: "fruit", PrimaryKey: []string{"id"}}
	composite := &Table{Name: "order_item", PrimaryKey: []string{"order_id", "item_id"}}
	empty := &Table{Name: "misc"}

	assert.True(t, simple.Simple())
	assert.Equal(t, "id", simple.Pkey())
	assert.False(t, composite.Simple())
	assert.Equal(t, "order_id", composite.Pkey())
	assert.Equal(t, "", empty.Pkey())
}
