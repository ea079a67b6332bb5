package name_test

import (
	"testing"

	"github.com/icn-metis/metisd/internal/name"
	"github.com/stretchr/testify/assert"
)

func TestEqualAndPrefix(t *testing.T) {
	a := name.FromString("/a/b")
	b := name.FromString("/a/b")
	c := name.FromString("/a/b/c")
	x := name.FromString("/a/x")

	assert.True(t, a.Equal(b))
	assert.True(t, a.IsPrefixOf(c))
	assert.False(t, a.IsPrefixOf(x))
	assert.False(t, c.IsPrefixOf(a))
}

func TestPrefixHashReuse(t *testing.T) {
	n := name.FromString("/a/b/c")
	p := n.Prefix(2)
	assert.True(t, p.Equal(name.FromString("/a/b")))
	assert.Equal(t, p.Hash(), n.PrefixHash(2))
}

func TestArenaInterning(t *testing.T) {
	arena := name.NewArena()
	id1 := arena.Intern(name.FromString("/a/b"))
	id2 := arena.Intern(name.FromString("/a/b"))
	id3 := arena.Intern(name.FromString("/a/b/c"))
	assert.Equal(t, id1, id2)
	assert.NotEqual(t, id1, id3)

	got, ok := arena.Lookup(id1)
	assert.True(t, ok)
	assert.True(t, got.Equal(name.FromString("/a/b")))

	parent, ok := arena.Parent(id3)
	assert.True(t, ok)
	assert.Equal(t, id1, parent)
}

func TestRootNameString(t *testing.T) {
	assert.Equal(t, "/", name.New().String())
	assert.Equal(t, "/a/b", name.FromString("/a/b").String())
}
