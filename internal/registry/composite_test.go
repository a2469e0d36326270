package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompositeRegistry_Fetch(t *testing.T) {
	t.Parallel()

	first := t.TempDir()
	second := t.TempDir()
	writeDoc(t, first, "acme/base.prs", "first registry")
	writeDoc(t, second, "acme/base.prs", "second registry")
	writeDoc(t, second, "acme/only-second.prs", "second only")

	reg := NewCompositeRegistry(
		NewFileSystemRegistry("first", first, ""),
		NewFileSystemRegistry("second", second, ""),
	)
	ctx := context.Background()

	t.Run("first success wins", func(t *testing.T) {
		t.Parallel()

		content, err := reg.Fetch(ctx, "acme/base")

		require.NoError(t, err)
		assert.Equal(t, "first registry", content)
	})

	t.Run("falls through to later registries", func(t *testing.T) {
		t.Parallel()

		content, err := reg.Fetch(ctx, "acme/only-second")

		require.NoError(t, err)
		assert.Equal(t, "second only", content)
	})

	t.Run("uniform miss stays detectable", func(t *testing.T) {
		t.Parallel()

		_, err := reg.Fetch(ctx, "acme/absent")

		var notFound *FileNotFoundError
		require.ErrorAs(t, err, &notFound)
	})
}

func TestCompositeRegistry_Exists(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeDoc(t, root, "acme/base.prs", "x")
	reg := NewCompositeRegistry(
		NewFileSystemRegistry("empty", t.TempDir(), ""),
		NewFileSystemRegistry("local", root, ""),
	)
	ctx := context.Background()

	assert.True(t, reg.Exists(ctx, "acme/base"))
	assert.False(t, reg.Exists(ctx, "acme/absent"))
}

func TestCompositeRegistry_List(t *testing.T) {
	t.Parallel()

	first := t.TempDir()
	second := t.TempDir()
	writeDoc(t, first, "acme/base.prs", "x")
	writeDoc(t, second, "acme/base.prs", "x")
	writeDoc(t, second, "acme/extra.prs", "x")
	reg := NewCompositeRegistry(
		NewFileSystemRegistry("first", first, ""),
		NewFileSystemRegistry("second", second, ""),
	)

	names := reg.List(context.Background(), "acme")

	assert.Equal(t, []string{"base", "extra"}, names, "duplicates from later registries dropped")
}
