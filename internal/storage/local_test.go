package storage

import (
	"context"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewFsStorage(afero.NewMemMapFs())

	require.NoError(t, s.Put(ctx, "a.png", strings.NewReader("png-bytes")))
	ok, err := s.Exists(ctx, "a.png")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := s.Get(ctx, "a.png")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "png-bytes", string(body))

	require.NoError(t, s.Delete(ctx, "a.png"))
	assert.ErrorIs(t, s.Delete(ctx, "a.png"), ErrNotFound)
	_, err = s.Get(ctx, "a.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorageRejectsPaths(t *testing.T) {
	s := NewFsStorage(afero.NewMemMapFs())
	assert.Error(t, s.Put(context.Background(), "../escape.png", strings.NewReader("x")))
	assert.Error(t, s.Put(context.Background(), "dir/nested.png", strings.NewReader("x")))
}

func TestMatching(t *testing.T) {
	ctx := context.Background()
	s := NewFsStorage(afero.NewMemMapFs())
	for _, name := range []string{"abc.png", "abc.webp", "def.jpg", "def.webp"} {
		require.NoError(t, s.Put(ctx, name, strings.NewReader("x")))
	}

	got, err := Matching(ctx, s, "abc")
	require.NoError(t, err)
	sort.Strings(got)
	assert.Equal(t, []string{"abc.png", "abc.webp"}, got)

	got, err = Matching(ctx, s, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewLocalStorageCreatesDir(t *testing.T) {
	dir := t.TempDir() + "/media"
	s, err := NewLocalStorage(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), "x.txt", strings.NewReader("1")))

	names, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"x.txt"}, names)
}

func TestFilter(t *testing.T) {
	names := []string{"abc.png", "abc.webp", "def.jpg"}
	assert.Equal(t, []string{"abc.png", "abc.webp"}, Filter(names, "abc"))
	assert.Empty(t, Filter(names, "xyz"))
	assert.Empty(t, Filter(names, ""))
}
