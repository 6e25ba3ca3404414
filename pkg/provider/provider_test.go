package provider_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quartz.dev/qcc/pkg/provider"
)

func TestResolveNativeModule(t *testing.T) {
	p := provider.NewFileProvider(t.TempDir())

	src, err := p.Resolve("stdio")
	require.NoError(t, err)
	assert.True(t, src.IsNative())
	assert.Equal(t, "stdio", src.NativeModule)

	names := make([]string, len(src.Functions))
	for i, fn := range src.Functions {
		names[i] = fn.Name
	}
	assert.ElementsMatch(t, []string{"println", "print", "readstr", "stdin"}, names)
}

func TestResolveFileAddsExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "util.qz"), []byte("var x: Number = 1;"), 0o644))

	p := provider.NewFileProvider(dir)
	src, err := p.Resolve("util")
	require.NoError(t, err)
	assert.False(t, src.IsNative())
	assert.Equal(t, "var x: Number = 1;", src.FileText)
}

func TestResolveMissingFileErrors(t *testing.T) {
	p := provider.NewFileProvider(t.TempDir())
	_, err := p.Resolve("does-not-exist")
	assert.Error(t, err)
}

func TestAlreadyLoadedTracksMarkLoaded(t *testing.T) {
	p := provider.NewFileProvider(t.TempDir())
	assert.False(t, p.AlreadyLoaded("stdio"))
	p.MarkLoaded("stdio")
	assert.True(t, p.AlreadyLoaded("stdio"))
}

func TestDiscoverSourcesFindsQzFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.qz"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.qz"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte(""), 0o644))

	files, err := provider.DiscoverSources(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}
