package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio/internal/storage/local"
)

func TestSink_WriteFile(t *testing.T) {
	base := t.TempDir()
	sink, err := local.NewSinkFactory(base).Open(context.Background(), "paper")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "paper"), sink.URI())

	require.NoError(t, sink.WriteFile(context.Background(), "text_content/elem_001_0001.txt", []byte("hello"), "text/plain"))
	data, err := os.ReadFile(filepath.Join(base, "paper", "text_content", "elem_001_0001.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = os.Stat(filepath.Join(base, "paper", "text_content", "elem_001_0001.txt.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestSink_RejectsEscapingPaths(t *testing.T) {
	sink, err := local.NewSink(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, sink.WriteFile(context.Background(), "../outside.json", nil, ""))
	assert.Error(t, sink.WriteFile(context.Background(), "/etc/passwd", nil, ""))
}

func TestSink_Discard(t *testing.T) {
	base := t.TempDir()
	sink, err := local.NewSinkFactory(base).Open(context.Background(), "paper")
	require.NoError(t, err)
	require.NoError(t, sink.WriteFile(context.Background(), "catalog.json", []byte("{}"), ""))

	require.NoError(t, sink.Discard(context.Background()))
	_, err = os.Stat(filepath.Join(base, "paper"))
	assert.True(t, os.IsNotExist(err))
}

func TestSinkFactory_ReplacesExistingCatalog(t *testing.T) {
	base := t.TempDir()
	f := local.NewSinkFactory(base)
	first, err := f.Open(context.Background(), "paper")
	require.NoError(t, err)
	require.NoError(t, first.WriteFile(context.Background(), "stale.json", []byte("{}"), ""))

	_, err = f.Open(context.Background(), "paper")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(base, "paper", "stale.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestSinkFactory_InvalidName(t *testing.T) {
	f := local.NewSinkFactory(t.TempDir())
	for _, name := range []string{"", "..", "a/b"} {
		_, err := f.Open(context.Background(), name)
		assert.Error(t, err, name)
	}
}
