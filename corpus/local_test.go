package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProviderLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pneumonia.md"), []byte("L1: cough\nL2: fever"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "malaria.md"), []byte("L1: chills"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	p, err := NewLocalProvider(dir)
	require.NoError(t, err)

	docs, err := p.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2, "only .md files belong to the corpus")

	// Files come back sorted by path
	assert.Equal(t, "malaria", docs[0].DiseaseID)
	assert.Equal(t, "L1: chills", docs[0].Content)
	assert.Equal(t, "pneumonia", docs[1].DiseaseID)
	assert.Equal(t, "L1: cough\nL2: fever", docs[1].Content)
}

func TestLocalProviderEmptyDirectory(t *testing.T) {
	p, err := NewLocalProvider(t.TempDir())
	require.NoError(t, err)

	docs, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestLocalProviderMissingDirectory(t *testing.T) {
	_, err := NewLocalProvider(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}

func TestLocalProviderPathIsFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "corpus.md")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := NewLocalProvider(file)
	assert.Error(t, err)
}

func TestLocalProviderCancelledContext(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pneumonia.md"), []byte("x"), 0o644))

	p, err := NewLocalProvider(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDiseaseIDFromFilename(t *testing.T) {
	assert.Equal(t, "diarrhoea", diseaseIDFromFilename("diarrhoea.md"))
	assert.Equal(t, "malaria", diseaseIDFromFilename("/corpus/docs/malaria.md"))
	assert.Equal(t, "plain", diseaseIDFromFilename("plain"))
}

func TestNewProviderUnknownType(t *testing.T) {
	_, err := NewProvider(Config{Type: "gopher"})
	assert.Error(t, err)
}
