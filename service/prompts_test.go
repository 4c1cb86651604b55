package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPromptsComplete(t *testing.T) {
	p := DefaultPrompts()
	assert.NotEmpty(t, p.HistoryResolver)
	assert.NotEmpty(t, p.Classifier)
	assert.NotEmpty(t, p.Extractor)
	assert.NotEmpty(t, p.Synthesizer)
	assert.NotEmpty(t, p.Title)
	assert.NotEmpty(t, p.Summary)
}

func TestFormatClassifier(t *testing.T) {
	p := DefaultPrompts()
	rendered := p.FormatClassifier([]string{"Pneumonia", "Malaria"})
	assert.Contains(t, rendered, "- Pneumonia\n")
	assert.Contains(t, rendered, "- Malaria\n")
	assert.NotContains(t, rendered, "%s")
}

func TestFormatTitle(t *testing.T) {
	p := DefaultPrompts()
	rendered := p.FormatTitle("my child has a fever")
	assert.Contains(t, rendered, "my child has a fever")
	assert.NotContains(t, rendered, "%s")
}

func TestLoadPromptsOverlay(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extractor.txt"), []byte("custom extractor persona\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "synthesizer.txt"), []byte("   \n"), 0o644))

	prompts, err := LoadPrompts(dir)
	require.NoError(t, err)

	defaults := DefaultPrompts()
	assert.Equal(t, "custom extractor persona", prompts.Extractor)
	assert.Equal(t, defaults.Synthesizer, prompts.Synthesizer, "blank override files are ignored")
	assert.Equal(t, defaults.Classifier, prompts.Classifier, "stages without files keep defaults")
}

func TestLoadPromptsEmptyDirMeansDefaults(t *testing.T) {
	prompts, err := LoadPrompts("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPrompts(), prompts)
}
