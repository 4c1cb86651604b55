package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"pathwaymed-backend/models"
)

// LocalProvider reads disease documents from a directory of .md files.
// The disease identifier is the file name without extension.
type LocalProvider struct {
	basePath string
}

// NewLocalProvider creates a new local corpus provider
func NewLocalProvider(basePath string) (*LocalProvider, error) {
	info, err := os.Stat(basePath)
	if err != nil {
		return nil, fmt.Errorf("corpus directory not found: %s: %w", basePath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus path is not a directory: %s", basePath)
	}

	return &LocalProvider{basePath: basePath}, nil
}

// Load reads every .md file in the corpus directory
func (p *LocalProvider) Load(ctx context.Context) ([]models.CorpusDocument, error) {
	matches, err := filepath.Glob(filepath.Join(p.basePath, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("failed to list corpus directory: %w", err)
	}
	sort.Strings(matches)

	docs := make([]models.CorpusDocument, 0, len(matches))
	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read corpus document %s: %w", path, err)
		}

		docs = append(docs, models.CorpusDocument{
			DiseaseID: diseaseIDFromFilename(path),
			Content:   string(content),
		})
	}

	return docs, nil
}
