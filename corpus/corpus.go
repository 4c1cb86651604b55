package corpus

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pathwaymed-backend/models"
)

// Provider supplies the read-only disease reference documents. Load is
// called once per answered query; implementations must not cache across
// calls so corpus updates take effect without a restart.
type Provider interface {
	// Load returns every document in the corpus. Content is returned
	// verbatim to preserve the L#/I#/T# block identifiers.
	Load(ctx context.Context) ([]models.CorpusDocument, error)
}

// ProviderType represents the corpus backend type
type ProviderType string

const (
	ProviderTypeLocal ProviderType = "local"
	ProviderTypeS3    ProviderType = "s3"
)

// Config holds configuration for the corpus provider
type Config struct {
	Type         ProviderType
	LocalPath    string // For local corpus
	S3Bucket     string // For S3 corpus
	S3Prefix     string
	S3Region     string
	AWSAccessKey string
	AWSSecretKey string
}

// NewProvider creates a corpus provider based on configuration
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Type {
	case ProviderTypeLocal:
		return NewLocalProvider(cfg.LocalPath)
	case ProviderTypeS3:
		return NewS3Provider(cfg)
	default:
		return nil, fmt.Errorf("unknown corpus type: %s", cfg.Type)
	}
}

// NewProviderFromEnv creates a corpus provider from environment variables
func NewProviderFromEnv() (Provider, error) {
	corpusType := os.Getenv("CORPUS_TYPE")
	if corpusType == "" {
		corpusType = "local" // Default to local for development
	}

	cfg := Config{
		Type: ProviderType(corpusType),
	}

	switch ProviderType(corpusType) {
	case ProviderTypeLocal:
		localPath := os.Getenv("CORPUS_LOCAL_PATH")
		if localPath == "" {
			localPath = "./disease_markdown"
		}
		cfg.LocalPath = localPath
		return NewLocalProvider(cfg.LocalPath)

	case ProviderTypeS3:
		cfg.S3Bucket = os.Getenv("CORPUS_S3_BUCKET")
		cfg.S3Prefix = os.Getenv("CORPUS_S3_PREFIX")
		cfg.S3Region = os.Getenv("AWS_REGION")
		if cfg.S3Region == "" {
			cfg.S3Region = "us-east-1"
		}
		cfg.AWSAccessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		cfg.AWSSecretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")

		if cfg.S3Bucket == "" {
			return nil, errors.New("CORPUS_S3_BUCKET environment variable is required for S3 corpus")
		}

		return NewS3Provider(cfg)

	default:
		return nil, fmt.Errorf("unknown corpus type: %s", corpusType)
	}
}

// diseaseIDFromFilename derives the disease identifier from a document
// filename, e.g. "diarrhoea.md" -> "diarrhoea"
func diseaseIDFromFilename(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
