package corpus

import (
	"context"
	"fmt"
	"io"
	"strings"

	"pathwaymed-backend/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Provider reads disease documents from an S3 bucket prefix
type S3Provider struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Provider creates a new S3 corpus provider
func NewS3Provider(cfg Config) (*S3Provider, error) {
	ctx := context.Background()

	var awsCfg aws.Config
	var err error

	// Load AWS config
	if cfg.AWSAccessKey != "" && cfg.AWSSecretKey != "" {
		// Use explicit credentials
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.S3Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AWSAccessKey,
				cfg.AWSSecretKey,
				"",
			)),
		)
	} else {
		// Use default credentials (from environment, IAM role, etc.)
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.S3Region),
		)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)

	return &S3Provider{
		client: client,
		bucket: cfg.S3Bucket,
		prefix: cfg.S3Prefix,
	}, nil
}

// Load lists and fetches every .md object under the configured prefix
func (p *S3Provider) Load(ctx context.Context) ([]models.CorpusDocument, error) {
	var docs []models.CorpusDocument

	paginator := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(p.prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list corpus objects: %w", err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".md") {
				continue
			}

			result, err := p.client.GetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(p.bucket),
				Key:    aws.String(key),
			})
			if err != nil {
				return nil, fmt.Errorf("failed to fetch corpus object %s: %w", key, err)
			}

			content, err := io.ReadAll(result.Body)
			result.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("failed to read corpus object %s: %w", key, err)
			}

			docs = append(docs, models.CorpusDocument{
				DiseaseID: diseaseIDFromFilename(key),
				Content:   string(content),
			})
		}
	}

	return docs, nil
}
