package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/config"
)

// IDocumentStore persists transport documents (CT-e/CIOT payloads, delivery
// proofs) attached to a quote during its lifecycle.
type IDocumentStore interface {
	PutDocument(ctx context.Context, quoteID, kind string, payload []byte) (string, error)
}

// s3DocumentStore implements IDocumentStore on S3.
type s3DocumentStore struct {
	cfg      *config.Config
	s3Client *s3.Client
}

// NewS3DocumentStore creates a new S3-backed document store.
func NewS3DocumentStore(cfg *config.Config) (IDocumentStore, error) {
	awsCfg, err := aws_config.LoadDefaultConfig(context.TODO(),
		aws_config.WithRegion(cfg.AwsRegion),
		// Use static credentials from config for simplicity
		// For production, prefer IAM roles or other secure credential methods
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"", // session token
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &s3DocumentStore{
		cfg:      cfg,
		s3Client: s3.NewFromConfig(awsCfg),
	}, nil
}

// PutDocument uploads the payload and returns the generated object key.
func (s *s3DocumentStore) PutDocument(ctx context.Context, quoteID, kind string, payload []byte) (string, error) {
	objectKey := fmt.Sprintf("documents/%s/%s_%d_%s", quoteID, kind, time.Now().UTC().Unix(), uuid.NewString())

	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AwsS3Bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload document %s: %w", objectKey, err)
	}
	return objectKey, nil
}
