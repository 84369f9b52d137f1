// Package service contains the business logic layer.
package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/docrouter-ai/docrouter-api/internal/config"
)

// BlobStore is the blob storage contract: raw documents, per-page rasters
// and OCR artifacts.
type BlobStore interface {
	Put(ctx context.Context, name string, data []byte, metadata map[string]string) error
	Get(ctx context.Context, name string) ([]byte, map[string]string, error)
	Delete(ctx context.Context, name string) error
	ListByPrefix(ctx context.Context, prefix string) ([]string, error)
}

// Artifact name helpers. Page numbers are 1-based.

// OriginalBlobName is the key of the raw uploaded document.
func OriginalBlobName(documentID, fileName string) string {
	ext := strings.TrimPrefix(filepath.Ext(fileName), ".")
	if ext == "" {
		ext = "bin"
	}
	return documentID + "." + strings.ToLower(ext)
}

// PageImageBlobName is the key of one rasterized page PNG.
func PageImageBlobName(documentID string, page int) string {
	return fmt.Sprintf("%s.page.%d.png", documentID, page)
}

// OCRBlocksBlobName is the key of the OCR blocks JSON.
func OCRBlocksBlobName(documentID string) string {
	return documentID + ".ocr_blocks.json"
}

// OCRTextBlobName is the key of the whole-document OCR text.
func OCRTextBlobName(documentID string) string {
	return documentID + ".ocr_text.txt"
}

// OCRPageTextBlobName is the key of one page's OCR text.
func OCRPageTextBlobName(documentID string, page int) string {
	return fmt.Sprintf("%s.ocr_text.%d.txt", documentID, page)
}

// StorageService is the S3-compatible BlobStore implementation
// (Tigris/MinIO/AWS).
type StorageService struct {
	client *s3.Client
	bucket string
	logger *slog.Logger
}

// NewStorageService creates a new storage service.
func NewStorageService(cfg *appconfig.Config, logger *slog.Logger) (*StorageService, error) {
	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.StorageRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.StorageEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.StorageEndpoint)
		}
		o.UsePathStyle = true // Required for some S3-compatible services
	})

	logger.Info("storage service initialized",
		"bucket", cfg.StorageBucket,
		"endpoint", cfg.StorageEndpoint,
	)

	return &StorageService{
		client: client,
		bucket: cfg.StorageBucket,
		logger: logger,
	}, nil
}

// Put stores a blob with its metadata.
func (s *StorageService) Put(ctx context.Context, name string, data []byte, metadata map[string]string) error {
	input := &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(name),
		Body:     bytes.NewReader(data),
		Metadata: metadata,
	}
	if ct, ok := metadata["type"]; ok {
		input.ContentType = aws.String(ct)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to store blob %s: %w", name, err)
	}
	return nil
}

// Get retrieves a blob and its metadata.
func (s *StorageService) Get(ctx context.Context, name string) ([]byte, map[string]string, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get blob %s: %w", name, err)
	}
	defer func() { _ = output.Body.Close() }()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read blob %s: %w", name, err)
	}
	return data, output.Metadata, nil
}

// Delete removes a blob. Missing blobs are not an error.
func (s *StorageService) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", name, err)
	}
	return nil
}

// ListByPrefix returns the keys of all blobs with the given prefix.
func (s *StorageService) ListByPrefix(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs with prefix %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}
