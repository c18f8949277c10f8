// Package objectstorage uploads generated room images and 3D models to
// two S3-compatible buckets using github.com/aws/aws-sdk-go-v2.
package objectstorage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/worldforge/server/pkg/config"
)

// Store uploads room image/model assets and renders their public URLs.
type Store struct {
	client *s3.Client
	cfg    config.ObjectStorageConfig
}

// New builds an S3 client from cfg.
func New(ctx context.Context, cfg config.ObjectStorageConfig) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("objectstorage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Store{client: client, cfg: cfg}, nil
}

// PutRoomImage uploads a generated room image.
func (s *Store) PutRoomImage(ctx context.Context, roomID, ext string, body []byte, contentType string) (string, error) {
	key := fmt.Sprintf("rooms/%s.%s", roomID, ext)
	return s.put(ctx, s.cfg.ImagesBucket, key, body, contentType)
}

// PutRoomModel uploads a generated 3D model.
func (s *Store) PutRoomModel(ctx context.Context, roomID, ext string, body []byte, contentType string) (string, error) {
	key := fmt.Sprintf("models/%s.%s", roomID, ext)
	return s.put(ctx, s.cfg.ModelsBucket, key, body, contentType)
}

func (s *Store) put(ctx context.Context, bucket, key string, body []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("objectstorage: put %s/%s: %w", bucket, key, err)
	}
	return s.urlFor(bucket, key), nil
}

// urlFor renders a durable URL with a cache-busting `?v=` query param;
// callers append the unix timestamp since a fresh PutObject always
// implies a fresh version.
func (s *Store) urlFor(bucket, key string) string {
	if s.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.cfg.Endpoint, bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, s.cfg.Region, key)
}
