// Package archive stores JSON snapshots of the registry in S3-compatible
// object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/todosutiles/kitsync/internal/logging"
	sc "github.com/todosutiles/kitsync/internal/server/config"
	"github.com/todosutiles/kitsync/internal/server/models"
	"github.com/todosutiles/kitsync/internal/server/records"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in)
	}
)

type S3Archiver struct {
	service *records.Service
	config  *sc.Config
	log     logging.Logger
}

func NewS3Archiver(service *records.Service, config *sc.Config, log logging.Logger) *S3Archiver {
	return &S3Archiver{service: service, config: config, log: log}
}

func snapshotKey() string {
	d := time.Now().UTC()
	return fmt.Sprintf("snapshots/%d/%02d/%02d/%v.json", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (a *S3Archiver) getClient(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(a.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			a.config.S3RootUser,
			a.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(a.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return client, nil
}

// Archive uploads the full record set as a JSON document and returns the
// object key.
func (a *S3Archiver) Archive(ctx context.Context) (string, error) {
	list, err := a.service.List(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load records: %w", err)
	}

	data, err := json.Marshal(models.ToWireList(list))
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	client, err := a.getClient(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to build S3 client: %w", err)
	}

	bucket := a.config.S3Bucket
	key := snapshotKey()
	contentType := "application/json"

	if _, err := putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	}); err != nil {
		return "", fmt.Errorf("failed to upload snapshot: %w", err)
	}

	a.log.Info(ctx, "snapshot archived", "key", key, "records", len(list))
	return key, nil
}

// RunPeriodic archives snapshots every interval until ctx is cancelled.
func (a *S3Archiver) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.Archive(ctx); err != nil {
				a.log.Error(ctx, "periodic archive failed", "error", err)
			}
		}
	}
}
