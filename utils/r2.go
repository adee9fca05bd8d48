package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"civic-gamification/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// ObjectPutter is the part of the S3 client the archiver uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2Archiver writes leaderboard snapshots to a Cloudflare R2 bucket.
type R2Archiver struct {
	client ObjectPutter
	bucket string
	logger *zap.Logger
}

// NewR2Client builds an S3 client pointed at the account's R2 endpoint.
func NewR2Client(ctx context.Context, accountID, accessKeyID, accessKeySecret string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID, accessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID))
	}), nil
}

func NewR2Archiver(client ObjectPutter, bucket string, logger *zap.Logger) *R2Archiver {
	return &R2Archiver{client: client, bucket: bucket, logger: logger}
}

// ArchiveKey is the object key of a snapshot, e.g. "leaderboards/monthly/2026-10/20261018T120000Z.json".
func ArchiveKey(lb *models.Leaderboard) string {
	return fmt.Sprintf("leaderboards/%s/%s/%s.json", lb.TimeRange, lb.Period, lb.GeneratedAt.UTC().Format("20060102T150405Z"))
}

func (a *R2Archiver) Archive(ctx context.Context, lb *models.Leaderboard) error {
	body, err := json.Marshal(lb)
	if err != nil {
		return fmt.Errorf("encode leaderboard: %w", err)
	}

	key := ArchiveKey(lb)
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to R2: %w", err)
	}

	a.logger.Info("📦 leaderboard archived", zap.String("key", key), zap.Int("bytes", len(body)))
	return nil
}
