// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	vncserver "github.com/tenthirtyam/go-vncserver"
)

// PutObjectAPI is the part of *s3.Client the uploader uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config describes how to reach the snapshot bucket.
type S3Config struct {
	Region string

	// Endpoint overrides the service endpoint, e.g. for MinIO.
	Endpoint string

	// UsePathStyle addresses the bucket in the path instead of the host.
	UsePathStyle bool

	// Static credentials. Empty values fall back to the AWS_ACCESS_KEY_ID,
	// AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN environment variables.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// NewS3Client builds an S3 client from cfg.
func NewS3Client(cfg S3Config) *s3.Client {
	creds := aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		c := aws.Credentials{
			AccessKeyID:     firstNonEmpty(cfg.AccessKeyID, os.Getenv("AWS_ACCESS_KEY_ID")),
			SecretAccessKey: firstNonEmpty(cfg.SecretAccessKey, os.Getenv("AWS_SECRET_ACCESS_KEY")),
			SessionToken:    firstNonEmpty(cfg.SessionToken, os.Getenv("AWS_SESSION_TOKEN")),
			Source:          "vncserver",
		}
		if c.AccessKeyID == "" || c.SecretAccessKey == "" {
			return aws.Credentials{}, fmt.Errorf("snapshot: no S3 credentials configured")
		}
		return c, nil
	})

	opts := s3.Options{
		Region:       firstNonEmpty(cfg.Region, os.Getenv("AWS_REGION"), "us-east-1"),
		Credentials:  aws.NewCredentialsCache(creds),
		UsePathStyle: cfg.UsePathStyle,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// S3Uploader stores snapshots as objects named
// <prefix><UTC timestamp>.png.
type S3Uploader struct {
	client PutObjectAPI
	bucket string
	prefix string
	log    vncserver.Logger
	now    func() time.Time
}

// NewS3Uploader creates an uploader. log may be nil.
func NewS3Uploader(client PutObjectAPI, bucket, prefix string, log vncserver.Logger) *S3Uploader {
	if log == nil {
		log = &vncserver.NoOpLogger{}
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Uploader{
		client: client,
		bucket: bucket,
		prefix: prefix,
		log:    log,
		now:    time.Now,
	}
}

// Upload encodes the source as PNG and stores it. It returns the object key.
func (u *S3Uploader) Upload(ctx context.Context, src Source) (string, error) {
	data, err := PNG(src)
	if err != nil {
		return "", fmt.Errorf("snapshot: encode failed: %w", err)
	}

	taken := u.now().UTC()
	key := u.prefix + taken.Format("20060102T150405.000Z") + ".png"

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(ContentType),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata: map[string]string{
			"capture-time": taken.Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("snapshot: s3 upload failed: %w", err)
	}

	u.log.Debug("snapshot uploaded", vncserver.Field{Key: "bucket", Value: u.bucket}, vncserver.Field{Key: "key", Value: key}, vncserver.Field{Key: "bytes", Value: len(data)})
	return key, nil
}

// Run uploads a snapshot every interval until ctx is cancelled. Failed
// uploads are logged and retried on the next tick.
func (u *S3Uploader) Run(ctx context.Context, src Source, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := u.Upload(ctx, src); err != nil && ctx.Err() == nil {
				u.log.Warn("snapshot upload failed", vncserver.Field{Key: "error", Value: err})
			}
		}
	}
}
