// Package storage uploads exported runs to S3 compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/config"
)

// ErrMissingBucket is returned when no bucket is configured.
var ErrMissingBucket = errors.New("s3 bucket is required")

// PutObjectAPI is the subset of *s3.Client used by the uploader.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Object describes one uploaded file.
type Object struct {
	Key  string
	Size int64
}

// S3Uploader copies run directories into a bucket under a key prefix.
type S3Uploader struct {
	client PutObjectAPI
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3Client builds an S3 client from cfg. Static credentials are used when both keys
// are set, otherwise the default AWS credential chain applies. A custom endpoint
// targets S3 compatible stores such as MinIO.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle || cfg.Endpoint != ""
	}), nil
}

// NewS3Uploader creates an uploader for bucket.
func NewS3Uploader(client PutObjectAPI, bucket, prefix string, logger *slog.Logger) (*S3Uploader, error) {
	if bucket == "" {
		return nil, ErrMissingBucket
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Uploader{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}, nil
}

// Key returns the object key for a file at rel inside the run directory runName.
func (u *S3Uploader) Key(runName, rel string) string {
	return path.Join(u.prefix, runName, filepath.ToSlash(rel))
}

// UploadDir uploads every regular file below dir. Keys keep the layout relative
// to dir, under "<prefix>/<base name of dir>/".
func (u *S3Uploader) UploadDir(ctx context.Context, dir string) ([]Object, error) {
	runName := filepath.Base(filepath.Clean(dir))
	var uploaded []Object

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		obj, err := u.upload(ctx, p, u.Key(runName, rel))
		if err != nil {
			return err
		}
		uploaded = append(uploaded, obj)
		return nil
	})
	if err != nil {
		return uploaded, fmt.Errorf("upload %s: %w", dir, err)
	}

	u.logger.Info("run uploaded", "bucket", u.bucket, "prefix", u.Key(runName, ""), "objects", len(uploaded))
	return uploaded, nil
}

func (u *S3Uploader) upload(ctx context.Context, file, key string) (Object, error) {
	f, err := os.Open(file)
	if err != nil {
		return Object{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Object{}, err
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType(file)),
	})
	if err != nil {
		return Object{}, fmt.Errorf("put %s: %w", key, err)
	}
	u.logger.Debug("object uploaded", "key", key, "size", info.Size())
	return Object{Key: key, Size: info.Size()}, nil
}

func contentType(file string) string {
	switch filepath.Ext(file) {
	case ".csv":
		return "text/csv"
	case ".md":
		return "text/markdown"
	case ".prom":
		return "text/plain; version=0.0.4"
	}
	if t := mime.TypeByExtension(filepath.Ext(file)); t != "" {
		return t
	}
	return "application/octet-stream"
}
