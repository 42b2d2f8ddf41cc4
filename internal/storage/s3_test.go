package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/config"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/logging"
)

type putCall struct {
	bucket, key, contentType string
	body                     string
}

type fakeS3 struct {
	puts []putCall
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.puts = append(f.puts, putCall{
		bucket:      aws.ToString(in.Bucket),
		key:         aws.ToString(in.Key),
		contentType: aws.ToString(in.ContentType),
		body:        string(body),
	})
	return &s3.PutObjectOutput{}, nil
}

func writeRun(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "run_20240101_000000")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "raw"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "processed"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "raw", "cdr_call_records.csv"), []byte("call_id\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "raw", "README.md"), []byte("# run\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "processed", "cdr_user_features.csv"), []byte("user_id\n"), 0o644))
	return dir
}

func TestUploadDir(t *testing.T) {
	client := &fakeS3{}
	u, err := NewS3Uploader(client, "datasets", "cdr", logging.Discard())
	require.NoError(t, err)

	objects, err := u.UploadDir(context.Background(), writeRun(t))
	require.NoError(t, err)
	require.Len(t, objects, 3)

	keys := make([]string, 0, len(client.puts))
	byKey := make(map[string]putCall)
	for _, p := range client.puts {
		assert.Equal(t, "datasets", p.bucket)
		keys = append(keys, p.key)
		byKey[p.key] = p
	}
	sort.Strings(keys)
	assert.Equal(t, []string{
		"cdr/run_20240101_000000/processed/cdr_user_features.csv",
		"cdr/run_20240101_000000/raw/README.md",
		"cdr/run_20240101_000000/raw/cdr_call_records.csv",
	}, keys)

	calls := byKey["cdr/run_20240101_000000/raw/cdr_call_records.csv"]
	assert.Equal(t, "text/csv", calls.contentType)
	assert.Equal(t, "call_id\n", calls.body)
	assert.Equal(t, "text/markdown", byKey["cdr/run_20240101_000000/raw/README.md"].contentType)
}

func TestUploadDirPropagatesErrors(t *testing.T) {
	boom := errors.New("access denied")
	u, err := NewS3Uploader(&fakeS3{err: boom}, "datasets", "", nil)
	require.NoError(t, err)

	_, err = u.UploadDir(context.Background(), writeRun(t))
	assert.ErrorIs(t, err, boom)
}

func TestNewS3UploaderRequiresBucket(t *testing.T) {
	_, err := NewS3Uploader(&fakeS3{}, "", "cdr", nil)
	assert.ErrorIs(t, err, ErrMissingBucket)
}

func TestKeyWithoutPrefix(t *testing.T) {
	u, err := NewS3Uploader(&fakeS3{}, "b", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "run_1/raw/a.csv", u.Key("run_1", filepath.Join("raw", "a.csv")))
}

func TestNewS3ClientWithEndpoint(t *testing.T) {
	client, err := NewS3Client(context.Background(), config.S3Config{
		Region:          "us-east-1",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
	})
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.Equal(t, "http://localhost:9000", aws.ToString(client.Options().BaseEndpoint))
	assert.True(t, client.Options().UsePathStyle)
}
