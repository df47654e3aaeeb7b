package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// DirFetcher reads documents from Root/Prefix on the local filesystem.
type DirFetcher struct {
	Root   string
	Prefix string
}

func (f *DirFetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	rel := filepath.Join(f.Prefix, filepath.FromSlash(key))
	if !filepath.IsLocal(rel) {
		return nil, fmt.Errorf("%w: key %q escapes document root", ErrNotFound, key)
	}
	raw, err := os.ReadFile(filepath.Join(f.Root, rel))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnavailable, key, err)
	}
	return raw, nil
}

// S3API is the subset of the S3 client used by S3Fetcher.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher reads documents from Bucket under Prefix. The object key is
// Prefix + "/" + key.
type S3Fetcher struct {
	Client S3API
	Bucket string
	Prefix string
}

// ObjectKey returns the S3 object key for a document key.
func (f *S3Fetcher) ObjectKey(key string) string {
	if f.Prefix == "" {
		return key
	}
	return f.Prefix + "/" + key
}

func (f *S3Fetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	objectKey := f.ObjectKey(key)
	out, err := f.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.Bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, f.Bucket, objectKey)
		}
		return nil, fmt.Errorf("%w: get s3://%s/%s: %v", ErrUnavailable, f.Bucket, objectKey, err)
	}
	defer out.Body.Close()
	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read s3://%s/%s: %v", ErrUnavailable, f.Bucket, objectKey, err)
	}
	return raw, nil
}

func isS3NotFound(err error) bool {
	var noSuchKey *s3types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) {
		switch coded.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
