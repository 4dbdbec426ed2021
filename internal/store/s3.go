package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the slice of the S3 client the uploader needs.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader mirrors written pairs to a bucket. Dated objects are partitioned
// by season; latest objects sit at the prefix root.
type Uploader struct {
	Client S3API
	Bucket string
	Prefix string
}

// Keys returns the object keys for a pair.
func (u *Uploader) Keys(season string, p Paths) (dated, latest string) {
	prefix := strings.Trim(u.Prefix, "/")
	dated = path.Join(prefix, "season="+season, filepath.Base(p.Dated))
	latest = path.Join(prefix, filepath.Base(p.Latest))
	return dated, latest
}

// Mirror uploads both files of a pair. Both uploads are attempted.
func (u *Uploader) Mirror(ctx context.Context, season string, p Paths) ([]string, error) {
	dated, latest := u.Keys(season, p)
	var keys []string
	var errs []error
	for _, obj := range []struct{ file, key string }{{p.Dated, dated}, {p.Latest, latest}} {
		if err := u.put(ctx, obj.key, obj.file); err != nil {
			errs = append(errs, fmt.Errorf("s3://%s/%s: %w", u.Bucket, obj.key, err))
			continue
		}
		keys = append(keys, obj.key)
	}
	return keys, errors.Join(errs...)
}

func (u *Uploader) put(ctx context.Context, key, file string) error {
	body, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	_, err = u.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType(file)),
	})
	return err
}

func contentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
