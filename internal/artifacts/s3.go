package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/klauspost/compress/gzip"

	"capfactor/internal/types"
)

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store keeps gzip-compressed artifacts in a bucket under
// <prefix><name>.gz.
type S3Store struct {
	client S3API
	bucket string
	prefix string
	logger *slog.Logger
}

// S3StoreConfig configures an S3Store.
type S3StoreConfig struct {
	Bucket string
	Prefix string
	Logger *slog.Logger
}

func NewS3Store(client S3API, cfg S3StoreConfig) *S3Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: logger,
	}
}

// Key returns the object key an artifact is stored under.
func (s *S3Store) Key(name string) string {
	return path.Join(strings.TrimSuffix(s.prefix, "/"), name) + ".gz"
}

func (s *S3Store) Put(ctx context.Context, name string, r io.Reader) error {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Name = name
	n, err := io.Copy(zw, r)
	if err != nil {
		return artifactError("compress artifact", name, err)
	}
	if err := zw.Close(); err != nil {
		return artifactError("compress artifact", name, err)
	}

	key := s.Key(name)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(buf.Bytes()),
		ContentType:     aws.String(contentType(name)),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		return artifactError("upload artifact", name, err)
	}
	s.logger.InfoContext(ctx, "artifact uploaded",
		"bucket", s.bucket,
		"key", key,
		"bytes", n,
		"compressed_bytes", buf.Len(),
	)
	return nil
}

func (s *S3Store) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	key := s.Key(name)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeInternalArtifact,
				fmt.Sprintf("artifact %s not found", name), err,
				map[string]any{"artifact": name, "key": key, "not_found": true})
		}
		return nil, artifactError("download artifact", name, err)
	}

	zr, err := gzip.NewReader(out.Body)
	if err != nil {
		out.Body.Close()
		return nil, artifactError("decompress artifact", name, err)
	}
	return &gzipBody{Reader: zr, body: out.Body}, nil
}

// gzipBody closes both the decompressor and the object body.
type gzipBody struct {
	*gzip.Reader
	body io.ReadCloser
}

func (g *gzipBody) Close() error {
	return errors.Join(g.Reader.Close(), g.body.Close())
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
