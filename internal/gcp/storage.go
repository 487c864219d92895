package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/Lllllllleong/casebinder/internal/ingest"
	"github.com/Lllllllleong/casebinder/internal/models"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetEnvInt reads an integer environment variable, falling back when it is
// unset or not a number.
func GetEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		slog.Warn("Ignoring non-numeric environment variable.", "key", key, "value", value)
		return fallback
	}
	return n
}

// SaveToGCSAtomically writes content to a GCS object only if it doesn't
// already exist. It reports whether the object was written.
func SaveToGCSAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName, contentType string, content []byte) (bool, error) {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, bytes.NewReader(content)); err != nil {
		_ = writer.Close()
		return false, fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			slog.Info("Object already exists; skipping write.", "gcsObject", objectName)
			return false, nil // Not a failure in an idempotent workflow.
		}
		return false, fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return true, nil
}

// GSURI formats a gs:// URI.
func GSURI(bucket, object string) string {
	return "gs://" + bucket + "/" + object
}

// ParseGSURI splits a gs://bucket/object URI.
func ParseGSURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// uri: %q", uri)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("gs uri %q needs a bucket and an object", uri)
	}
	return bucket, object, nil
}

// BucketSource reads evidence objects from Cloud Storage.
type BucketSource struct {
	client *storage.Client
	bucket string
}

func NewBucketSource(client *storage.Client, bucket string) *BucketSource {
	return &BucketSource{client: client, bucket: bucket}
}

// Open reads the object a document was ingested from.
func (s *BucketSource) Open(ctx context.Context, doc models.Document) ([]byte, error) {
	bucket, object, err := ParseGSURI(doc.SourceURI)
	if err != nil {
		return nil, err
	}
	return s.read(ctx, bucket, object)
}

func (s *BucketSource) read(ctx context.Context, bucket, object string) ([]byte, error) {
	rc, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", bucket, object, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", bucket, object, err)
	}
	return data, nil
}

// Item describes one object as an ingestion item. The bytes are only read
// when a worker picks the item up.
func (s *BucketSource) Item(attrs *storage.ObjectAttrs, tag string) ingest.Item {
	bucket, object := attrs.Bucket, attrs.Name
	if bucket == "" {
		bucket = s.bucket
	}
	return ingest.Item{
		Filename:   path.Base(object),
		MIMEType:   attrs.ContentType,
		Tag:        tag,
		Size:       attrs.Size,
		SourceURI:  GSURI(bucket, object),
		UploadedAt: attrs.Created,
		Load: func(ctx context.Context) ([]byte, error) {
			return s.read(ctx, bucket, object)
		},
	}
}

// List returns every object under prefix as an ingestion item, skipping
// "directory" placeholders.
func (s *BucketSource) List(ctx context.Context, prefix, tag string) ([]ingest.Item, error) {
	var items []ingest.Item
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s: %w", s.bucket, prefix, err)
		}
		if strings.HasSuffix(attrs.Name, "/") {
			continue
		}
		items = append(items, s.Item(attrs, tag))
	}
	return items, nil
}

// Attrs fetches the attributes of one object.
func (s *BucketSource) Attrs(ctx context.Context, object string) (*storage.ObjectAttrs, error) {
	attrs, err := s.client.Bucket(s.bucket).Object(object).Attrs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to stat gs://%s/%s: %w", s.bucket, object, err)
	}
	return attrs, nil
}
