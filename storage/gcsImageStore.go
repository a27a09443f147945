package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"

	"fixmycity-be/errs"
)

const gcsPrefix = "images/"

// GCSImageStore writes images to a Google Cloud Storage bucket. Stored paths
// take the form gs://<bucket>/images/<filename>.
type GCSImageStore struct {
	client *gcs.Client
	bucket string
	namer  Namer
}

func NewGCSImageStore(client *gcs.Client, bucket string, namer Namer) *GCSImageStore {
	return &GCSImageStore{client: client, bucket: bucket, namer: namer}
}

func (s *GCSImageStore) Store(ctx context.Context, payload string) (string, error) {
	data, err := DecodePayload(payload)
	if err != nil {
		return "", err
	}

	object := gcsPrefix + s.namer.Name()
	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	w.ContentType = "image/jpeg"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("%w: write gcs object: %v", errs.ErrIO, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%w: close gcs object: %v", errs.ErrIO, err)
	}
	return s.url(object), nil
}

func (s *GCSImageStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	object, ok := s.objectName(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrNotFound, path)
	}

	r, err := s.client.Bucket(s.bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", errs.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	return r, nil
}

func (s *GCSImageStore) url(object string) string {
	return "gs://" + s.bucket + "/" + object
}

// objectName maps a stored gs:// URL back to an object in this bucket.
func (s *GCSImageStore) objectName(path string) (string, bool) {
	object, ok := strings.CutPrefix(path, "gs://"+s.bucket+"/")
	if !ok || object == "" {
		return "", false
	}
	return object, true
}
