package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"fixmycity-be/errs"
)

// ImageStore persists decoded issue photos and reads them back.
type ImageStore interface {
	// Store decodes a base64 payload, optionally prefixed with a data URL
	// header, and returns the path it was written to.
	Store(ctx context.Context, payload string) (string, error)
	// Open returns the stored bytes at path, or errs.ErrNotFound.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// DecodePayload strips an optional "<mime-info>," prefix and base64-decodes
// the remainder.
func DecodePayload(payload string) ([]byte, error) {
	if i := strings.IndexByte(payload, ','); i >= 0 {
		payload = payload[i+1:]
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDecode, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", errs.ErrDecode)
	}
	return data, nil
}

// Namer generates stored image filenames.
type Namer struct {
	// Now defaults to time.Now.
	Now func() time.Time
	// Unique appends a random token so same-second uploads do not collide.
	Unique bool
}

// Name returns issue_<YYYYMMDD>_<HHMMSS>.jpg, with a token suffix when Unique.
func (n Namer) Name() string {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}

	stamp := now().Format("20060102_150405")
	if !n.Unique {
		return "issue_" + stamp + ".jpg"
	}
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return "issue_" + stamp + "_" + token + ".jpg"
}
