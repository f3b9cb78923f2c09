// ABOUTME: Resolves raw image payloads to stored references before a message is persisted
// ABOUTME: DirResolver is the local stand-in for the external upload collaborator

package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ErrEmptyPayload is returned when a resolve is attempted with no data
var ErrEmptyPayload = errors.New("empty image payload")

// Resolver turns a raw image payload into a stored reference. The transform
// itself (transcoding, CDN upload) belongs to an external collaborator; the
// contract here is only that a failed resolution returns an error and no
// reference.
type Resolver interface {
	Resolve(ctx context.Context, data []byte) (ref string, err error)
}

// DirResolver stores payloads as files under a base directory and returns
// the generated filename as the reference.
type DirResolver struct {
	dir    string
	logger *slog.Logger
}

// NewDirResolver creates a resolver writing under dir, creating it if needed.
func NewDirResolver(dir string, logger *slog.Logger) (*DirResolver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating media directory: %w", err)
	}
	return &DirResolver{
		dir:    dir,
		logger: logger.With("component", "media"),
	}, nil
}

// Resolve writes the payload to disk and returns its reference.
func (r *DirResolver) Resolve(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyPayload
	}

	ref := uuid.New().String()
	path := filepath.Join(r.dir, ref)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing media file: %w", err)
	}

	r.logger.Debug("stored media payload", "ref", ref, "bytes", len(data))
	return ref, nil
}
