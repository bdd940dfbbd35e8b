// Package archive persists raw page snapshots for audit and debugging. A
// BlobStore abstracts the backing medium (GCS, local filesystem, memory);
// the Snapshotter names objects so a snapshot can be traced back to the
// scrape run and host that produced it.
package archive

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jsv832/UoL-AI-Expert-Finder/internal/fetch"
	"github.com/jsv832/UoL-AI-Expert-Finder/internal/hash/sha256"
)

// BlobStore writes one raw artifact and returns a URI for it.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// htmlContentType is applied to every snapshot.
const htmlContentType = "text/html; charset=utf-8"

// hashPrefixLen keeps object names short; 16 hex chars of SHA-256 is plenty
// to avoid collisions within one job/host directory.
const hashPrefixLen = 16

// Snapshotter archives page bodies under
// <prefix>/<jobID>/<host>/<sha256[:16]>.html.
type Snapshotter struct {
	store  BlobStore
	hasher *sha256.Hasher
	prefix string
	logger *zap.Logger
}

// NewSnapshotter builds a Snapshotter over store. A nil store disables
// snapshotting; Snapshot then returns an empty URI and no error.
func NewSnapshotter(store BlobStore, prefix string, logger *zap.Logger) *Snapshotter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Snapshotter{
		store:  store,
		hasher: sha256.New(),
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

// Snapshot stores body and returns the blob URI. Identical bodies within one
// job and host land on the same object, which is the point: re-fetching an
// unchanged page must not grow the archive.
func (s *Snapshotter) Snapshot(ctx context.Context, jobID, pageURL string, body []byte) (string, error) {
	if s == nil || s.store == nil || len(body) == 0 {
		return "", nil
	}
	digest, err := s.hasher.Hash(body)
	if err != nil {
		return "", fmt.Errorf("hash snapshot: %w", err)
	}
	if len(digest) > hashPrefixLen {
		digest = digest[:hashPrefixLen]
	}
	path := s.objectPath(jobID, fetch.Host(pageURL), digest)
	uri, err := s.store.PutObject(ctx, path, htmlContentType, body)
	if err != nil {
		return "", fmt.Errorf("archive snapshot: %w", err)
	}
	s.logger.Debug("page archived",
		zap.String("url", pageURL),
		zap.String("blob_uri", uri))
	return uri, nil
}

func (s *Snapshotter) objectPath(jobID, host, digest string) string {
	name := fmt.Sprintf("%s/%s/%s.html", jobID, host, digest)
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}
