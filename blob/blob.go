// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/municipal-results/cliparse"
)

// Driver identifies a blob storage backend.
type Driver string

const (
	DriverMemory     Driver = "memory"
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
)

// PutOptions specifies optional parameters for Put.
type PutOptions struct {
	ContentType string
}

// Info describes a stored blob.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
	URL          string    `json:"url"`
}

// Store keeps uploaded tally sheets and compilation photos.
type Store interface {
	// Put stores a new blob. Existing keys are never overwritten.
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Delete(ctx context.Context, key string) (bool, error)
	// URL is the public location of key.
	URL(key string) string
	Driver() Driver
}

var (
	ErrNotFound = errors.New("blob not found")
	ErrExists   = errors.New("blob already exists")
)

// Open builds the store selected by cfg.BlobDriver.
func Open(ctx context.Context, cfg cliparse.Config) (Store, error) {
	switch Driver(cfg.BlobDriver) {
	case DriverMemory:
		return NewMemoryStore(cfg.BlobPublicURL), nil
	case DriverFilesystem:
		return NewFSStore(cfg.BlobFSRoot, cfg.BlobPublicURL)
	case DriverS3:
		return NewS3Store(ctx, S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	}
	return nil, fmt.Errorf("unknown blob driver %q", cfg.BlobDriver)
}

// extensions maps accepted upload content types to key extensions.
var extensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// Extension returns the key extension for contentType, or false if uploads of that type are refused.
func Extension(contentType string) (string, bool) {
	ct, _, _ := strings.Cut(contentType, ";")
	ext, ok := extensions[strings.ToLower(strings.TrimSpace(ct))]
	return ext, ok
}

// NewKey returns a fresh key for a tally sheet upload.
func NewKey(ext string) string {
	return "fiches/" + uuid.NewString() + ext
}

// proofExtensions are the file types accepted as proof of a tally.
var proofExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".pdf"}

// ValidateProofURL reports whether raw may be stored as a compilation photo:
// either a location under publicBase, or an https URL to an image or PDF.
func ValidateProofURL(raw, publicBase string) bool {
	if publicBase != "" && strings.HasPrefix(raw, strings.TrimRight(publicBase, "/")+"/") {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	for _, allowed := range proofExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// cleanKey rejects keys that are empty, absolute or escape the store root.
func cleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("empty key")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.ToSlash(filepath.Clean(key)), nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
