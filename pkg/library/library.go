// Package library stores imported images on disk and records them in an asset catalog.
package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/image-scraper/pkg/models"
	"github.com/Sriram-PR/image-scraper/pkg/utils"
)

const maxNameCollisions = 1000

// Library copies files into a directory and records each as an asset in a Catalog
type Library struct {
	dir     string
	catalog Catalog
	log     *logrus.Entry
	mu      sync.Mutex // Serializes read-modify-write metadata updates
	now     func() time.Time
}

// NewLibrary creates the library directory if needed
func NewLibrary(dir string, catalog Catalog, log *logrus.Entry) (*Library, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve library dir '%s': %w", utils.ErrFilesystem, dir, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("%w: create library dir '%s': %w", utils.ErrFilesystem, abs, err)
	}
	return &Library{
		dir:     abs,
		catalog: catalog,
		log:     log.WithField("component", "library"),
		now:     time.Now,
	}, nil
}

// Dir returns the absolute library directory
func (l *Library) Dir() string { return l.dir }

// Store copies the file at localPath into the library as filename, or as
// name-1.ext, name-2.ext, ... when that name is taken, and records it.
// The source file is left in place.
func (l *Library) Store(ctx context.Context, localPath, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", utils.ErrStoreFailed, err)
	}
	filename = utils.SanitizeFilename(filename)

	dest, size, sum, err := l.copyUnique(localPath, filename)
	if err != nil {
		return "", err
	}

	stored := filepath.Base(dest)
	asset := models.Asset{
		ID:        uuid.NewString(),
		Filename:  stored,
		Path:      dest,
		MIMEType:  detectMIME(dest),
		SizeBytes: size,
		SHA256:    sum,
		Title:     strings.TrimSuffix(stored, filepath.Ext(stored)),
		CreatedAt: l.now().UTC(),
	}
	if err := l.catalog.Put(ctx, asset); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("%w: record '%s': %w", utils.ErrStoreFailed, stored, err)
	}

	l.log.WithFields(logrus.Fields{"id": asset.ID, "file": stored, "size": size, "mime": asset.MIMEType}).Info("Asset stored")
	return asset.ID, nil
}

// copyUnique copies src to the first free name derived from filename
func (l *Library) copyUnique(src, filename string) (string, int64, string, error) {
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)

	for n := 0; n < maxNameCollisions; n++ {
		candidate := filename
		if n > 0 {
			candidate = fmt.Sprintf("%s-%d%s", stem, n, ext)
		}
		dest := filepath.Join(l.dir, candidate)

		size, sum, err := utils.CopyFileSHA256(src, dest)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", 0, "", fmt.Errorf("%w: %w: copy to '%s': %w", utils.ErrStoreFailed, utils.ErrFilesystem, candidate, err)
		}
		return dest, size, sum, nil
	}
	return "", 0, "", fmt.Errorf("%w: no free name for '%s' after %d attempts", utils.ErrStoreFailed, filename, maxNameCollisions)
}

// SetAltText records alt text for the asset
func (l *Library) SetAltText(ctx context.Context, id, text string) error {
	return l.update(ctx, id, func(a *models.Asset) { a.AltText = text })
}

// SetTitle records a title for the asset
func (l *Library) SetTitle(ctx context.Context, id, text string) error {
	return l.update(ctx, id, func(a *models.Asset) { a.Title = text })
}

func (l *Library) update(ctx context.Context, id string, mutate func(*models.Asset)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	asset, err := l.catalog.Get(ctx, id)
	if err != nil {
		return err
	}
	mutate(asset)
	return l.catalog.Put(ctx, *asset)
}

// Get returns a stored asset
func (l *Library) Get(ctx context.Context, id string) (*models.Asset, error) {
	return l.catalog.Get(ctx, id)
}

// List returns up to limit assets, newest first
func (l *Library) List(ctx context.Context, limit int) ([]models.Asset, error) {
	return l.catalog.List(ctx, limit)
}

// Close closes the catalog
func (l *Library) Close() error {
	return l.catalog.Close()
}

// detectMIME sniffs the file content, falling back to the extension
func detectMIME(path string) string {
	if f, err := os.Open(path); err == nil {
		defer f.Close()
		buf := make([]byte, 512)
		n, _ := io.ReadFull(f, buf)
		if ct := http.DetectContentType(buf[:n]); strings.HasPrefix(ct, "image/") {
			return ct
		}
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
