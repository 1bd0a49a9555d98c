package library

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/image-scraper/pkg/config"
	"github.com/Sriram-PR/image-scraper/pkg/models"
)

// ErrAssetNotFound is returned by Catalog.Get for an unknown ID
var ErrAssetNotFound = errors.New("asset not found")

// Catalog persists asset records
type Catalog interface {
	// Put inserts or replaces the record with the asset's ID
	Put(ctx context.Context, asset models.Asset) error

	// Get returns the record for id, or ErrAssetNotFound
	Get(ctx context.Context, id string) (*models.Asset, error)

	// List returns up to limit records, newest first. limit <= 0 returns all.
	List(ctx context.Context, limit int) ([]models.Asset, error)

	// Close releases the underlying database
	Close() error
}

// OpenCatalog opens the backend named by appCfg.CatalogBackend
func OpenCatalog(ctx context.Context, appCfg config.AppConfig, log *logrus.Entry) (Catalog, error) {
	switch appCfg.CatalogBackend {
	case config.CatalogBackendPostgres:
		return NewPostgresCatalog(ctx, appCfg.PostgresDSN, log)
	case config.CatalogBackendBadger, "":
		return NewBadgerCatalog(appCfg.StateDir, log)
	default:
		return nil, fmt.Errorf("unknown catalog backend '%s'", appCfg.CatalogBackend)
	}
}
