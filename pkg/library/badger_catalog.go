package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/image-scraper/pkg/log"
	"github.com/Sriram-PR/image-scraper/pkg/models"
	"github.com/Sriram-PR/image-scraper/pkg/utils"
)

const (
	assetKeyPrefix = "asset:"     // Prefix for asset ID keys in DB
	catalogDBDir   = "catalog_db" // Subdirectory name within stateDir for Badger DB files
)

// BadgerCatalog implements Catalog using BadgerDB
type BadgerCatalog struct {
	db       *badger.DB
	log      *logrus.Entry
	keyCount atomic.Int64 // Cached asset count
}

// NewBadgerCatalog opens (or creates) the catalog database under stateDir
func NewBadgerCatalog(stateDir string, logger *logrus.Entry) (*BadgerCatalog, error) {
	c := &BadgerCatalog{log: logger.WithField("component", "catalog")}

	dbPath := filepath.Join(stateDir, catalogDBDir)
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create catalog directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	badgerLogger := log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))
	opts := badger.DefaultOptions(dbPath).
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1)

	var err error
	c.db, err = badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}

	count, err := c.countKeys()
	if err != nil {
		c.log.Warnf("Failed to count existing assets: %v", err)
	} else {
		c.keyCount.Store(int64(count))
	}
	c.log.WithFields(logrus.Fields{"path": dbPath, "assets": count}).Info("Asset catalog opened")
	return c, nil
}

func (c *BadgerCatalog) countKeys() (int, error) {
	count := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(assetKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for transaction conflicts.
// Conflicts between concurrent imports touching the same key resolve almost immediately.
func (c *BadgerCatalog) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := c.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		c.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// Put implements Catalog
func (c *BadgerCatalog) Put(_ context.Context, asset models.Asset) error {
	if asset.ID == "" {
		return fmt.Errorf("%w: asset has no ID", utils.ErrDatabase)
	}
	key := []byte(assetKeyPrefix + asset.ID)
	val, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("%w: marshal asset '%s': %w", utils.ErrDatabase, asset.ID, err)
	}

	added := false
	err = c.dbUpdate(func(txn *badger.Txn) error {
		added = false
		if _, errGet := txn.Get(key); errors.Is(errGet, badger.ErrKeyNotFound) {
			added = true
		} else if errGet != nil {
			return errGet
		}
		return txn.SetEntry(badger.NewEntry(key, val))
	})
	if err != nil {
		c.log.WithField("key", string(key)).Errorf("DB Update error in Put: %v", err)
		return fmt.Errorf("%w: writing asset key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if added {
		c.keyCount.Add(1)
	}
	return nil
}

// Get implements Catalog
func (c *BadgerCatalog) Get(_ context.Context, id string) (*models.Asset, error) {
	key := []byte(assetKeyPrefix + id)
	var asset models.Asset

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &asset)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading asset key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	return &asset, nil
}

// List implements Catalog. Badger orders keys by ID, so records are sorted by creation time after the scan.
func (c *BadgerCatalog) List(ctx context.Context, limit int) ([]models.Asset, error) {
	assets := make([]models.Asset, 0, c.keyCount.Load())
	scanErrors := 0

	err := c.db.View(func(txn *badger.Txn) error {
		prefix := []byte(assetKeyPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			errVal := item.Value(func(val []byte) error {
				var a models.Asset
				if err := json.Unmarshal(val, &a); err != nil {
					c.log.Warnf("Skipping undecodable catalog entry '%s': %v", string(item.Key()), err)
					scanErrors++
					return nil
				}
				assets = append(assets, a)
				return nil
			})
			if errVal != nil {
				return errVal
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: listing assets: %w", utils.ErrDatabase, err)
	}

	sort.SliceStable(assets, func(i, j int) bool { return assets[i].CreatedAt.After(assets[j].CreatedAt) })
	if limit > 0 && len(assets) > limit {
		assets = assets[:limit]
	}
	if scanErrors > 0 {
		c.log.Warnf("Listed %d assets with %d undecodable entries", len(assets), scanErrors)
	}
	return assets, nil
}

// Count returns the cached number of assets
func (c *BadgerCatalog) Count() int {
	return int(c.keyCount.Load())
}

// RunGC runs periodic value log garbage collection until ctx is cancelled. Should be run in a goroutine.
func (c *BadgerCatalog) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if c.db == nil || c.db.IsClosed() {
				continue
			}
			var err error
			for err == nil {
				err = c.db.RunValueLogGC(0.5)
			}
			if errors.Is(err, badger.ErrNoRewrite) {
				c.log.Debug("BadgerDB GC finished (no rewrite needed).")
			} else {
				c.log.Errorf("BadgerDB GC error: %v", err)
			}

		case <-ctx.Done():
			c.log.Debugf("Stopping BadgerDB garbage collection: %v", ctx.Err())
			return
		}
	}
}

// Close implements Catalog
func (c *BadgerCatalog) Close() error {
	if c.db != nil && !c.db.IsClosed() {
		if err := c.db.Close(); err != nil {
			c.log.Errorf("Error closing catalog DB: %v", err)
			return err
		}
		c.log.Debug("Catalog DB closed.")
	}
	return nil
}
