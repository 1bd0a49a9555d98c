// Package importer runs a batch of extracted images through download, transform and storage.
package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/image-scraper/pkg/config"
	"github.com/Sriram-PR/image-scraper/pkg/metrics"
	"github.com/Sriram-PR/image-scraper/pkg/models"
	"github.com/Sriram-PR/image-scraper/pkg/naming"
	"github.com/Sriram-PR/image-scraper/pkg/transform"
	"github.com/Sriram-PR/image-scraper/pkg/utils"
)

// Downloader fetches an image into a temp file owned by the caller
type Downloader interface {
	Download(ctx context.Context, url string) (string, error)
}

// Transformer produces a transformed copy of an image, or returns the input path unchanged
type Transformer interface {
	Transform(path string, opts transform.Options) (string, error)
}

// AssetStore receives finished files. Store copies the file, so the caller still owns localPath.
type AssetStore interface {
	Store(ctx context.Context, localPath, filename string) (assetID string, err error)
	SetAltText(ctx context.Context, assetID, text string) error
	SetTitle(ctx context.Context, assetID, text string) error
}

// unknownLabel is used in the error list when an item has no filename
const unknownLabel = "unknown"

// Pipeline imports batches of image records
type Pipeline struct {
	downloader  Downloader
	transformer Transformer
	store       AssetStore
	concurrency int
	metrics     *metrics.Metrics
	log         *logrus.Entry
}

// NewPipeline wires the collaborators. m may be nil.
func NewPipeline(dl Downloader, tx Transformer, store AssetStore, appCfg config.AppConfig, m *metrics.Metrics, log *logrus.Entry) *Pipeline {
	return &Pipeline{
		downloader:  dl,
		transformer: tx,
		store:       store,
		concurrency: max(appCfg.ImportConcurrency, 1),
		metrics:     m,
		log:         log.WithField("component", "importer"),
	}
}

type itemResult struct {
	assetID string
	err     error
}

// Import processes every record and never aborts early: a failed item is reported in
// ImportResult.Errors as "<filename>: <message>", in submission order, and the rest continue.
// Sequential names derive from each record's position in records, not from the success count.
func (p *Pipeline) Import(ctx context.Context, records []models.ImageRecord, opts models.ImportOptions) models.ImportResult {
	opts = opts.Sanitize()
	start := time.Now()
	results := make([]itemResult, len(records))

	if p.concurrency <= 1 || len(records) <= 1 {
		for i := range records {
			results[i] = p.importOne(ctx, i, records[i], opts)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(p.concurrency)
		for i := range records {
			g.Go(func() error {
				results[i] = p.importOne(ctx, i, records[i], opts)
				return nil
			})
		}
		g.Wait()
	}

	res := models.ImportResult{TotalCount: len(records), Errors: []string{}}
	for i, r := range results {
		if r.err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", errorLabel(records[i]), r.err))
			continue
		}
		res.ImportedCount++
		res.AssetIDs = append(res.AssetIDs, r.assetID)
	}

	p.log.WithFields(logrus.Fields{
		"imported": res.ImportedCount,
		"total":    res.TotalCount,
		"failed":   len(res.Errors),
		"duration": time.Since(start).Round(time.Millisecond),
	}).Info("Import batch finished")
	return res
}

func errorLabel(rec models.ImageRecord) string {
	if name := strings.TrimSpace(rec.Filename); name != "" {
		return name
	}
	return unknownLabel
}

func (p *Pipeline) importOne(ctx context.Context, index int, rec models.ImageRecord, opts models.ImportOptions) itemResult {
	start := time.Now()
	rec.MergeIndividualSettings()
	rec.SanitizeOverrides()
	itemLog := p.log.WithFields(logrus.Fields{"index": index, "img_url": rec.URL})

	id, err := p.process(ctx, index, rec, opts, itemLog)
	if err != nil {
		category := utils.CategorizeError(err)
		p.metrics.ObserveImport(string(models.ImportStatusFailed), category, time.Since(start))
		itemLog.WithField("error_category", category).Warnf("Import failed: %v", err)
		return itemResult{err: err}
	}
	p.metrics.ObserveImport(string(models.ImportStatusImported), "", time.Since(start))
	itemLog.WithField("asset_id", id).Debug("Image imported")
	return itemResult{assetID: id}
}

func (p *Pipeline) process(ctx context.Context, index int, rec models.ImageRecord, opts models.ImportOptions, itemLog *logrus.Entry) (string, error) {
	if rec.URL == "" {
		return "", utils.ErrNoURL
	}

	downloaded, err := p.downloader.Download(ctx, rec.URL)
	if err != nil {
		return "", fmt.Errorf("could not download %s: %w", rec.URL, err)
	}

	txOpts := transform.Options{
		Format:        rec.EffectiveFormat(opts),
		MaxWidth:      rec.EffectiveMaxWidth(opts),
		MaxFilesizeKB: rec.EffectiveMaxFilesize(opts),
	}
	processed, err := p.transformer.Transform(downloaded, txOpts)
	if err != nil {
		removeTemp(downloaded, itemLog)
		return "", err
	}
	defer func() {
		removeTemp(downloaded, itemLog)
		if processed != downloaded {
			removeTemp(processed, itemLog)
		}
	}()

	filename := naming.ForImport(rec, opts, index)
	id, err := p.store.Store(ctx, processed, filename)
	if err != nil {
		if !errors.Is(err, utils.ErrStoreFailed) {
			err = fmt.Errorf("%w: %w", utils.ErrStoreFailed, err)
		}
		return "", err
	}

	if alt := rec.EffectiveAlt(opts); alt != "" {
		if err := p.store.SetAltText(ctx, id, alt); err != nil {
			itemLog.WithField("asset_id", id).Warnf("Could not set alt text: %v", err)
		}
	}
	if title := rec.EffectiveTitle(opts); title != "" {
		if err := p.store.SetTitle(ctx, id, title); err != nil {
			itemLog.WithField("asset_id", id).Warnf("Could not set title: %v", err)
		}
	}
	return id, nil
}

func removeTemp(path string, log *logrus.Entry) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("Could not remove temp file %s: %v", path, err)
	}
}
