package library

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/image-scraper/pkg/log"
	"github.com/Sriram-PR/image-scraper/pkg/models"
	"github.com/Sriram-PR/image-scraper/pkg/utils"
)

const createAssetsTable = `
CREATE TABLE IF NOT EXISTS assets (
	id          TEXT PRIMARY KEY,
	filename    TEXT NOT NULL,
	path        TEXT NOT NULL,
	mime_type   TEXT NOT NULL,
	size_bytes  BIGINT NOT NULL,
	sha256      TEXT NOT NULL,
	alt_text    TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS assets_created_at_idx ON assets (created_at DESC);`

const assetColumns = `id, filename, path, mime_type, size_bytes, sha256, alt_text, title, created_at`

// PostgresCatalog implements Catalog on a PostgreSQL table
type PostgresCatalog struct {
	db  *pgxpool.Pool
	log *logrus.Entry
}

// NewPostgresCatalog connects to dsn and creates the assets table if needed
func NewPostgresCatalog(ctx context.Context, dsn string, logger *logrus.Entry) (*PostgresCatalog, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: parse postgres dsn: %w", utils.ErrDatabase, err)
	}
	poolCfg.ConnConfig.Tracer = &tracelog.TraceLog{
		Logger:   log.NewPgxLogrusAdapter(logger.WithField("component", "pgx")),
		LogLevel: log.PgxLogLevel(logger.Logger.GetLevel()),
	}

	db, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to connect to database: %w", utils.ErrDatabase, err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %w", utils.ErrDatabase, err)
	}
	if _, err := db.Exec(ctx, createAssetsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create assets table: %w", utils.ErrDatabase, err)
	}

	c := &PostgresCatalog{db: db, log: logger.WithField("component", "catalog")}
	c.log.Info("Asset catalog connected to PostgreSQL")
	return c, nil
}

// Put implements Catalog
func (c *PostgresCatalog) Put(ctx context.Context, a models.Asset) error {
	_, err := c.db.Exec(ctx, `
		INSERT INTO assets (`+assetColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			filename = EXCLUDED.filename,
			path = EXCLUDED.path,
			mime_type = EXCLUDED.mime_type,
			size_bytes = EXCLUDED.size_bytes,
			sha256 = EXCLUDED.sha256,
			alt_text = EXCLUDED.alt_text,
			title = EXCLUDED.title`,
		a.ID, a.Filename, a.Path, a.MIMEType, a.SizeBytes, a.SHA256, a.AltText, a.Title, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: upsert asset '%s': %w", utils.ErrDatabase, a.ID, err)
	}
	return nil
}

// Get implements Catalog
func (c *PostgresCatalog) Get(ctx context.Context, id string) (*models.Asset, error) {
	row := c.db.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1`, id)
	a, err := scanAsset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read asset '%s': %w", utils.ErrDatabase, id, err)
	}
	return &a, nil
}

// List implements Catalog
func (c *PostgresCatalog) List(ctx context.Context, limit int) ([]models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := c.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list assets: %w", utils.ErrDatabase, err)
	}
	assets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Asset, error) {
		return scanAsset(row)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list assets: %w", utils.ErrDatabase, err)
	}
	return assets, nil
}

// Close implements Catalog
func (c *PostgresCatalog) Close() error {
	c.db.Close()
	return nil
}

func scanAsset(row pgx.Row) (models.Asset, error) {
	var a models.Asset
	err := row.Scan(&a.ID, &a.Filename, &a.Path, &a.MIMEType, &a.SizeBytes, &a.SHA256, &a.AltText, &a.Title, &a.CreatedAt)
	return a, err
}
