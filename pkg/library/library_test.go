package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/image-scraper/pkg/config"
	"github.com/Sriram-PR/image-scraper/pkg/models"
	"github.com/Sriram-PR/image-scraper/pkg/utils"
)

// Smallest valid GIF header, enough for content sniffing
var gifBytes = []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")

func newTestLibrary(t *testing.T) (*Library, *BadgerCatalog) {
	t.Helper()
	c := newTestCatalog(t)
	lib, err := NewLibrary(filepath.Join(t.TempDir(), "media"), c, testLogger())
	require.NoError(t, err)
	return lib, c
}

func writeSource(t *testing.T, content []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "download.tmp")
	require.NoError(t, os.WriteFile(p, content, 0644))
	return p
}

func TestLibrary_StoreRecordsAsset(t *testing.T) {
	lib, _ := newTestLibrary(t)
	ctx := context.Background()
	fixed := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	lib.now = func() time.Time { return fixed }
	src := writeSource(t, gifBytes)

	id, err := lib.Store(ctx, src, "pixel.gif")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	a, err := lib.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "pixel.gif", a.Filename)
	assert.Equal(t, filepath.Join(lib.Dir(), "pixel.gif"), a.Path)
	assert.Equal(t, "image/gif", a.MIMEType)
	assert.Equal(t, int64(len(gifBytes)), a.SizeBytes)
	assert.Len(t, a.SHA256, 64)
	assert.Equal(t, "pixel", a.Title)
	assert.Equal(t, fixed, a.CreatedAt)

	_, err = os.Stat(src)
	assert.NoError(t, err, "source is left for the caller to clean up")
}

func TestLibrary_StoreUniqueNames(t *testing.T) {
	lib, _ := newTestLibrary(t)
	ctx := context.Background()
	src := writeSource(t, gifBytes)

	var names []string
	for i := 0; i < 3; i++ {
		id, err := lib.Store(ctx, src, "shop.gif")
		require.NoError(t, err)
		a, err := lib.Get(ctx, id)
		require.NoError(t, err)
		names = append(names, a.Filename)
	}
	assert.Equal(t, []string{"shop.gif", "shop-1.gif", "shop-2.gif"}, names)
}

func TestLibrary_StoreMissingSource(t *testing.T) {
	lib, _ := newTestLibrary(t)
	_, err := lib.Store(context.Background(), filepath.Join(t.TempDir(), "gone"), "a.jpg")
	assert.ErrorIs(t, err, utils.ErrStoreFailed)
	assert.Equal(t, "Store_Filesystem", utils.CategorizeError(err))
}

type failingCatalog struct{ Catalog }

func (failingCatalog) Put(context.Context, models.Asset) error { return errors.New("disk full") }

func TestLibrary_StoreCatalogFailureRemovesCopy(t *testing.T) {
	c := newTestCatalog(t)
	lib, err := NewLibrary(t.TempDir(), failingCatalog{c}, testLogger())
	require.NoError(t, err)

	_, err = lib.Store(context.Background(), writeSource(t, gifBytes), "a.gif")
	assert.ErrorIs(t, err, utils.ErrStoreFailed)

	entries, err := os.ReadDir(lib.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLibrary_SetMetadata(t *testing.T) {
	lib, _ := newTestLibrary(t)
	ctx := context.Background()
	id, err := lib.Store(ctx, writeSource(t, gifBytes), "a.gif")
	require.NoError(t, err)

	require.NoError(t, lib.SetAltText(ctx, id, "A red shoe"))
	require.NoError(t, lib.SetTitle(ctx, id, "Shoe"))

	a, err := lib.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "A red shoe", a.AltText)
	assert.Equal(t, "Shoe", a.Title)

	assert.ErrorIs(t, lib.SetTitle(ctx, "missing", "x"), ErrAssetNotFound)
}

func TestLibrary_List(t *testing.T) {
	lib, _ := newTestLibrary(t)
	ctx := context.Background()
	src := writeSource(t, gifBytes)
	for i := 0; i < 3; i++ {
		_, err := lib.Store(ctx, src, "a.gif")
		require.NoError(t, err)
	}
	list, err := lib.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestDetectMIME_FallsBackToExtension(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "vector.svg")
	require.NoError(t, os.WriteFile(p, []byte("not really svg"), 0644))
	assert.Equal(t, "image/svg+xml", detectMIME(p))

	p = filepath.Join(dir, "blob.zzz")
	require.NoError(t, os.WriteFile(p, []byte{0x00, 0x01}, 0644))
	assert.Equal(t, "application/octet-stream", detectMIME(p))
}

func TestOpenCatalog(t *testing.T) {
	cfg := config.AppConfig{CatalogBackend: config.CatalogBackendBadger, StateDir: t.TempDir()}
	c, err := OpenCatalog(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &BadgerCatalog{}, c)
	require.NoError(t, c.Close())

	cfg.CatalogBackend = "mongo"
	_, err = OpenCatalog(context.Background(), cfg, testLogger())
	assert.Error(t, err)
}
