package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/image-scraper/pkg/config"
	applog "github.com/Sriram-PR/image-scraper/pkg/log"
	"github.com/Sriram-PR/image-scraper/pkg/models"
	"github.com/Sriram-PR/image-scraper/pkg/orchestrate"
	"github.com/Sriram-PR/image-scraper/pkg/utils"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "scrape":
		runScrape(os.Args[2:])
	case "import":
		runImport(os.Args[2:])
	case "assets":
		runAssets(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "validate-api-key":
		runValidateAPIKey(os.Args[2:])
	case "mcp-server":
		runMcpServer(os.Args[2:])
	case "version":
		fmt.Printf("image-scraper %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `image-scraper - Page image extractor and media importer

Usage:
  image-scraper <command> [options]

Commands:
  scrape            List the images on a web page
  import            Download, transform and store a batch of images
  assets            List stored assets
  validate          Validate configuration file
  validate-api-key  Check the scraping API key
  mcp-server        Start MCP server for AI tool integration
  version           Show version info

Run 'image-scraper <command> -h' for command-specific help.`)
}

// loadConfig loads and parses the config file
func loadConfig(path string) (*config.AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg config.AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// loadAndValidateConfig loads the config file, applies defaults and logs warnings.
func loadAndValidateConfig(configFile string, log *logrus.Logger) (*config.AppConfig, error) {
	log.Debugf("Loading configuration from %s", configFile)
	appCfg, err := loadConfig(configFile)
	if err != nil {
		return nil, err
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		return nil, err
	}
	return appCfg, nil
}

// newServices builds the shared components for a one-shot command
func newServices(configPath, logLevel string, stderr io.Writer) (*orchestrate.Services, *logrus.Logger, error) {
	log := applog.New(logLevel, stderr)
	appCfg, err := loadAndValidateConfig(configPath, log)
	if err != nil {
		return nil, log, err
	}
	svc, err := orchestrate.New(*appCfg, logrus.NewEntry(log))
	if err != nil {
		return nil, log, err
	}
	return svc, log, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// writeJSON writes v as indented JSON to outPath, or to stdout when outPath is empty
func writeJSON(v interface{}, outPath string, stdout io.Writer) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if outPath == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("%w: writing %s: %w", utils.ErrFilesystem, outPath, err)
	}
	return nil
}

// runScrape handles the scrape subcommand
func runScrape(args []string) {
	fs := flag.NewFlagSet("scrape", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	pageURL := fs.String("url", "", "Page URL to scrape (required)")
	targetClass := fs.String("class", "", "Only return images carrying this CSS class")
	outFile := fs.String("out", "", "Write the JSON result to this file instead of stdout")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: image-scraper scrape -url <page> [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *pageURL == "" {
		fs.Usage()
		os.Exit(1)
	}

	ctx, stop := signalContext()
	defer stop()
	os.Exit(doScrape(ctx, *configFile, *pageURL, *targetClass, *outFile, *logLevel, os.Stdout, os.Stderr))
}

// doScrape scrapes one page and prints the image list as JSON.
// Returns exit code (0 = success, 1 = error).
func doScrape(ctx context.Context, configPath, pageURL, targetClass, outPath, logLevel string, stdout, stderr io.Writer) int {
	svc, _, err := newServices(configPath, logLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer svc.Close()

	res, err := svc.Scraper.ScrapeURL(ctx, pageURL, targetClass)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := writeJSON(res, outPath, stdout); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// importBatch is the input file of the import subcommand.
// Images accepts the output of scrape directly; options fall back to import_defaults.
type importBatch struct {
	Images  []models.ImageRecord  `json:"images"`
	Options *models.ImportOptions `json:"options,omitempty"`
}

// readImportBatch reads a batch from path, or from stdin when path is "-"
func readImportBatch(path string, stdin io.Reader) (importBatch, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return importBatch{}, fmt.Errorf("read batch: %w", err)
	}

	var batch importBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		return importBatch{}, fmt.Errorf("%w: batch JSON: %w", utils.ErrParsing, err)
	}
	if len(batch.Images) == 0 {
		return importBatch{}, errors.New("no images provided for import")
	}
	return batch, nil
}

// runImport handles the import subcommand
func runImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	inFile := fs.String("in", "", "Batch JSON file with 'images' and optional 'options' ('-' for stdin)")
	outFile := fs.String("out", "", "Write the JSON result to this file instead of stdout")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: image-scraper import -in <batch.json> [options]

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Scrape a page and import every image on it as WebP under 200 KB
  image-scraper scrape -url https://example.com/gallery -out scraped.json
  jq '{images: .images, options: {convert_format: "webp", max_filesize: 200}}' scraped.json > batch.json
  image-scraper import -in batch.json
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *inFile == "" {
		fs.Usage()
		os.Exit(1)
	}

	ctx, stop := signalContext()
	defer stop()
	os.Exit(doImport(ctx, *configFile, *inFile, *outFile, *logLevel, os.Stdin, os.Stdout, os.Stderr))
}

// doImport runs one import batch and prints the result as JSON.
// Returns exit code (0 = every image imported, 1 = any failure).
func doImport(ctx context.Context, configPath, inPath, outPath, logLevel string, stdin io.Reader, stdout, stderr io.Writer) int {
	batch, err := readImportBatch(inPath, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	svc, log, err := newServices(configPath, logLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer svc.Close()

	if err := svc.OpenStore(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	opts := config.GetEffectiveImportOptions(batch.Options, svc.AppConfig)
	res := svc.Pipeline.Import(ctx, batch.Images, opts)
	log.Infof("Imported %d of %d images into %s", res.ImportedCount, res.TotalCount, svc.Library.Dir())

	if err := writeJSON(res, outPath, stdout); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if len(res.Errors) > 0 {
		return 1
	}
	return 0
}

// runAssets handles the assets subcommand
func runAssets(args []string) {
	fs := flag.NewFlagSet("assets", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	limit := fs.Int("limit", 20, "Maximum number of assets to list (0 = all)")
	asJSON := fs.Bool("json", false, "Print assets as JSON")
	logLevel := fs.String("loglevel", "warn", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: image-scraper assets [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx, stop := signalContext()
	defer stop()
	os.Exit(doAssets(ctx, *configFile, *limit, *asJSON, *logLevel, os.Stdout, os.Stderr))
}

// doAssets lists stored assets, newest first.
// Returns exit code (0 = success, 1 = error).
func doAssets(ctx context.Context, configPath string, limit int, asJSON bool, logLevel string, stdout, stderr io.Writer) int {
	svc, _, err := newServices(configPath, logLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer svc.Close()

	if err := svc.OpenStore(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	assets, err := svc.Library.List(ctx, limit)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if asJSON {
		if err := writeJSON(assets, "", stdout); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	fmt.Fprintf(stdout, "Assets in %s:\n\n", svc.Library.Dir())
	for _, a := range assets {
		fmt.Fprintf(stdout, "  %s\n", a.Filename)
		fmt.Fprintf(stdout, "    ID: %s\n", a.ID)
		fmt.Fprintf(stdout, "    Type: %s, %d bytes\n", a.MIMEType, a.SizeBytes)
		if a.AltText != "" {
			fmt.Fprintf(stdout, "    Alt: %s\n", a.AltText)
		}
		fmt.Fprintln(stdout)
	}
	fmt.Fprintf(stdout, "%d asset(s)\n", len(assets))
	return 0
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: image-scraper validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	exitCode := doValidate(*configFile, os.Stdout, os.Stderr)
	os.Exit(exitCode)
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "OK: scraping_method=%s max_images=%d\n", appCfg.ScrapingMethod, appCfg.MaxImages)
	fmt.Fprintf(stdout, "OK: catalog_backend=%s library_dir=%s\n", appCfg.CatalogBackend, appCfg.LibraryDir)
	fmt.Fprintf(stdout, "OK: import_concurrency=%d max_retries=%d\n", appCfg.ImportConcurrency, appCfg.MaxRetries)
	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

// runValidateAPIKey handles the validate-api-key subcommand
func runValidateAPIKey(args []string) {
	fs := flag.NewFlagSet("validate-api-key", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	logLevel := fs.String("loglevel", "warn", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: image-scraper validate-api-key [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx, stop := signalContext()
	defer stop()
	os.Exit(doValidateAPIKey(ctx, *configFile, *logLevel, os.Stdout, os.Stderr))
}

// doValidateAPIKey checks the configured Firecrawl key against the API.
// Returns exit code (0 = valid, 1 = invalid or not applicable).
func doValidateAPIKey(ctx context.Context, configPath, logLevel string, stdout, stderr io.Writer) int {
	svc, _, err := newServices(configPath, logLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer svc.Close()

	if svc.AppConfig.ScrapingMethod != config.ScrapingMethodFirecrawl {
		fmt.Fprintf(stderr, "Error: API validation is only available when scraping_method is '%s'\n", config.ScrapingMethodFirecrawl)
		return 1
	}
	if err := svc.Firecrawl.ValidateAPIKey(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "OK: API key is valid and working")
	return 0
}
