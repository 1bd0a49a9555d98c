package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Sriram-PR/image-scraper/pkg/config"
	"github.com/Sriram-PR/image-scraper/pkg/models"
	"github.com/Sriram-PR/image-scraper/pkg/utils"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

// handleScrapeImages handles the scrape_images tool
func (s *Server) handleScrapeImages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageURL := request.GetString("url", "")
	if strings.TrimSpace(pageURL) == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}
	targetClass := request.GetString("target_class", "")

	startTime := time.Now()
	res, err := s.svc.Scraper.ScrapeURL(ctx, pageURL, targetClass)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := map[string]interface{}{
		"url":            pageURL,
		"images":         res.Images,
		"images_count":   res.ImagesCount,
		"scrape_time_ms": time.Since(startTime).Milliseconds(),
	}
	if targetClass != "" {
		result["target_class"] = targetClass
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleImportImages handles the import_images tool
func (s *Server) handleImportImages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records, opts, err := parseImportRequest(request.GetString("images", ""), request.GetString("options", ""), s.svc.AppConfig)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if request.GetBool("background", false) {
		job := s.jobManager.CreateJob(len(records))
		s.jobsWG.Add(1)
		go func() {
			defer s.jobsWG.Done()
			s.runImportJob(job.ID, records, opts)
		}()

		result := map[string]interface{}{
			"status":      "started",
			"message":     "Import started in the background",
			"job_id":      job.ID,
			"total_count": len(records),
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	res := s.svc.Pipeline.Import(ctx, records, opts)
	return mcp.NewToolResultText(formatJSON(importResultMap(res))), nil
}

// runImportJob runs a background import under the job's own context
func (s *Server) runImportJob(jobID string, records []models.ImageRecord, opts models.ImportOptions) {
	jobLog := s.log.WithField("job_id", jobID)
	jobLog.Infof("Background import of %d images started", len(records))

	res := s.svc.Pipeline.Import(s.jobManager.GetContext(jobID), records, opts)
	s.jobManager.Finish(jobID, res)

	jobLog.Infof("Background import finished: %d/%d imported", res.ImportedCount, res.TotalCount)
}

// handleGetImportStatus handles the get_import_status tool
func (s *Server) handleGetImportStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job := s.jobManager.GetJob(jobID)
	if job == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	result := map[string]interface{}{
		"job_id":      job.ID,
		"status":      job.Status,
		"started_at":  job.StartedAt.Format(time.RFC3339),
		"total_count": job.TotalCount,
	}
	if !job.CompletedAt.IsZero() {
		result["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		result["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}
	if job.Result != nil {
		result["result"] = importResultMap(*job.Result)
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleCancelImport handles the cancel_import tool
func (s *Server) handleCancelImport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}
	if s.jobManager.GetJob(jobID) == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	cancelled := s.jobManager.CancelJob(jobID)
	result := map[string]interface{}{
		"job_id":    jobID,
		"cancelled": cancelled,
	}
	if !cancelled {
		result["message"] = "Job is not running"
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleListImportJobs handles the list_import_jobs tool
func (s *Server) handleListImportJobs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobs := s.jobManager.ListJobs()
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].StartedAt.After(jobs[j].StartedAt) })

	list := make([]map[string]interface{}, 0, len(jobs))
	for _, job := range jobs {
		entry := map[string]interface{}{
			"job_id":      job.ID,
			"status":      job.Status,
			"started_at":  job.StartedAt.Format(time.RFC3339),
			"total_count": job.TotalCount,
		}
		if job.Result != nil {
			entry["imported_count"] = job.Result.ImportedCount
		}
		list = append(list, entry)
	}

	result := map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleValidateAPIKey handles the validate_api_key tool
func (s *Server) handleValidateAPIKey(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.svc.AppConfig.ScrapingMethod != config.ScrapingMethodFirecrawl {
		return mcp.NewToolResultError("API validation is only available when scraping_method is 'firecrawl'"), nil
	}
	if err := s.svc.Firecrawl.ValidateAPIKey(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result := map[string]interface{}{
		"valid":   true,
		"message": "API key is valid and working",
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleListAssets handles the list_assets tool
func (s *Server) handleListAssets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", defaultListLimit)
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	assets, err := s.svc.Library.List(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list assets: %v", err)), nil
	}
	result := map[string]interface{}{
		"assets":      assets,
		"total_found": len(assets),
		"library_dir": s.svc.Library.Dir(),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// parseImportRequest decodes the images array and options object of an import request.
// Missing options fall back to the configured import defaults.
func parseImportRequest(imagesJSON, optionsJSON string, appCfg config.AppConfig) ([]models.ImageRecord, models.ImportOptions, error) {
	if strings.TrimSpace(imagesJSON) == "" {
		return nil, models.ImportOptions{}, errors.New("no images provided for import")
	}
	var records []models.ImageRecord
	if err := json.Unmarshal([]byte(imagesJSON), &records); err != nil {
		return nil, models.ImportOptions{}, fmt.Errorf("%w: images must be a JSON array of image objects: %v", utils.ErrParsing, err)
	}
	if len(records) == 0 {
		return nil, models.ImportOptions{}, errors.New("no images provided for import")
	}

	var reqOpts *models.ImportOptions
	if strings.TrimSpace(optionsJSON) != "" {
		reqOpts = &models.ImportOptions{}
		if err := json.Unmarshal([]byte(optionsJSON), reqOpts); err != nil {
			return nil, models.ImportOptions{}, fmt.Errorf("%w: options must be a JSON object: %v", utils.ErrParsing, err)
		}
	}
	return records, config.GetEffectiveImportOptions(reqOpts, appCfg), nil
}

func importResultMap(res models.ImportResult) map[string]interface{} {
	m := map[string]interface{}{
		"imported_count": res.ImportedCount,
		"total_count":    res.TotalCount,
		"errors":         res.Errors,
	}
	if len(res.AssetIDs) > 0 {
		m["asset_ids"] = res.AssetIDs
	}
	return m
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
