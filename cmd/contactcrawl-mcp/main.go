package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/contactcrawl/config"
	"github.com/use-agent/contactcrawl/models"
)

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	apiURL := os.Getenv("CONTACTCRAWL_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiURL = strings.TrimSuffix(apiURL, "/")
	apiKey := os.Getenv("CONTACTCRAWL_API_KEY")

	s := server.NewMCPServer(
		"contactcrawl",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	extractTool := mcp.NewTool("extract_contacts",
		mcp.WithDescription("Visit company websites with a headless browser and return the best contact email, a validated phone number and Facebook/Instagram/LinkedIn profile links for each. Sites with no contact data are omitted."),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description("Website URLs to crawl, e.g. https://example.com"),
		),
	)
	s.AddTool(extractTool, handleExtractContacts(apiURL, apiKey))

	batchTool := mcp.NewTool("batch_extract_contacts",
		mcp.WithDescription("Same as extract_contacts but runs as a background job on the server and polls until it finishes. Prefer this for long URL lists."),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description("Website URLs to crawl"),
		),
	)
	s.AddTool(batchTool, handleBatchExtract(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiDo sends a request to the contactcrawl API and decodes a 2xx JSON body
// into out. Non-2xx responses are turned into errors carrying the API message.
func apiDo(ctx context.Context, client *http.Client, method, url, apiKey string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr models.ErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("API error (%d)", resp.StatusCode)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func handleExtractContacts(apiURL, apiKey string) server.ToolHandlerFunc {
	// Crawls may take minutes per site; the server bounds each navigation.
	client := &http.Client{Timeout: 30 * time.Minute}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		urls, err := request.RequireStringSlice("urls")
		if err != nil || len(urls) == 0 {
			return mcp.NewToolResultError("urls is required and must be a non-empty array of strings"), nil
		}

		var result models.BatchResult
		if err := apiDo(ctx, client, http.MethodPost, apiURL+"/api/scrape", apiKey, models.ScrapeRequest{URLs: urls}, &result); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatRecords(len(urls), result.Results)), nil
	}
}

func handleBatchExtract(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		urls, err := request.RequireStringSlice("urls")
		if err != nil || len(urls) == 0 {
			return mcp.NewToolResultError("urls is required and must be a non-empty array of strings"), nil
		}

		var created models.BatchResponse
		if err := apiDo(ctx, client, http.MethodPost, apiURL+"/api/v1/batch", apiKey, models.BatchRequest{URLs: urls}, &created); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("batch request failed: %v", err)), nil
		}

		status, err := pollJob(ctx, client, apiURL+"/api/v1/batch/"+created.ID, apiKey)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling batch job failed: %v", err)), nil
		}
		if status.Status == models.JobFailed {
			return mcp.NewToolResultError(fmt.Sprintf("batch %s failed: %s", status.ID, status.Error)), nil
		}
		return mcp.NewToolResultText(formatRecords(status.Total, status.Results)), nil
	}
}

// pollJob polls a batch job until it leaves the processing state or ctx ends.
func pollJob(ctx context.Context, client *http.Client, url, apiKey string) (*models.BatchStatusResponse, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			var status models.BatchStatusResponse
			if err := apiDo(ctx, client, http.MethodGet, url, apiKey, nil, &status); err != nil {
				return nil, err
			}
			if status.Status != models.JobProcessing {
				return &status, nil
			}
		}
	}
}

// formatRecords renders site records as a compact text report.
func formatRecords(requested int, records []models.SiteRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d of %d sites had contact data\n", len(records), requested)

	for i, rec := range records {
		name := "-"
		if rec.CompanyName != nil {
			name = *rec.CompanyName
		}
		fmt.Fprintf(&sb, "\n--- [%d] %s (%s) ---\n", i+1, name, rec.URL)
		if len(rec.Data.Emails) > 0 {
			fmt.Fprintf(&sb, "email:     %s\n", rec.Data.Emails[0])
		}
		if len(rec.Data.Phones) > 0 {
			fmt.Fprintf(&sb, "phone:     %s\n", rec.Data.Phones[0])
		}
		if v := rec.Data.Social.Facebook; v != "" {
			fmt.Fprintf(&sb, "facebook:  %s\n", v)
		}
		if v := rec.Data.Social.Instagram; v != "" {
			fmt.Fprintf(&sb, "instagram: %s\n", v)
		}
		if v := rec.Data.Social.LinkedIn; v != "" {
			fmt.Fprintf(&sb, "linkedin:  %s\n", v)
		}
	}
	return sb.String()
}
