package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/triagestack/triage-engine/internal/models"
)

// WikiClient persists analysis records as documentation pages.
type WikiClient struct {
	baseURL    string
	token      string
	space      string
	httpClient *http.Client
}

// NewWikiClient constructs a documentation publisher.
func NewWikiClient(baseURL, token, space string, timeout time.Duration) *WikiClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WikiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		space:      space,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type wikiPage struct {
	Space string `json:"space"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

type wikiPageResponse struct {
	ID string `json:"id"`
}

// CreateRecord publishes one analysis as a new page and returns its id.
func (c *WikiClient) CreateRecord(ctx context.Context, analysis models.AnalysisResult) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", fmt.Errorf("wiki base URL not configured")
	}

	page := wikiPage{
		Space: c.space,
		Title: recordTitle(analysis),
		Body:  renderRecord(analysis),
	}

	var parsed wikiPageResponse
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/api/v2/pages", page, &parsed); err != nil {
		return "", fmt.Errorf("wiki create failed: %w", err)
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("wiki create returned no page id")
	}
	return parsed.ID, nil
}

// UpdateRecord replaces the body of an existing page.
func (c *WikiClient) UpdateRecord(ctx context.Context, id string, analysis models.AnalysisResult) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("wiki base URL not configured")
	}

	page := wikiPage{
		Space: c.space,
		Title: recordTitle(analysis),
		Body:  renderRecord(analysis),
	}
	if err := c.doJSON(ctx, http.MethodPut, fmt.Sprintf("%s/api/v2/pages/%s", c.baseURL, id), page, nil); err != nil {
		return fmt.Errorf("wiki update failed: %w", err)
	}
	return nil
}

// PublishDigest stores a free-form digest page (used by the insights job).
func (c *WikiClient) PublishDigest(ctx context.Context, title, body string) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", fmt.Errorf("wiki base URL not configured")
	}
	var parsed wikiPageResponse
	err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/api/v2/pages", wikiPage{Space: c.space, Title: title, Body: body}, &parsed)
	if err != nil {
		return "", fmt.Errorf("wiki digest failed: %w", err)
	}
	return parsed.ID, nil
}

func (c *WikiClient) doJSON(ctx context.Context, method, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("wiki returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func recordTitle(analysis models.AnalysisResult) string {
	return fmt.Sprintf("Incident %s: %s in %s", analysis.ID, analysis.Event.ErrorType, analysis.Event.Service)
}

func renderRecord(analysis models.AnalysisResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "h2. %s in %s\n\n", analysis.Event.ErrorType, analysis.Event.Service)
	fmt.Fprintf(&b, "*Message:* %s\n", analysis.Event.Message)
	if analysis.Event.FilePath != "" {
		fmt.Fprintf(&b, "*Location:* %s:%d\n", analysis.Event.FilePath, analysis.Event.Line)
	}
	fmt.Fprintf(&b, "*Impact:* %s\n", analysis.Result.Impact)
	fmt.Fprintf(&b, "*Category:* %s\n", analysis.Result.Category)
	fmt.Fprintf(&b, "*Confidence:* %.2f\n\n", analysis.Result.ConfidenceLevel)
	if analysis.Result.RootCause != "" {
		fmt.Fprintf(&b, "h3. Root cause\n%s\n\n", analysis.Result.RootCause)
	}
	if len(analysis.Result.Suggestions) > 0 {
		b.WriteString("h3. Suggestions\n")
		for _, suggestion := range analysis.Result.Suggestions {
			fmt.Fprintf(&b, "* %s\n", suggestion)
		}
		b.WriteString("\n")
	}
	if len(analysis.Result.References) > 0 {
		b.WriteString("h3. References\n")
		for _, ref := range analysis.Result.References {
			fmt.Fprintf(&b, "* %s\n", ref)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "----\nAnalyzed by %s %s in %dms (%d tokens)\n",
		analysis.Metadata.ModelName,
		analysis.Metadata.ModelVersion,
		analysis.Metadata.ProcessingTimeMS,
		analysis.Metadata.TokenCount)
	return b.String()
}
