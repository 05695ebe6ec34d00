package repo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/triagestack/triage-engine/internal/models"
)

// ErrNotFound reports that the requested repository or file does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnavailable reports that the code host could not be reached or answered
// with a server error.
var ErrUnavailable = errors.New("code host unavailable")

// CodeHostClient browses source repositories over the code host's raw-file
// API and produces the snippet surrounding a failing line.
type CodeHostClient struct {
	baseURL       string
	token         string
	defaultBranch string
	snippetRadius int
	httpClient    *http.Client
}

// NewCodeHostClient constructs a client for the configured code host.
func NewCodeHostClient(baseURL, token, defaultBranch string, snippetRadius int, timeout time.Duration) *CodeHostClient {
	if defaultBranch == "" {
		defaultBranch = "main"
	}
	if snippetRadius <= 0 {
		snippetRadius = 8
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CodeHostClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		token:         token,
		defaultBranch: defaultBranch,
		snippetRadius: snippetRadius,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves the file and cuts the context window around line. An empty
// branch falls back to the configured default.
func (c *CodeHostClient) Fetch(ctx context.Context, repository, file string, line int, branch string) (models.CodeContext, error) {
	if c == nil || c.baseURL == "" {
		return models.CodeContext{}, fmt.Errorf("code host base URL not configured: %w", ErrUnavailable)
	}
	if branch == "" {
		branch = c.defaultBranch
	}

	endpoint := fmt.Sprintf("%s/api/v1/repos/%s/raw/%s?ref=%s",
		c.baseURL,
		url.PathEscape(repository),
		escapePath(file),
		url.QueryEscape(branch))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.CodeContext{}, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.CodeContext{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.CodeContext{}, fmt.Errorf("%w: %s@%s:%s", ErrNotFound, repository, branch, file)
	case resp.StatusCode != http.StatusOK:
		return models.CodeContext{}, fmt.Errorf("%w: code host returned %s", ErrUnavailable, resp.Status)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.CodeContext{}, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	return models.CodeContext{
		FilePath:   file,
		Line:       line,
		Snippet:    cutSnippet(string(content), line, c.snippetRadius),
		Repository: repository,
		Branch:     branch,
		URL:        fmt.Sprintf("%s/%s/blob/%s/%s#L%d", c.baseURL, repository, branch, file, line),
	}, nil
}

// cutSnippet returns radius lines either side of line (1-based), each
// prefixed with its line number, the failing line marked.
func cutSnippet(content string, line, radius int) string {
	lines := strings.Split(content, "\n")
	if line < 1 {
		line = 1
	}
	start := line - 1 - radius
	if start < 0 {
		start = 0
	}
	end := line + radius
	if end > len(lines) {
		end = len(lines)
	}
	if start >= len(lines) {
		start = len(lines) - 1
		if start < 0 {
			return ""
		}
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		marker := "  "
		if i == line-1 {
			marker = "> "
		}
		fmt.Fprintf(&b, "%s%4d | %s\n", marker, i+1, lines[i])
	}
	return strings.TrimRight(b.String(), "\n")
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
