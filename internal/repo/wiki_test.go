package repo

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/triagestack/triage-engine/internal/models"
)

func wikiTestClient(t *testing.T, status int, body string, method *string, capture *wikiPage) *WikiClient {
	t.Helper()
	client := NewWikiClient("https://wiki.internal", "tok-456", "TRIAGE", time.Second)
	client.httpClient = newTestClient(func(req *http.Request) (*http.Response, error) {
		if method != nil {
			*method = req.Method
		}
		if capture != nil {
			defer req.Body.Close()
			if err := json.NewDecoder(req.Body).Decode(capture); err != nil {
				t.Fatalf("decode request payload: %v", err)
			}
		}
		return stubResponse(status, body), nil
	})
	return client
}

func sampleAnalysis() models.AnalysisResult {
	return models.AnalysisResult{
		ID:        "an-1",
		CreatedAt: time.Now().UTC(),
		Event: models.ErrorEvent{
			Service:   "payments",
			FilePath:  "src/Billing.java",
			Line:      42,
			ErrorType: "NullPointerException",
			Message:   "billing profile was null",
		},
		Result: models.Diagnosis{
			RootCause:       "billing profile loaded before session init",
			Suggestions:     []string{"guard the profile lookup"},
			ConfidenceLevel: 0.9,
			Category:        "NullSafety",
			Impact:          models.ImpactHigh,
		},
		Metadata: models.AnalysisMetadata{ModelName: "gemini-2.0-flash", ModelVersion: "v1", ProcessingTimeMS: 812, TokenCount: 640},
	}
}

func TestWikiCreateRecord(t *testing.T) {
	var method string
	var page wikiPage
	client := wikiTestClient(t, http.StatusCreated, `{"id":"page-9"}`, &method, &page)

	id, err := client.CreateRecord(context.Background(), sampleAnalysis())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "page-9" {
		t.Fatalf("expected page id, got %q", id)
	}
	if method != http.MethodPost {
		t.Fatalf("expected POST, got %s", method)
	}
	if page.Space != "TRIAGE" {
		t.Fatalf("unexpected space %q", page.Space)
	}
	if !strings.Contains(page.Title, "NullPointerException in payments") {
		t.Fatalf("unexpected title %q", page.Title)
	}
	for _, want := range []string{
		"h3. Root cause",
		"billing profile loaded before session init",
		"* guard the profile lookup",
		"src/Billing.java:42",
		"gemini-2.0-flash",
	} {
		if !strings.Contains(page.Body, want) {
			t.Fatalf("rendered body missing %q:\n%s", want, page.Body)
		}
	}
}

func TestWikiCreateRecordMissingID(t *testing.T) {
	client := wikiTestClient(t, http.StatusOK, `{}`, nil, nil)

	if _, err := client.CreateRecord(context.Background(), sampleAnalysis()); err == nil {
		t.Fatal("expected error when server returns no page id")
	}
}

func TestWikiUpdateRecord(t *testing.T) {
	var method string
	client := wikiTestClient(t, http.StatusOK, `{}`, &method, nil)

	if err := client.UpdateRecord(context.Background(), "page-9", sampleAnalysis()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != http.MethodPut {
		t.Fatalf("expected PUT, got %s", method)
	}
}

func TestWikiPublishDigest(t *testing.T) {
	var page wikiPage
	client := wikiTestClient(t, http.StatusCreated, `{"id":"digest-1"}`, nil, &page)

	id, err := client.PublishDigest(context.Background(), "Weekly hotspots", "h2. Hotspots")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "digest-1" {
		t.Fatalf("expected digest id, got %q", id)
	}
	if page.Title != "Weekly hotspots" || page.Body != "h2. Hotspots" {
		t.Fatalf("unexpected digest payload %+v", page)
	}
}

func TestWikiServerError(t *testing.T) {
	client := wikiTestClient(t, http.StatusInternalServerError, "", nil, nil)

	if _, err := client.CreateRecord(context.Background(), sampleAnalysis()); err == nil {
		t.Fatal("expected error on 5xx")
	}
	if err := client.UpdateRecord(context.Background(), "page-9", sampleAnalysis()); err == nil {
		t.Fatal("expected error on 5xx")
	}
}
