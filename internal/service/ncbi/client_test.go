package ncbi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lcwen/tcm-pipeline-go/internal/service/cache"
	"go.uber.org/zap"
)

const sampleESummaryJSON = `{
  "header": {"type": "esummary", "version": "0.3"},
  "result": {
    "uids": ["1017"],
    "1017": {
      "uid": "1017",
      "name": "CDK2",
      "description": "cyclin dependent kinase 2",
      "status": "",
      "organism": {"scientificname": "Homo sapiens", "taxid": 9606}
    }
  }
}`

func TestParseGeneSummary(t *testing.T) {
	summary, err := parseGeneSummary([]byte(sampleESummaryJSON), "1017")
	if err != nil {
		t.Fatalf("parseGeneSummary failed: %v", err)
	}

	if summary.GeneID != "1017" || summary.Symbol != "CDK2" {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if summary.Description != "cyclin dependent kinase 2" {
		t.Errorf("description lost: %+v", summary)
	}
}

func TestParseGeneSummaryUnknownGene(t *testing.T) {
	summary, err := parseGeneSummary([]byte(sampleESummaryJSON), "424242")
	if err != nil {
		t.Fatalf("unknown gene must not be an error, got %v", err)
	}
	if summary.GeneID != "424242" || summary.Symbol != "" {
		t.Errorf("unknown gene should yield empty symbol: %+v", summary)
	}
}

func TestFetchGeneSummaryCachesResult(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if got := r.URL.Query().Get("db"); got != "gene" {
			t.Errorf("db = %q, want gene", got)
		}
		if got := r.URL.Query().Get("retmode"); got != "json" {
			t.Errorf("retmode = %q, want json", got)
		}
		fmt.Fprint(w, sampleESummaryJSON)
	}))
	defer srv.Close()

	store, err := cache.NewFileStore(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	client := &Client{
		httpClient: http.DefaultClient,
		baseURL:    srv.URL,
		store:      store,
		delay:      0,
		logger:     zap.NewNop(),
	}
	ctx := context.Background()

	first, err := client.FetchGeneSummary(ctx, "1017")
	if err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}
	if first.Symbol != "CDK2" {
		t.Fatalf("symbol = %q, want CDK2", first.Symbol)
	}

	second, err := client.FetchGeneSummary(ctx, "1017")
	if err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	if second.Symbol != "CDK2" {
		t.Fatalf("cached symbol = %q, want CDK2", second.Symbol)
	}
	if hits != 1 {
		t.Errorf("server hits = %d, want 1 (second call must come from cache)", hits)
	}
}
