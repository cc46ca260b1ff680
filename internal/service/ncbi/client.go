package ncbi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/lcwen/tcm-pipeline-go/internal/constants"
	"github.com/lcwen/tcm-pipeline-go/internal/service/cache"
	"github.com/lcwen/tcm-pipeline-go/pkg/errors"
	"go.uber.org/zap"
)

// GeneSummary is the slice of an NCBI gene record the pipeline uses.
// Symbol is empty when NCBI knows nothing about the id.
type GeneSummary struct {
	GeneID      string `json:"gene_id"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
}

// Client resolves gene ids to symbols via the NCBI E-utilities esummary
// endpoint, through a read-through cache. Live requests are spaced to
// respect the 3 requests/second limit for keyless clients.
type Client struct {
	httpClient *http.Client
	baseURL    string
	store      cache.Store
	delay      time.Duration
	logger     *zap.Logger
}

func NewClient(store cache.Store, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: constants.APIConfig.NCBITimeout},
		baseURL:    constants.APIConfig.NCBIBaseURL,
		store:      store,
		delay:      constants.APIConfig.NCBIDelay,
		logger:     logger,
	}
}

func (c *Client) FetchGeneSummary(ctx context.Context, geneID string) (GeneSummary, error) {
	cacheKey := fmt.Sprintf("gene_%s", geneID)

	var cached GeneSummary
	found, err := c.store.Get(ctx, cacheKey, &cached)
	if err != nil {
		c.logger.Warn("Gene cache read failed, fetching live", zap.String("gene_id", geneID), zap.Error(err))
	}
	if found {
		c.logger.Debug("Gene cache hit", zap.String("gene_id", geneID), zap.String("symbol", cached.Symbol))
		return cached, nil
	}

	summary, err := c.fetchLive(ctx, geneID)
	if err != nil {
		return GeneSummary{}, err
	}

	if err := c.store.Set(ctx, cacheKey, summary, constants.CacheTTL.GeneSummary); err != nil {
		c.logger.Warn("Gene cache write failed", zap.String("gene_id", geneID), zap.Error(err))
	}

	if c.delay > 0 {
		time.Sleep(c.delay)
	}

	return summary, nil
}

// computeDelay computes exponential backoff delay with jitter
func (c *Client) computeDelay(attempt int) time.Duration {
	base := constants.RetryConfig.BaseDelay * time.Duration(math.Pow(2, float64(attempt)))
	jitter := time.Duration(rand.Float64() * float64(constants.RetryConfig.Jitter))
	return base + jitter
}

func (c *Client) fetchLive(ctx context.Context, geneID string) (GeneSummary, error) {
	query := url.Values{}
	query.Set("db", "gene")
	query.Set("id", geneID)
	query.Set("retmode", "json")
	endpoint := fmt.Sprintf("%s/esummary.fcgi?%s", c.baseURL, query.Encode())

	var lastErr error
	for attempt := 0; attempt < constants.APIConfig.MaxRetryAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return GeneSummary{}, fmt.Errorf("build esummary request for gene %s: %w", geneID, err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("NCBI request failed, retrying",
				zap.String("gene_id", geneID),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			time.Sleep(c.computeDelay(attempt))
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			lastErr = errors.NewAPIError("ncbi esummary request failed", resp.StatusCode, map[string]any{
				"gene_id": geneID,
			})
			c.logger.Warn("NCBI returned non-OK status, retrying",
				zap.String("gene_id", geneID),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			time.Sleep(c.computeDelay(attempt))
			continue
		}
		if readErr != nil {
			lastErr = readErr
			time.Sleep(c.computeDelay(attempt))
			continue
		}

		summary, err := parseGeneSummary(body, geneID)
		if err != nil {
			return GeneSummary{}, fmt.Errorf("parse esummary for gene %s: %w", geneID, err)
		}

		if summary.Symbol == "" {
			c.logger.Warn("NCBI has no symbol for gene", zap.String("gene_id", geneID))
		} else {
			c.logger.Debug("Fetched gene summary",
				zap.String("gene_id", geneID),
				zap.String("symbol", summary.Symbol),
			)
		}
		return summary, nil
	}

	return GeneSummary{}, fmt.Errorf("ncbi esummary for gene %s failed after %d attempts: %w",
		geneID, constants.APIConfig.MaxRetryAttempts, lastErr)
}

type esummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

type geneDoc struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// parseGeneSummary pulls the document for geneID out of the esummary
// result map. An id NCBI does not know yields an empty-symbol summary
// rather than an error.
func parseGeneSummary(data []byte, geneID string) (GeneSummary, error) {
	var parsed esummaryResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return GeneSummary{}, err
	}

	raw, ok := parsed.Result[geneID]
	if !ok {
		return GeneSummary{GeneID: geneID}, nil
	}

	var doc geneDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return GeneSummary{}, err
	}

	return GeneSummary{
		GeneID:      geneID,
		Symbol:      doc.Name,
		Description: doc.Description,
	}, nil
}
