package pubchem

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

// AssayRecord is one bioassay row kept from a compound's assay summary.
// Only rows naming a target gene are kept; everything else in the
// summary has no use downstream.
type AssayRecord struct {
	AID             string `json:"aid"`
	SID             string `json:"sid"`
	CID             string `json:"cid"`
	Outcome         string `json:"outcome"`
	TargetAccession string `json:"target_accession"`
	TargetGeneID    string `json:"target_gene_id"`
	ActivityValue   string `json:"activity_value"`
	ActivityName    string `json:"activity_name"`
	AssayName       string `json:"assay_name"`
	AssayType       string `json:"assay_type"`
	PubMedID        string `json:"pubmed_id"`
}

// assay summary rows carry at least this many cells; shorter rows are
// malformed and dropped.
const minAssayCells = 13

// maxAssaysPerCompound caps how many rows are kept per compound,
// preferring Active outcomes.
const maxAssaysPerCompound = 10

// Client fetches compound assay summaries from the PubChem PUG REST API
// through a read-through cache. Live requests are spaced by a fixed
// delay to stay inside PubChem's request-rate policy.
type Client struct {
	httpClient *http.Client
	baseURL    string
	store      cache.Store
	delay      time.Duration
	logger     *zap.Logger
}

func NewClient(store cache.Store, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: constants.APIConfig.PubChemTimeout},
		baseURL:    constants.APIConfig.PubChemBaseURL,
		store:      store,
		delay:      constants.APIConfig.PubChemDelay,
		logger:     logger,
	}
}

// FetchAssaySummary returns the capped assay rows for a compound. A
// compound without assay data yields an empty slice, not an error, and
// the empty result is cached like any other.
func (c *Client) FetchAssaySummary(ctx context.Context, cid string) ([]AssayRecord, error) {
	cacheKey := fmt.Sprintf("cid_%s_assay", cid)

	var cached []AssayRecord
	found, err := c.store.Get(ctx, cacheKey, &cached)
	if err != nil {
		c.logger.Warn("Assay cache read failed, fetching live", zap.String("cid", cid), zap.Error(err))
	}
	if found {
		c.logger.Debug("Assay cache hit", zap.String("cid", cid), zap.Int("rows", len(cached)))
		return cached, nil
	}

	records, err := c.fetchLive(ctx, cid)
	if err != nil {
		return nil, err
	}

	if err := c.store.Set(ctx, cacheKey, records, constants.CacheTTL.AssaySummary); err != nil {
		c.logger.Warn("Assay cache write failed", zap.String("cid", cid), zap.Error(err))
	}

	if c.delay > 0 {
		time.Sleep(c.delay)
	}

	return records, nil
}

// computeDelay computes exponential backoff delay with jitter
func (c *Client) computeDelay(attempt int) time.Duration {
	base := constants.RetryConfig.BaseDelay * time.Duration(math.Pow(2, float64(attempt)))
	jitter := time.Duration(rand.Float64() * float64(constants.RetryConfig.Jitter))
	return base + jitter
}

func (c *Client) fetchLive(ctx context.Context, cid string) ([]AssayRecord, error) {
	endpoint := fmt.Sprintf("%s/compound/cid/%s/assaysummary/JSON", c.baseURL, url.PathEscape(cid))

	var lastErr error
	for attempt := 0; attempt < constants.APIConfig.MaxRetryAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("build assay request for cid %s: %w", cid, err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("PubChem request failed, retrying",
				zap.String("cid", cid),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			time.Sleep(c.computeDelay(attempt))
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			c.logger.Debug("No assay data for compound", zap.String("cid", cid))
			return []AssayRecord{}, nil
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = errors.NewAPIError("pubchem assay summary request failed", resp.StatusCode, map[string]any{
				"cid": cid,
			})
			c.logger.Warn("PubChem returned non-OK status, retrying",
				zap.String("cid", cid),
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

		records, err := parseAssaySummary(body)
		if err != nil {
			return nil, fmt.Errorf("parse assay summary for cid %s: %w", cid, err)
		}

		kept := capPreferringActive(records, maxAssaysPerCompound)
		c.logger.Info("Fetched assay summary",
			zap.String("cid", cid),
			zap.Int("target_rows", len(records)),
			zap.Int("kept", len(kept)),
		)
		return kept, nil
	}

	return nil, fmt.Errorf("pubchem assay summary for cid %s failed after %d attempts: %w",
		cid, constants.APIConfig.MaxRetryAttempts, lastErr)
}

type assaySummaryResponse struct {
	Table struct {
		Columns struct {
			Column []string `json:"Column"`
		} `json:"Columns"`
		Row []struct {
			Cell []string `json:"Cell"`
		} `json:"Row"`
	} `json:"Table"`
}

// parseAssaySummary extracts the rows that name a target gene. Cell
// layout follows the PUG REST table: AID, panel, SID, CID, outcome,
// target accession, target gene id, activity value, activity name,
// assay name, assay type, pubmed id.
func parseAssaySummary(data []byte) ([]AssayRecord, error) {
	var parsed assaySummaryResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}

	records := make([]AssayRecord, 0, len(parsed.Table.Row))
	for _, row := range parsed.Table.Row {
		cells := row.Cell
		if len(cells) < minAssayCells {
			continue
		}
		if cells[6] == "" {
			continue
		}

		records = append(records, AssayRecord{
			AID:             cells[0],
			SID:             cells[2],
			CID:             cells[3],
			Outcome:         cells[4],
			TargetAccession: cells[5],
			TargetGeneID:    cells[6],
			ActivityValue:   cells[7],
			ActivityName:    cells[8],
			AssayName:       cells[9],
			AssayType:       cells[10],
			PubMedID:        cells[11],
		})
	}

	return records, nil
}

// capPreferringActive keeps at most limit rows, taking Active outcomes
// first and preserving source order within each group.
func capPreferringActive(records []AssayRecord, limit int) []AssayRecord {
	if len(records) <= limit {
		return records
	}

	kept := make([]AssayRecord, 0, limit)
	for _, r := range records {
		if r.Outcome == "Active" {
			kept = append(kept, r)
			if len(kept) == limit {
				return kept
			}
		}
	}
	for _, r := range records {
		if r.Outcome != "Active" {
			kept = append(kept, r)
			if len(kept) == limit {
				return kept
			}
		}
	}

	return kept
}
