// Package yargitay fetches Turkish supreme court decisions from the
// public search service and turns them into plain text for indexing.
// The service exposes two endpoints: a POST search that returns
// decision ids, and a GET detail that returns one decision as HTML.
package yargitay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/LexaTechAI/lexa-mvp/engine/domain"
	"github.com/LexaTechAI/lexa-mvp/pkg/fn"
	"github.com/LexaTechAI/lexa-mvp/pkg/resilience"
)

const (
	// DefaultBaseURL points at the public decision search service.
	DefaultBaseURL = "https://karararama.yargitay.gov.tr"

	// DefaultLimit bounds how many decisions one search pulls.
	DefaultLimit = 7

	// detailWorkers bounds concurrent detail fetches per search.
	detailWorkers = 4
)

// Client talks to the decision search service. Construct with New and
// share one instance; the rate limiter and circuit breaker live on it.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	retry   fn.RetryOpts
	logger  *slog.Logger
}

// New builds a client against baseURL ("" selects DefaultBaseURL).
func New(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 3),
		breaker: resilience.NewBreaker(resilience.BreakerOpts{
			FailThreshold: 5,
			Timeout:       30 * time.Second,
			HalfOpenMax:   1,
		}),
		retry: fn.RetryOpts{
			MaxAttempts: 3,
			InitialWait: time.Second,
			MaxWait:     10 * time.Second,
			Jitter:      true,
		},
		logger: logger,
	}
}

type searchRequest struct {
	Query      string `json:"query"`
	PageSize   int    `json:"pageSize"`
	PageNumber int    `json:"pageNumber"`
}

// searchResponse mirrors the service's doubly-nested envelope.
type searchResponse struct {
	Data struct {
		Data []struct {
			ID json.Number `json:"id"`
		} `json:"data"`
	} `json:"data"`
}

type detailResponse struct {
	Data string `json:"data"`
}

// Search posts the query and returns decision ids in service order,
// truncated to limit. Records lacking an id are skipped.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(searchRequest{Query: query, PageSize: limit, PageNumber: 1})
	if err != nil {
		return nil, err
	}

	var ids []string
	err = c.breaker.Call(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/aramalist", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("search status %d", resp.StatusCode)
		}

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		var sr searchResponse
		if err := json.Unmarshal(raw, &sr); err != nil {
			return fmt.Errorf("decode search response: %w", err)
		}

		for _, rec := range sr.Data.Data {
			id := rec.ID.String()
			if id == "" {
				continue
			}
			ids = append(ids, id)
			if len(ids) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("yargitay: search %q: %w: %v", query, domain.ErrRemoteFetch, err)
	}
	return ids, nil
}

// Detail fetches one decision's HTML and returns its stripped body
// text. A decision whose payload carries no text fails.
func (c *Client) Detail(ctx context.Context, id string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var text string
	err := c.breaker.Call(func() error {
		u := fmt.Sprintf("%s/getDokuman?id=%s", c.baseURL, url.QueryEscape(id))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("detail status %d", resp.StatusCode)
		}

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		var dr detailResponse
		if err := json.Unmarshal(raw, &dr); err != nil {
			return fmt.Errorf("decode detail response: %w", err)
		}
		if dr.Data == "" {
			return fmt.Errorf("empty document body")
		}

		text = extractBodyText(dr.Data)
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("document body has no text")
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("yargitay: detail %s: %w: %v", id, domain.ErrRemoteFetch, err)
	}
	return text, nil
}

// FetchDecisionTexts searches for keywords and assembles the texts of
// up to limit decisions into one blob, each prefixed by its id, in
// search-result order. A detail fetch is retried with backoff; one
// that keeps failing is logged and skipped.
// If the search stage itself fails, the returned text is an error
// marker and the error wraps domain.ErrRemoteFetch so the caller can
// tell a crash from an empty result set. Zero hits return a marker
// with a nil error.
func (c *Client) FetchDecisionTexts(ctx context.Context, keywords string, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	ids, err := c.Search(ctx, keywords, limit)
	if err != nil {
		c.logger.Error("yargitay: search stage failed", "keywords", keywords, "error", err)
		return fmt.Sprintf("[ERROR: decision search failed for '%s']", keywords), err
	}
	if len(ids) == 0 {
		c.logger.Info("yargitay: no decisions found", "keywords", keywords)
		return fmt.Sprintf("[ERROR: no decisions found for '%s']", keywords), nil
	}

	texts := fn.ParMapResult(ctx, ids, detailWorkers, func(ctx context.Context, id string) fn.Result[string] {
		return fn.Retry(ctx, c.retry, func(ctx context.Context) fn.Result[string] {
			return fn.FromPair(c.Detail(ctx, id))
		})
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "### Search: '%s'\n", keywords)
	fetched := 0
	for i, r := range texts {
		text, err := r.Unwrap()
		if err != nil {
			c.logger.Warn("yargitay: skipping decision",
				"id", ids[i],
				"error", err,
			)
			continue
		}
		fmt.Fprintf(&sb, "\n--- Decision ID: %s ---\n%s\n", ids[i], text)
		fetched++
	}

	if fetched == 0 {
		return fmt.Sprintf("[ERROR: all %d decision fetches failed for '%s']", len(ids), keywords),
			fmt.Errorf("yargitay: all %d detail fetches failed: %w", len(ids), domain.ErrRemoteFetch)
	}

	c.logger.Info("yargitay: fetched decisions",
		"keywords", keywords,
		"found", len(ids),
		"fetched", fetched,
	)
	return sb.String(), nil
}
