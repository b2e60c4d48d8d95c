// Path: internal/scraper/scraper.go
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"top-loras/internal/config"
	"top-loras/internal/metrics"
)

// ErrUnauthorized is returned when the search endpoint answers 401.
var ErrUnauthorized = errors.New("unauthorized: API requires login, export MODELSCOPE_API_TOKEN or login first")

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d: %s", e.Code, e.Body)
}

// Scraper is a client for the model-hub search API.
type Scraper struct {
	client  *http.Client
	limiter *rate.Limiter
	url     string
	token   string
	csrf    string
}

// NewScraper creates and configures a new Scraper. Credentials are read from
// the environment variables named in cfg and passed through as opaque headers.
func NewScraper(cfg config.UpstreamConfig) *Scraper {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.BurstLimit
	if burst <= 0 {
		burst = 1
	}
	return &Scraper{
		client: &http.Client{
			Timeout: cfg.Timeout(),
		},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		url:     strings.TrimRight(cfg.BaseURL, "/") + cfg.SearchPath,
		token:   os.Getenv(cfg.TokenEnv),
		csrf:    os.Getenv(cfg.CSRFEnv),
	}
}

// Authenticated reports whether a token was supplied.
func (s *Scraper) Authenticated() bool {
	return s.token != ""
}

// FetchPage sends one search request and returns the decoded response body.
// It respects the rate limit.
func (s *Scraper) FetchPage(ctx context.Context, body SearchBody) (gjson.Result, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return gjson.Result{}, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to encode search body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.url, bytes.NewReader(payload))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	if s.csrf != "" {
		req.Header.Set("X-Csrf-Token", s.csrf)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to perform API request (check token and connectivity): %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return gjson.Result{}, ErrUnauthorized
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(raw)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return gjson.Result{}, &StatusError{Code: resp.StatusCode, Body: snippet}
	}

	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("failed to decode response body: invalid JSON")
	}
	metrics.UpstreamPages.Inc()
	return gjson.ParseBytes(raw), nil
}

// FetchListings paginates the search endpoint and returns the raw listings,
// over-fetching to leave room for later filtering. It stops on an empty page,
// once 4*limit listings are collected, or after MaxPages pages.
func (s *Scraper) FetchListings(ctx context.Context, q Query) ([]gjson.Result, error) {
	q = q.withDefaults()
	target := q.Limit * overFetchFactor

	logger := log.WithFields(log.Fields{"tag": q.Tag, "task": q.Task, "page_size": q.PageSize})
	if !s.Authenticated() {
		logger.Debug("No token provided: using anonymous session (may be limited)")
	}

	var collected []gjson.Result
	for page := 1; page <= q.MaxPages; page++ {
		resp, err := s.FetchPage(ctx, BuildSearchBody(q.PageSize, q.Tag, q.Task, page))
		if err != nil {
			return nil, err
		}

		listings := ExtractListings(resp)
		logger.WithField("page", page).Debugf("Extracted %d listings", len(listings))
		if len(listings) == 0 {
			break
		}

		collected = append(collected, listings...)
		if len(collected) >= target {
			break
		}
	}
	return collected, nil
}
