// Path: internal/images/images.go
package images

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"top-loras/internal/cache"
	"top-loras/internal/config"
	"top-loras/internal/domain"
	"top-loras/internal/metrics"
)

const defaultExt = ".jpg"

// Report summarizes one FetchCovers run.
type Report struct {
	Downloaded int
	Skipped    int
	Failed     int
	Outcome    domain.Outcome
}

// Fetcher downloads cover images to local disk.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	retries int
	backoff time.Duration
}

// NewFetcher creates a Fetcher from the images configuration.
func NewFetcher(cfg config.ImagesConfig) *Fetcher {
	retries := cfg.Retries
	if retries <= 0 {
		retries = 1
	}
	rps := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		rps = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Fetcher{
		client:  &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		limiter: rate.NewLimiter(rps, 1),
		retries: retries,
		backoff: time.Second,
	}
}

// WithBackoff sets the base delay between attempts; attempt n waits n*d.
func (f *Fetcher) WithBackoff(d time.Duration) *Fetcher {
	f.backoff = d
	return f
}

// Filename derives the local file name for a record's cover: the sanitized
// English title (or id) plus the URL's extension, defaulting to .jpg.
func Filename(r domain.ModelRecord) string {
	title := r.TitleEN
	if title == "" {
		title = r.ID
	}
	return cache.SanitizeFilename(title) + extension(r.CoverURL)
}

func extension(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return defaultExt
	}
	if ext := path.Ext(u.Path); ext != "" {
		return ext
	}
	return defaultExt
}

// FetchCovers downloads the cover of every record that has one into dir and
// sets CoverLocal on success. Failures are per record: the record keeps an
// empty CoverLocal and the batch continues.
func (f *Fetcher) FetchCovers(ctx context.Context, records []domain.ModelRecord, dir string) Report {
	var report Report
	if err := os.MkdirAll(dir, 0o755); err != nil {
		report.Outcome = domain.Failed("create images directory: %v", err)
		return report
	}

	for i := range records {
		r := &records[i]
		if r.CoverURL == "" {
			r.CoverLocal = ""
			continue
		}
		dest := filepath.Join(dir, Filename(*r))

		if _, err := os.Stat(dest); err == nil {
			r.CoverLocal = dest
			report.Skipped++
			metrics.ImageDownloads.WithLabelValues("skipped").Inc()
			continue
		}

		if err := f.downloadWithRetry(ctx, r.CoverURL, dest); err != nil {
			log.WithFields(log.Fields{"id": r.ID, "url": r.CoverURL}).Warnf("Cover download failed: %v", err)
			r.CoverLocal = ""
			report.Failed++
			metrics.ImageDownloads.WithLabelValues("failed").Inc()
			continue
		}
		r.CoverLocal = dest
		report.Downloaded++
		metrics.ImageDownloads.WithLabelValues("downloaded").Inc()
	}

	report.Outcome = domain.Succeeded()
	if report.Failed > 0 {
		report.Outcome = domain.Failed("%d of %d cover downloads failed", report.Failed, report.Failed+report.Downloaded)
	}
	return report
}

func (f *Fetcher) downloadWithRetry(ctx context.Context, rawURL, dest string) error {
	var lastErr error
	for attempt := 1; attempt <= f.retries; attempt++ {
		lastErr = f.Download(ctx, rawURL, dest)
		if lastErr == nil {
			return nil
		}
		log.WithField("url", rawURL).Debugf("Download attempt %d failed: %v", attempt, lastErr)
		if attempt == f.retries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.backoff * time.Duration(attempt)):
		}
	}
	return lastErr
}

// Download streams rawURL to dest. The body is written to a temporary file
// first so an interrupted transfer never looks like a finished image.
func (f *Fetcher) Download(ctx context.Context, rawURL, dest string) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
