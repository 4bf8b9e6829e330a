// Package image downloads base images over HTTP.
//
// Downloads are written to a temporary file next to the destination and only
// renamed into place once complete and, when a checksum was given, verified.
// A failed download never leaves a partial file at the destination.
package image

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/jbweber/vmexec/internal/disk"
)

const (
	defaultRetryMax     = 4
	defaultRetryWaitMin = 1 * time.Second
	defaultRetryWaitMax = 30 * time.Second
	progressInterval    = 10 * time.Second
	userAgent           = "vmexec/v1alpha1"
)

var (
	// ErrDestinationExists is returned when the destination is already
	// present and overwriting was not requested.
	ErrDestinationExists = errors.New("destination already exists")

	// ErrChecksumMismatch is returned when the downloaded data does not match
	// the expected SHA-256 digest.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Options configures a Fetcher. The zero value is usable.
type Options struct {
	// RetryMax is the number of retries after the first attempt.
	// Defaults to 4; set to a negative value to disable retries.
	RetryMax int

	// RetryWaitMin and RetryWaitMax bound the backoff between attempts.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// HTTPClient is the underlying client. Defaults to a pooled client
	// without an overall timeout, since images can be large.
	HTTPClient *http.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Request describes one download.
type Request struct {
	URL  string
	Dest string

	// SHA256 is the expected hex digest. Empty skips verification.
	SHA256 string

	// Overwrite replaces an existing file at Dest.
	Overwrite bool
}

// Result describes a completed download.
type Result struct {
	Path   string      `json:"path" yaml:"path"`
	Bytes  int64       `json:"bytes" yaml:"bytes"`
	SHA256 string      `json:"sha256" yaml:"sha256"`
	Format disk.Format `json:"format" yaml:"format"`
}

// Fetcher downloads images with retries.
type Fetcher struct {
	client *retryablehttp.Client
	logger *slog.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts Options) *Fetcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := retryablehttp.NewClient()
	client.Logger = logger
	client.RetryMax = defaultRetryMax
	client.RetryWaitMin = defaultRetryWaitMin
	client.RetryWaitMax = defaultRetryWaitMax

	switch {
	case opts.RetryMax < 0:
		client.RetryMax = 0
	case opts.RetryMax > 0:
		client.RetryMax = opts.RetryMax
	}
	if opts.RetryWaitMin > 0 {
		client.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		client.RetryWaitMax = opts.RetryWaitMax
	}
	if opts.HTTPClient != nil {
		client.HTTPClient = opts.HTTPClient
	}

	return &Fetcher{client: client, logger: logger}
}

// Fetch downloads req.URL to req.Dest, creating the destination directory if
// needed.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("url cannot be empty")
	}
	if req.Dest == "" {
		return nil, fmt.Errorf("destination cannot be empty")
	}

	if _, err := os.Stat(req.Dest); err == nil && !req.Overwrite {
		return nil, fmt.Errorf("%w: %s", ErrDestinationExists, req.Dest)
	}

	destDir := filepath.Dir(req.Dest)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create destination directory %s: %w", destDir, err)
	}

	f.logger.Info("downloading image", "url", req.URL, "dest", req.Dest)

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to download from %s: %w", req.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download of %s failed with status %s", req.URL, resp.Status)
	}

	tmp, err := os.CreateTemp(destDir, "."+filepath.Base(req.Dest)+".part-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file in %s: %w", destDir, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	hash := sha256.New()
	src := newProgressReader(resp.Body, resp.ContentLength, req.URL, f.logger)
	written, err := io.Copy(io.MultiWriter(tmp, hash), src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", req.Dest, err)
	}

	sum := hex.EncodeToString(hash.Sum(nil))
	if req.SHA256 != "" && !strings.EqualFold(sum, req.SHA256) {
		return nil, fmt.Errorf("%w for %s: got %s, want %s", ErrChecksumMismatch, req.URL, sum, req.SHA256)
	}

	format, err := disk.DetectImageFormat(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("downloaded file is not an image: %w", err)
	}

	if err := os.Rename(tmpPath, req.Dest); err != nil {
		return nil, fmt.Errorf("failed to move download into place at %s: %w", req.Dest, err)
	}
	committed = true

	f.logger.Info("downloaded image", "dest", req.Dest, "bytes", written, "format", format, "sha256", sum)
	return &Result{Path: req.Dest, Bytes: written, SHA256: sum, Format: format}, nil
}

// progressReader logs download progress periodically.
type progressReader struct {
	reader      io.Reader
	totalSize   int64
	written     int64
	url         string
	logger      *slog.Logger
	lastLogTime time.Time
}

func newProgressReader(reader io.Reader, totalSize int64, url string, logger *slog.Logger) *progressReader {
	return &progressReader{
		reader:      reader,
		totalSize:   totalSize,
		url:         url,
		logger:      logger,
		lastLogTime: time.Now(),
	}
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.written += int64(n)

		now := time.Now()
		if now.Sub(pr.lastLogTime) >= progressInterval {
			if pr.totalSize > 0 {
				pct := float64(pr.written) / float64(pr.totalSize) * 100
				pr.logger.Info("download progress", "url", pr.url, "percent", fmt.Sprintf("%.1f", pct), "bytes", pr.written, "total", pr.totalSize)
			} else {
				pr.logger.Info("download progress", "url", pr.url, "bytes", pr.written)
			}
			pr.lastLogTime = now
		}
	}
	return n, err
}
