// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refine

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/paperfinder/internal/httputil"
)

// ErrTooLarge is returned when a PDF exceeds the configured size cap.
var ErrTooLarge = errors.New("pdf exceeds size limit")

// download fetches rawURL into a temporary file and returns its path. The
// caller owns the file and must remove it. On error nothing is left behind.
func (r *Refiner) download(ctx context.Context, rawURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "creating request")
	}
	if r.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", r.cfg.UserAgent)
	}
	req.Header.Set("Accept", "application/pdf")

	resp, err := httputil.DoWithRetry(ctx, r.client, req, nil, httputil.RetryPolicy{MaxRetries: 2, Logger: r.logger})
	if err != nil {
		return "", eris.Wrap(err, "HTTP request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("HTTP %d from %s", resp.StatusCode, req.URL.Host)
	}
	if resp.ContentLength > r.cfg.MaxBytes {
		return "", eris.Wrapf(ErrTooLarge, "%d bytes declared", resp.ContentLength)
	}

	tmpFile, err := os.CreateTemp(r.cfg.TempDir, "paperfinder-*.pdf")
	if err != nil {
		return "", eris.Wrap(err, "creating temp file")
	}
	tmpPath := tmpFile.Name()

	n, copyErr := io.Copy(tmpFile, io.LimitReader(resp.Body, r.cfg.MaxBytes+1))
	closeErr := tmpFile.Close()
	switch {
	case copyErr != nil:
		os.Remove(tmpPath)
		return "", eris.Wrap(copyErr, "writing download")
	case closeErr != nil:
		os.Remove(tmpPath)
		return "", eris.Wrap(closeErr, "closing temp file")
	case n > r.cfg.MaxBytes:
		os.Remove(tmpPath)
		return "", eris.Wrapf(ErrTooLarge, "more than %d bytes", r.cfg.MaxBytes)
	}
	return tmpPath, nil
}
