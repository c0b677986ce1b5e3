package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "speckle-inspector/internal/errors"
	"speckle-inspector/internal/logger"

	"github.com/sirupsen/logrus"
)

const httpAttempts = 3

// HTTPSource fetches captures over HTTP with retries on transient failures
type HTTPSource struct {
	client  *http.Client
	backoff time.Duration
}

// NewHTTPSource creates an HTTP source with a one second base backoff
func NewHTTPSource(timeout time.Duration) *HTTPSource {
	return NewHTTPSourceWithBackoff(timeout, time.Second)
}

// NewHTTPSourceWithBackoff creates an HTTP source. Attempt n waits n*backoff
// before retrying.
func NewHTTPSourceWithBackoff(timeout, backoff time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	transport := &http.Transport{
		// Raw captures are large and requested one at a time
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		// Raw formats do not compress over the wire
		DisableCompression:     true,
		MaxResponseHeaderBytes: 4096,

		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	}

	return &HTTPSource{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		backoff: backoff,
	}
}

// Open downloads the capture at the URL. 4xx responses fail at once, 5xx
// responses and transport errors are retried.
func (h *HTTPSource) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid URL", err)
	}
	req.Header.Set("Accept", "image/tiff, image/png, image/jpeg, application/octet-stream, */*")
	req.Header.Set("User-Agent", "Speckle-Inspector/1.0")

	var lastErr error
	for attempt := 0; attempt < httpAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, apperrors.NewTimeoutError("download cancelled", ctx.Err())
			case <-time.After(time.Duration(attempt) * h.backoff):
			}
		}

		resp, err := h.client.Do(req)
		if err != nil {
			lastErr = err
			logger.WithFields(logrus.Fields{"url": location, "attempt": attempt + 1}).WithError(err).Debug("Download attempt failed")
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return resp.Body, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("client error: status code %d", resp.StatusCode), nil)
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return nil, apperrors.NewNetworkError(fmt.Sprintf("client error: status code %d", resp.StatusCode), nil)
		default:
			lastErr = fmt.Errorf("server error: status code %d", resp.StatusCode)
		}
	}

	return nil, apperrors.NewNetworkError(fmt.Sprintf("failed to fetch image after %d attempts", httpAttempts), lastErr)
}
