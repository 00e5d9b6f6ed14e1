package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/tartampluch/rappel-anniv/internal/config"
)

// FetchRequest describes a remote address book (CardDAV export, WebDAV file,
// plain HTTPS link).
type FetchRequest struct {
	URL      string
	Username string
	Password string
}

// VCardFetcher defines the contract for retrieving vCard data.
// This interface allows for mocking in tests and decoupling from the network layer.
type VCardFetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (io.ReadCloser, error)
}

// HTTPFetcher implements VCardFetcher using the standard net/http library.
type HTTPFetcher struct {
	Client *http.Client
	// MaxBytes caps the body size. Zero means config.MaxImportSize.
	MaxBytes int64
}

// NewHTTPFetcher creates a new instance of HTTPFetcher with configured timeouts.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		Client: &http.Client{
			Timeout: config.HTTPTimeout,
		},
		MaxBytes: config.MaxImportSize,
	}
}

// Fetch retrieves vCard data from a remote URL.
// Query parameters are stripped from logs since they often carry tokens.
func (f *HTTPFetcher) Fetch(ctx context.Context, fr FetchRequest) (io.ReadCloser, error) {
	u, err := url.Parse(fr.URL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrInvalidURL, err)
	}

	if u.Scheme != config.SchemeHTTP && u.Scheme != config.SchemeHTTPS {
		return nil, fmt.Errorf("%s: %q", config.ErrProtocol, u.Scheme)
	}

	safeURL := u.Scheme + "://" + u.Host + u.Path

	log := slog.With(
		slog.String(config.LogKeyComponent, config.CompFetcher),
		slog.String(config.LogKeyURL, safeURL),
	)

	log.Debug("Initiating vCard download")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fr.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(config.HeaderUserAgent, config.UserAgent)

	if fr.Username != "" || fr.Password != "" {
		req.SetBasicAuth(fr.Username, fr.Password)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error during fetch: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		log.Warn("Server returned error status",
			slog.Int(config.LogKeyStatus, resp.StatusCode),
		)
		return nil, fmt.Errorf("server returned unexpected status: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	log.Info("vCards downloading",
		slog.Int64(config.LogKeySizeBytes, resp.ContentLength),
	)

	limit := f.MaxBytes
	if limit <= 0 {
		limit = config.MaxImportSize
	}
	return &cappedBody{
		r:         io.LimitReader(resp.Body, limit+1),
		remaining: limit,
		Closer:    resp.Body,
	}, nil
}

// ErrBodyTooLarge is returned by a fetched body once it grows past MaxBytes.
var ErrBodyTooLarge = errors.New(config.ErrImportTooLarge)

// cappedBody reads at most one byte past the limit so that an oversize
// body fails instead of ending early.
type cappedBody struct {
	r         io.Reader
	remaining int64
	exceeded  bool
	io.Closer
}

func (c *cappedBody) Read(p []byte) (int, error) {
	if c.exceeded {
		return 0, ErrBodyTooLarge
	}
	n, err := c.r.Read(p)
	if int64(n) > c.remaining {
		n = int(c.remaining)
		c.remaining = 0
		c.exceeded = true
		return n, ErrBodyTooLarge
	}
	c.remaining -= int64(n)
	return n, err
}
