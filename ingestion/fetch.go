package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/poiesic/bookmind/core"
	"golang.org/x/time/rate"
)

const (
	// DefaultFetchTimeout bounds a single document request.
	DefaultFetchTimeout = 15 * time.Second
	// DefaultMaxBodyBytes caps how much of a response body is read.
	DefaultMaxBodyBytes = 5 << 20
	// DefaultUserAgent identifies the fetcher to remote servers.
	DefaultUserAgent = "bookmind/1.0 (+https://github.com/poiesic/bookmind)"
	// MinContentLength is the smallest body, in characters, worth keeping.
	MinContentLength = 100
)

// fetchProcessor retrieves document bodies over HTTP.
type fetchProcessor struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	maxBytes  int64
	limiter   *rate.Limiter
	logger    *slog.Logger
}

var _ Processor = (*fetchProcessor)(nil)

func newFetchProcessor(client *http.Client, userAgent string, timeout time.Duration, maxBytes int64, limiter *rate.Limiter, logger *slog.Logger) *fetchProcessor {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &fetchProcessor{
		client:    client,
		userAgent: userAgent,
		timeout:   timeout,
		maxBytes:  maxBytes,
		limiter:   limiter,
		logger:    logger.With("processor", "fetch"),
	}
}

func (fp *fetchProcessor) Stage() core.Stage {
	return core.StageFetch
}

func (fp *fetchProcessor) Setup(ctx context.Context) error {
	return nil
}

func (fp *fetchProcessor) Teardown(ctx context.Context) error {
	fp.client.CloseIdleConnections()
	return nil
}

// Process downloads item.URL and stores the body as the item's raw content.
func (fp *fetchProcessor) Process(ctx context.Context, item *core.QueueItem) error {
	if fp.limiter != nil {
		if err := fp.limiter.Wait(ctx); err != nil {
			return &FetchError{URL: item.URL, Reason: "rate limit wait aborted", Err: err}
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, fp.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, item.URL, nil)
	if err != nil {
		return &FetchError{URL: item.URL, Reason: err.Error(), Err: err}
	}
	req.Header.Set("User-Agent", fp.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := fp.client.Do(req)
	if err != nil {
		return fp.requestError(ctx, reqCtx, item.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &FetchError{
			URL:        item.URL,
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, fp.maxBytes))
	if err != nil {
		return fp.requestError(ctx, reqCtx, item.URL, err)
	}

	content := string(body)
	if utf8.RuneCountInString(content) < MinContentLength {
		return &FetchError{URL: item.URL, Reason: ErrContentTooSmall.Error(), Err: ErrContentTooSmall}
	}

	fp.logger.Debug("fetched document", "url", item.URL, "bytes", len(body))
	item.SetRawContent(content)
	return nil
}

// requestError distinguishes the per-request timeout from external cancellation.
func (fp *fetchProcessor) requestError(ctx, reqCtx context.Context, url string, err error) error {
	if ctx.Err() == nil && errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return &FetchError{
			URL:    url,
			Reason: fmt.Sprintf("request timed out after %s", fp.timeout),
			Err:    ErrRequestTimedOut,
		}
	}
	if ctx.Err() != nil {
		return &FetchError{URL: url, Reason: "fetch cancelled", Err: ctx.Err()}
	}
	return &FetchError{URL: url, Reason: err.Error(), Err: err}
}
