// Package source fetches raw problem pages from the remote site.
package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jonesrussell/north-cloud/problemsync/internal/domain"
	"github.com/jonesrussell/north-cloud/problemsync/internal/retry"
)

//go:generate mockgen -destination=mocks/source_mock.go -package=mocks . Source

// Source returns the raw document at url. Failures are *domain.Error values
// classified as transient, not-found, access-restricted or permanent.
type Source interface {
	FetchRaw(ctx context.Context, url string) ([]byte, error)
}

// CrawlDelayer is implemented by sources that learn a per-host crawl delay,
// such as a robots.txt Crawl-delay, while fetching.
type CrawlDelayer interface {
	CrawlDelay(url string) time.Duration
}

// opFetch names source fetches in classified errors.
const opFetch = "fetch"

// ClassifyStatus maps an HTTP status to a classified error, or nil for 2xx.
func ClassifyStatus(status int, header http.Header) error {
	switch {
	case status >= http.StatusOK && status < http.StatusMultipleChoices:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusPaymentRequired:
		return statusError(domain.KindAccessRestricted, status, nil)
	case status == http.StatusNotFound || status == http.StatusGone:
		return statusError(domain.KindNotFound, status, nil)
	case status == http.StatusRequestTimeout,
		status == http.StatusTooEarly,
		status == http.StatusTooManyRequests,
		status >= http.StatusInternalServerError:
		err := statusError(domain.KindTransient, status, nil)
		err.RetryAfter = retry.ParseRetryAfter(header.Get("Retry-After"), time.Now())
		return err
	default:
		return statusError(domain.KindPermanent, status, nil)
	}
}

// ClassifyTransportError classifies an error that occurred before any response arrived.
func ClassifyTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return domain.NewError(domain.KindTransient, opFetch, err)
	}

	// Connection resets and refusals surface as *net.OpError, which is a net.Error.
	// Anything else is most likely a malformed URL.
	return domain.NewError(domain.KindPermanent, opFetch, err)
}

func statusError(kind domain.Kind, status int, err error) *domain.Error {
	if err == nil {
		err = fmt.Errorf("http status %d", status)
	}
	e := domain.NewError(kind, opFetch, err)
	e.Status = status
	return e
}
