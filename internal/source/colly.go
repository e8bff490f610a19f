package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	colly "github.com/gocolly/colly/v2"

	"github.com/jonesrussell/north-cloud/problemsync/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/problemsync/internal/domain"
)

// Default source settings.
const (
	defaultUserAgent      = "Mozilla/5.0 (compatible; problemsync/1.0)"
	defaultRequestTimeout = 30 * time.Second
	defaultMaxBodySize    = 10 * 1024 * 1024
)

// Config configures the colly-backed source.
type Config struct {
	UserAgent      string        `env:"SOURCE_USER_AGENT"      yaml:"user_agent"`
	RequestTimeout time.Duration `env:"SOURCE_REQUEST_TIMEOUT" yaml:"request_timeout"`
	MaxBodySize    int           `env:"SOURCE_MAX_BODY_SIZE"   yaml:"max_body_size"`
	RespectRobots  *bool         `yaml:"respect_robots"`
	RobotsCacheTTL time.Duration `yaml:"robots_cache_ttl"`
}

// WithDefaults returns a copy of the config with defaults for zero-value fields.
func (c Config) WithDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = defaultMaxBodySize
	}
	if c.RespectRobots == nil {
		respect := true
		c.RespectRobots = &respect
	}
	return c
}

// ErrRobotsDisallowed is wrapped by fetches refused by robots.txt.
var ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

// Colly fetches pages with a gocolly collector. robots.txt is checked by
// RobotsChecker rather than colly so that the decision is cached per host
// and reported as a classified error.
type Colly struct {
	cfg    Config
	robots *RobotsChecker
	log    logger.Logger
}

// NewColly creates a colly-backed Source.
func NewColly(cfg Config, log logger.Logger) *Colly {
	cfg = cfg.WithDefaults()

	var robots *RobotsChecker
	if *cfg.RespectRobots {
		robots = NewRobotsChecker(&http.Client{Timeout: cfg.RequestTimeout}, cfg.UserAgent, cfg.RobotsCacheTTL)
	}

	return &Colly{
		cfg:    cfg,
		robots: robots,
		log:    logger.Component(log, "source"),
	}
}

// CrawlDelay returns the robots.txt Crawl-delay of url's host once a fetch
// has checked it. It is zero when robots.txt is not respected.
func (c *Colly) CrawlDelay(url string) time.Duration {
	if c.robots == nil {
		return 0
	}
	return c.robots.CrawlDelay(url)
}

// FetchRaw fetches url and returns its body.
func (c *Colly) FetchRaw(ctx context.Context, url string) ([]byte, error) {
	if err := c.checkRobots(ctx, url); err != nil {
		return nil, err
	}

	collector := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.UserAgent(c.cfg.UserAgent),
		colly.MaxBodySize(c.cfg.MaxBodySize),
		colly.ParseHTTPErrorResponse(),
		colly.IgnoreRobotsTxt(),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(c.cfg.RequestTimeout)

	var (
		status int
		header http.Header
		body   []byte
	)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		if r.Headers != nil {
			header = *r.Headers
		}
		body = r.Body
	})

	start := time.Now()
	if err := collector.Visit(url); err != nil && status == 0 {
		c.log.Debug("Fetch transport error",
			logger.String("url", url),
			logger.Error(err),
		)
		return nil, ClassifyTransportError(err)
	}

	c.log.Debug("Fetched page",
		logger.String("url", url),
		logger.Int("status", status),
		logger.Int("bytes", len(body)),
		logger.Duration("elapsed", time.Since(start)),
	)

	if err := ClassifyStatus(status, header); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Colly) checkRobots(ctx context.Context, url string) error {
	if c.robots == nil {
		return nil
	}

	allowed, err := c.robots.Allowed(ctx, url)
	if err != nil {
		return domain.NewError(domain.KindPermanent, opFetch, err)
	}
	if !allowed {
		return domain.NewError(domain.KindPermanent, opFetch, fmt.Errorf("%s: %w", url, ErrRobotsDisallowed))
	}
	return nil
}
