// Package notion implements the document store on top of the Notion REST API.
package notion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/jonesrussell/north-cloud/problemsync/internal/content"
	"github.com/jonesrussell/north-cloud/problemsync/internal/domain"
	"github.com/jonesrussell/north-cloud/problemsync/internal/publish"
	"github.com/jonesrussell/north-cloud/problemsync/internal/ratelimit"
	"github.com/jonesrussell/north-cloud/problemsync/internal/retry"
)

// Defaults.
const (
	DefaultBaseURL       = "https://api.notion.com"
	DefaultVersion       = "2022-06-28"
	DefaultTimeout       = 30 * time.Second
	DefaultTitleProperty = "Name"
	DefaultKeyProperty   = "Item ID"

	listPageSize = 100
)

// ErrMissingToken is returned when no integration token is configured.
var ErrMissingToken = errors.New("notion token is required")

// Config configures the Notion client.
type Config struct {
	Token      string        `env:"NOTION_TOKEN"       yaml:"token"`
	DatabaseID string        `env:"NOTION_DATABASE_ID" yaml:"database_id"`
	BaseURL    string        `env:"NOTION_BASE_URL"    yaml:"base_url"`
	Version    string        `env:"NOTION_VERSION"     yaml:"version"`
	Timeout    time.Duration `env:"NOTION_TIMEOUT"     yaml:"timeout"`
	// TitleProperty and KeyProperty name the database columns holding the
	// page title and the idempotency key.
	TitleProperty string `yaml:"title_property"`
	KeyProperty   string `yaml:"key_property"`
	// DifficultyProperty and URLProperty are optional select and url
	// columns. They are only written when set.
	DifficultyProperty string `yaml:"difficulty_property"`
	URLProperty        string `yaml:"url_property"`
}

// SetDefaults applies default values for zero-value fields.
func (c *Config) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.TitleProperty == "" {
		c.TitleProperty = DefaultTitleProperty
	}
	if c.KeyProperty == "" {
		c.KeyProperty = DefaultKeyProperty
	}
}

// Client talks to the Notion API. Every request, including the ones made
// while clearing a page, first takes a slot from the notion limiter.
type Client struct {
	http *resty.Client
	cfg  Config
}

// New creates a Client. limiter may be nil.
func New(cfg Config, limiter ratelimit.Limiter) (*Client, error) {
	cfg.SetDefaults()
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetAuthToken(cfg.Token).
		SetHeader("Notion-Version", cfg.Version).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)

	if limiter != nil {
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Acquire(req.Context(), ratelimit.ServiceNotion)
		})
	}

	return &Client{http: client, cfg: cfg}, nil
}

type pageObject struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Archived bool   `json:"archived"`
}

type queryResult struct {
	Results []pageObject `json:"results"`
}

type childList struct {
	Results []struct {
		ID string `json:"id"`
	} `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// CreateContainer creates a database page carrying spec's blocks.
func (c *Client) CreateContainer(ctx context.Context, spec publish.ContainerSpec) (publish.Container, error) {
	if c.cfg.DatabaseID == "" {
		return publish.Container{}, domain.NewError(domain.KindValidation, "create_page", errors.New("database id is required"))
	}

	properties := map[string]any{
		c.cfg.TitleProperty: map[string]any{"title": text(spec.Title, "")},
		c.cfg.KeyProperty:   map[string]any{"rich_text": text(spec.IdempotencyKey, "")},
	}
	if c.cfg.DifficultyProperty != "" && spec.Difficulty != "" {
		properties[c.cfg.DifficultyProperty] = map[string]any{"select": map[string]string{"name": spec.Difficulty}}
	}
	if c.cfg.URLProperty != "" && spec.SourceURL != "" {
		properties[c.cfg.URLProperty] = map[string]any{"url": spec.SourceURL}
	}

	body := map[string]any{
		"parent":     map[string]string{"database_id": c.cfg.DatabaseID},
		"properties": properties,
		"children":   toBlocks(spec.Blocks),
	}
	if e := icon(spec.Icon); e != nil {
		body["icon"] = e
	}

	var page pageObject
	resp, err := c.http.R().SetContext(ctx).SetBody(body).SetResult(&page).Post("/v1/pages")
	if err = classify("create_page", resp, err); err != nil {
		return publish.Container{}, err
	}
	return publish.Container{ID: page.ID, URL: page.URL}, nil
}

// AppendBlocks appends blocks to the page's children in order.
func (c *Client) AppendBlocks(ctx context.Context, id string, blocks []content.Block) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetBody(map[string]any{"children": toBlocks(blocks)}).
		Patch("/v1/blocks/{id}/children")
	return classify("append_blocks", resp, err)
}

// FindByIdempotencyKey looks up a live page whose key property equals key.
func (c *Client) FindByIdempotencyKey(ctx context.Context, key string) (publish.Container, bool, error) {
	if c.cfg.DatabaseID == "" {
		return publish.Container{}, false, nil
	}

	body := map[string]any{
		"filter": map[string]any{
			"property":  c.cfg.KeyProperty,
			"rich_text": map[string]string{"equals": key},
		},
		"page_size": 1,
	}

	var result queryResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", c.cfg.DatabaseID).
		SetBody(body).
		SetResult(&result).
		Post("/v1/databases/{id}/query")
	if err = classify("query_database", resp, err); err != nil {
		return publish.Container{}, false, err
	}

	for _, p := range result.Results {
		if !p.Archived {
			return publish.Container{ID: p.ID, URL: p.URL}, true, nil
		}
	}
	return publish.Container{}, false, nil
}

// ClearBlocks deletes every child block of the page.
func (c *Client) ClearBlocks(ctx context.Context, id string) error {
	var ids []string
	cursor := ""
	for {
		req := c.http.R().
			SetContext(ctx).
			SetPathParam("id", id).
			SetQueryParam("page_size", fmt.Sprint(listPageSize))
		if cursor != "" {
			req.SetQueryParam("start_cursor", cursor)
		}

		var list childList
		resp, err := req.SetResult(&list).Get("/v1/blocks/{id}/children")
		if err = classify("list_blocks", resp, err); err != nil {
			return err
		}
		for _, r := range list.Results {
			ids = append(ids, r.ID)
		}
		if !list.HasMore || list.NextCursor == "" {
			break
		}
		cursor = list.NextCursor
	}

	for _, child := range ids {
		resp, err := c.http.R().SetContext(ctx).SetPathParam("id", child).Delete("/v1/blocks/{id}")
		if err = classify("delete_block", resp, err); err != nil && domain.KindOf(err) != domain.KindNotFound {
			return err
		}
	}
	return nil
}

// Ping verifies the token by fetching the integration's bot user.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/v1/users/me")
	return classify("ping", resp, err)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// classify turns a resty outcome into nil or a *domain.Error.
func classify(op string, resp *resty.Response, err error) error {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return domain.NewError(domain.KindTransient, op, err)
	}
	if !resp.IsError() {
		return nil
	}

	status := resp.StatusCode()
	var body apiError
	_ = json.Unmarshal(resp.Body(), &body)

	cause := fmt.Errorf("http status %d", status)
	if body.Code != "" {
		cause = fmt.Errorf("%s: %s", body.Code, body.Message)
	}

	var kind domain.Kind
	switch {
	case status == http.StatusTooManyRequests, status == http.StatusConflict, status >= http.StatusInternalServerError:
		kind = domain.KindTransient
	case status == http.StatusBadRequest && body.Code == "validation_error":
		kind = domain.KindValidation
	case status == http.StatusNotFound:
		kind = domain.KindNotFound
	default:
		kind = domain.KindPermanent
	}

	de := domain.NewError(kind, op, cause)
	de.Status = status
	if kind == domain.KindTransient {
		de.RetryAfter = retry.ParseRetryAfter(resp.Header().Get("Retry-After"), time.Now())
	}
	return de
}
