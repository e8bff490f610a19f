package notion_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/problemsync/internal/content"
	"github.com/jonesrussell/north-cloud/problemsync/internal/domain"
	"github.com/jonesrussell/north-cloud/problemsync/internal/notion"
	"github.com/jonesrussell/north-cloud/problemsync/internal/publish"
)

const testToken = "secret_test"

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
}

type fakeNotion struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r recordedRequest)
}

func (f *fakeNotion) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &rec.Body)
	}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+testToken || r.Header.Get("Notion-Version") == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	f.handler(w, rec)
}

func newClient(t *testing.T, handler func(w http.ResponseWriter, r recordedRequest)) (*notion.Client, *fakeNotion) {
	t.Helper()

	fake := &fakeNotion{handler: handler}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client, err := notion.New(notion.Config{
		Token:              testToken,
		DatabaseID:         "db-1",
		BaseURL:            server.URL,
		DifficultyProperty: "Difficulty",
	}, nil)
	require.NoError(t, err)
	return client, fake
}

func TestNew_RequiresToken(t *testing.T) {
	t.Parallel()

	_, err := notion.New(notion.Config{}, nil)
	require.ErrorIs(t, err, notion.ErrMissingToken)
}

func TestCreateContainer(t *testing.T) {
	t.Parallel()

	client, fake := newClient(t, func(w http.ResponseWriter, _ recordedRequest) {
		_, _ = w.Write([]byte(`{"id":"page-1","url":"https://www.notion.so/page1"}`))
	})

	got, err := client.CreateContainer(context.Background(), publish.ContainerSpec{
		Title:          "1. Two Sum",
		Icon:           "🟢",
		IdempotencyKey: "1",
		Difficulty:     "Easy",
		Blocks: []content.Block{
			{Kind: content.KindCallout, Text: "info", Icon: "🟢", Color: "green_background"},
			{Kind: content.KindCode, Text: "int main() {}", Language: "cpp"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, publish.Container{ID: "page-1", URL: "https://www.notion.so/page1"}, got)

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/v1/pages", req.Path)
	assert.Equal(t, map[string]any{"database_id": "db-1"}, req.Body["parent"])

	props := req.Body["properties"].(map[string]any)
	key := props["Item ID"].(map[string]any)["rich_text"].([]any)[0].(map[string]any)
	assert.Equal(t, "1", key["text"].(map[string]any)["content"])
	assert.Contains(t, props, "Name")
	assert.Equal(t, map[string]any{"select": map[string]any{"name": "Easy"}}, props["Difficulty"])

	children := req.Body["children"].([]any)
	require.Len(t, children, 2)
	callout := children[0].(map[string]any)
	assert.Equal(t, "callout", callout["type"])
	code := children[1].(map[string]any)["code"].(map[string]any)
	assert.Equal(t, "c++", code["language"])
}

func TestAppendBlocks(t *testing.T) {
	t.Parallel()

	client, fake := newClient(t, func(w http.ResponseWriter, _ recordedRequest) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	})

	err := client.AppendBlocks(context.Background(), "page-1", []content.Block{
		{Kind: content.KindHeading, Level: 2, Text: "💡 Hints"},
		{Kind: content.KindDivider},
		{Kind: content.KindBulletList, Text: "3Sum", URL: "https://leetcode.com/problems/3sum/"},
	})
	require.NoError(t, err)

	req := fake.requests[0]
	assert.Equal(t, http.MethodPatch, req.Method)
	assert.Equal(t, "/v1/blocks/page-1/children", req.Path)

	children := req.Body["children"].([]any)
	types := make([]string, len(children))
	for i, c := range children {
		types[i] = c.(map[string]any)["type"].(string)
	}
	assert.Equal(t, []string{"heading_2", "divider", "bulleted_list_item"}, types)
}

func TestFindByIdempotencyKey(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		response  string
		wantFound bool
		wantID    string
	}{
		{name: "match", response: `{"results":[{"id":"page-9","url":"u"}]}`, wantFound: true, wantID: "page-9"},
		{name: "archived only", response: `{"results":[{"id":"page-9","archived":true}]}`},
		{name: "none", response: `{"results":[]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client, fake := newClient(t, func(w http.ResponseWriter, _ recordedRequest) {
				_, _ = w.Write([]byte(tc.response))
			})

			got, found, err := client.FindByIdempotencyKey(context.Background(), "42")
			require.NoError(t, err)
			assert.Equal(t, tc.wantFound, found)
			assert.Equal(t, tc.wantID, got.ID)

			req := fake.requests[0]
			assert.Equal(t, "/v1/databases/db-1/query", req.Path)
			filter := req.Body["filter"].(map[string]any)
			assert.Equal(t, "Item ID", filter["property"])
			assert.Equal(t, map[string]any{"equals": "42"}, filter["rich_text"])
		})
	}
}

func TestClearBlocks_Paginates(t *testing.T) {
	t.Parallel()

	client, fake := newClient(t, func(w http.ResponseWriter, r recordedRequest) {
		switch {
		case r.Method == http.MethodGet && r.Query == "page_size=100":
			_, _ = w.Write([]byte(`{"results":[{"id":"b1"},{"id":"b2"}],"has_more":true,"next_cursor":"c2"}`))
		case r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`{"results":[{"id":"b3"}],"has_more":false}`))
		case r.Path == "/v1/blocks/b2":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"object":"error","status":404,"code":"object_not_found","message":"gone"}`))
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	})

	require.NoError(t, client.ClearBlocks(context.Background(), "page-1"))

	var deleted []string
	for _, r := range fake.requests {
		if r.Method == http.MethodDelete {
			deleted = append(deleted, r.Path)
		}
	}
	assert.Equal(t, []string{"/v1/blocks/b1", "/v1/blocks/b2", "/v1/blocks/b3"}, deleted)
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		status     int
		body       string
		retryAfter string
		wantKind   domain.Kind
		wantDelay  time.Duration
	}{
		{
			name: "rate limited", status: http.StatusTooManyRequests, retryAfter: "4",
			body:     `{"code":"rate_limited","message":"slow down"}`,
			wantKind: domain.KindTransient, wantDelay: 4 * time.Second,
		},
		{
			name: "validation", status: http.StatusBadRequest,
			body:     `{"code":"validation_error","message":"body.children should have at most 100 items"}`,
			wantKind: domain.KindValidation,
		},
		{
			name: "other bad request", status: http.StatusBadRequest,
			body:     `{"code":"invalid_json","message":"bad"}`,
			wantKind: domain.KindPermanent,
		},
		{name: "conflict", status: http.StatusConflict, body: `{"code":"conflict_error"}`, wantKind: domain.KindTransient},
		{name: "bad gateway", status: http.StatusBadGateway, body: ``, wantKind: domain.KindTransient},
		{name: "forbidden", status: http.StatusForbidden, body: `{"code":"restricted_resource"}`, wantKind: domain.KindPermanent},
		{name: "not found", status: http.StatusNotFound, body: `{"code":"object_not_found"}`, wantKind: domain.KindNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client, _ := newClient(t, func(w http.ResponseWriter, _ recordedRequest) {
				if tc.retryAfter != "" {
					w.Header().Set("Retry-After", tc.retryAfter)
				}
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			err := client.AppendBlocks(context.Background(), "page-1", []content.Block{{Kind: content.KindParagraph, Text: "x"}})

			require.Error(t, err)
			assert.Equal(t, tc.wantKind, domain.KindOf(err))
			assert.Equal(t, tc.wantDelay, domain.RetryAfterOf(err))
		})
	}
}

func TestNetworkErrorIsTransient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	client, err := notion.New(notion.Config{Token: testToken, DatabaseID: "db", BaseURL: addr, Timeout: time.Second}, nil)
	require.NoError(t, err)

	err = client.Ping(context.Background())
	assert.Equal(t, domain.KindTransient, domain.KindOf(err))
}

type keyLimiter struct {
	mu   sync.Mutex
	keys []string
}

func (l *keyLimiter) Acquire(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	return nil
}

func TestRequestsTakeNotionLimiterSlot(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"object":"user"}`))
	}))
	defer server.Close()

	lim := &keyLimiter{}
	client, err := notion.New(notion.Config{Token: testToken, BaseURL: server.URL}, lim)
	require.NoError(t, err)

	require.NoError(t, client.Ping(context.Background()))
	require.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, []string{"notion", "notion"}, lim.keys)
}
