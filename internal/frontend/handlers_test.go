package frontend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotedeck/logocache/internal/blob"
	"github.com/quotedeck/logocache/internal/config"
	"github.com/quotedeck/logocache/internal/kv"
	"github.com/quotedeck/logocache/internal/refresh"
	"github.com/quotedeck/logocache/internal/resolver"
	"github.com/quotedeck/logocache/internal/state"
)

type stubResolver struct{}

func (stubResolver) Resolve(_ context.Context, ticker string) (*resolver.Resolved, error) {
	return &resolver.Resolved{
		Data:        []byte("img-" + ticker),
		ContentType: "image/png",
		Bytes:       len("img-" + ticker),
		SourceURL:   "https://img/" + ticker,
	}, nil
}

type fixture struct {
	server *Server
	st     *state.Store
	blobs  blob.Store
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{
		Tickers: []string{"META", "AAPL"},
		Server:  config.Server{AdminToken: "admin-secret"},
		Refresh: config.Refresh{
			TTL:             24 * time.Hour,
			Debounce:        55 * time.Second,
			RetryFallback:   60 * time.Second,
			PerItemInterval: time.Minute,
			CycleBuffer:     10 * time.Minute,
		},
	}
	f := &fixture{
		st:    state.New(kv.NewMemory()),
		blobs: blob.NewMemory(),
		now:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	runner := refresh.NewRunner(cfg, f.st, f.blobs, stubResolver{},
		refresh.WithClock(func() time.Time { return f.now }))
	f.server = NewServer(cfg, f.st, f.blobs, runner)
	return f
}

func (f *fixture) seedLogo(t *testing.T, ticker string, updatedAt time.Time) {
	t.Helper()
	ctx := context.Background()
	key := "logos/" + ticker + ".png"
	require.NoError(t, f.blobs.Put(ctx, key, []byte("img-"+ticker), "image/png"))
	require.NoError(t, f.st.PutMeta(ctx, &state.StoredMeta{
		Ticker:    ticker,
		Key:       key,
		Mime:      "image/png",
		Bytes:     len("img-" + ticker),
		UpdatedAt: updatedAt,
	}))
}

func (f *fixture) request(method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestGetLogo(t *testing.T) {
	f := newFixture(t)
	updated := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	f.seedLogo(t, "AAPL", updated)

	t.Run("ServesBytes", func(t *testing.T) {
		rec := f.request(http.MethodGet, "/api/v1/logos/AAPL", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.Equal(t, "public, max-age=86400", rec.Header().Get("Cache-Control"))
		assert.NotEmpty(t, rec.Header().Get("ETag"))
		assert.Equal(t, "img-AAPL", rec.Body.String())
	})

	t.Run("LowercasePathNormalized", func(t *testing.T) {
		rec := f.request(http.MethodGet, "/api/v1/logos/aapl", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("ETagRoundTrip", func(t *testing.T) {
		first := f.request(http.MethodGet, "/api/v1/logos/AAPL", nil)
		etag := first.Header().Get("ETag")
		require.NotEmpty(t, etag)

		rec := f.request(http.MethodGet, "/api/v1/logos/AAPL", map[string]string{"If-None-Match": etag})
		assert.Equal(t, http.StatusNotModified, rec.Code)
		assert.Empty(t, rec.Body.String())
	})

	t.Run("UnknownTicker", func(t *testing.T) {
		rec := f.request(http.MethodGet, "/api/v1/logos/ZZZZ", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("MetaWithoutBlob", func(t *testing.T) {
		require.NoError(t, f.st.PutMeta(context.Background(), &state.StoredMeta{
			Ticker: "META", Key: "logos/META.png", Mime: "image/png", UpdatedAt: updated,
		}))
		rec := f.request(http.MethodGet, "/api/v1/logos/META", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListLogos(t *testing.T) {
	f := newFixture(t)

	rec := f.request(http.MethodGet, "/api/v1/logos", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []struct {
			Ticker  string `json:"ticker"`
			LogoSrc string `json:"logo_src"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "META", body.Data[0].Ticker)
	assert.Equal(t, "/api/v1/logos/META", body.Data[0].LogoSrc)
}

func TestManifest(t *testing.T) {
	f := newFixture(t)

	t.Run("MissingTickerList", func(t *testing.T) {
		rec := f.request(http.MethodGet, "/api/v1/manifest", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "cfg:tickers missing or empty")
	})

	t.Run("InlinesCachedLogos", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, f.st.PutTickers(ctx, []string{"META", "AAPL"}))
		f.seedLogo(t, "AAPL", time.Now().UTC())

		rec := f.request(http.MethodGet, "/api/v1/manifest", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Tickers []string `json:"tickers"`
			Logos   []struct {
				Ticker  string `json:"ticker"`
				DataURI string `json:"dataUri"`
			} `json:"logos"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, []string{"META", "AAPL"}, body.Tickers)
		// META has no cached record yet and is skipped, not errored.
		require.Len(t, body.Logos, 1)
		assert.Equal(t, "AAPL", body.Logos[0].Ticker)
		assert.Contains(t, body.Logos[0].DataURI, "data:image/png;base64,")
	})
}

func TestAdminAuth(t *testing.T) {
	f := newFixture(t)

	t.Run("NoToken", func(t *testing.T) {
		rec := f.request(http.MethodGet, "/api/v1/admin/status", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("WrongToken", func(t *testing.T) {
		rec := f.request(http.MethodGet, "/api/v1/admin/status",
			map[string]string{"Authorization": "Bearer wrong"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("ValidToken", func(t *testing.T) {
		rec := f.request(http.MethodGet, "/api/v1/admin/status",
			map[string]string{"Authorization": "Bearer admin-secret"})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("UnconfiguredTokenDisablesSurface", func(t *testing.T) {
		g := newFixture(t)
		g.server.cfg.Server.AdminToken = ""
		rec := g.request(http.MethodGet, "/api/v1/admin/status",
			map[string]string{"Authorization": "Bearer "})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestAdminCycleEndpoints(t *testing.T) {
	f := newFixture(t)
	auth := map[string]string{"Authorization": "Bearer admin-secret"}

	rec := f.request(http.MethodPost, "/api/v1/admin/cycle/start", auth)
	require.Equal(t, http.StatusOK, rec.Code)

	var status statusResponse
	rec = f.request(http.MethodGet, "/api/v1/admin/status", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 0, status.Cursor)
	require.NotNil(t, status.ActiveUntil)

	f.now = f.now.Add(time.Minute)
	rec = f.request(http.MethodPost, "/api/v1/admin/cycle/tick", auth)
	require.Equal(t, http.StatusOK, rec.Code)

	var outcome state.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.Equal(t, state.StatusUpdated, outcome.Status)
	assert.Equal(t, "META", outcome.Ticker)

	rec = f.request(http.MethodGet, "/api/v1/admin/status", auth)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 1, status.Cursor)
}
