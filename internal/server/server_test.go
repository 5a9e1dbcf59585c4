package server_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/portfolio-tracker/internal/auth"
	"github.com/sakif/portfolio-tracker/internal/config"
	"github.com/sakif/portfolio-tracker/internal/server"
)

const testSecret = "server-test-secret-0123456789"

// fakeYahoo answers the quote endpoint for AAPL only.
func fakeYahoo(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v7/finance/quote", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbols") != "AAPL" {
			io.WriteString(w, `{"quoteResponse":{"result":[],"error":null}}`)
			return
		}
		io.WriteString(w, `{"quoteResponse":{"result":[{"symbol":"AAPL","regularMarketPrice":180,"trailingPE":30,"forwardPE":25}],"error":null}}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, yahooURL string) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Port:        8080,
		LogLevel:    "info",
		DBPath:      ":memory:",
		TemplateDir: "../../web/templates",
		StaticDir:   "../../web/static",
		Auth: config.AuthConfig{
			JWTSecret:          testSecret,
			SessionTTL:         time.Hour,
			GoogleClientID:     "client-id",
			GoogleClientSecret: "client-secret",
			GoogleCallbackURL:  "http://localhost:8080/authorize",
		},
		CORS: config.CORSConfig{AllowedOrigins: []string{"http://127.0.0.1:5500"}},
		Market: config.MarketConfig{
			QuoteURL:    yahooURL + "/v7/finance/quote",
			ChartURL:    yahooURL + "/v8/finance/chart",
			Timeout:     2 * time.Second,
			Retries:     0,
			Concurrency: 2,
		},
		Cache: config.CacheConfig{Backend: config.CacheMemory, Size: 16, TTL: time.Minute},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	srv, err := server.New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv.Handler()
}

func sessionCookie(t *testing.T) *http.Cookie {
	t.Helper()
	tokens, err := auth.NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)
	token, err := tokens.Generate("g-1")
	require.NoError(t, err)
	return &http.Cookie{Name: auth.SessionCookie, Value: token}
}

func TestServer_Routes(t *testing.T) {
	h := newTestServer(t, testConfig(t, fakeYahoo(t).URL))

	tests := []struct {
		name         string
		method       string
		path         string
		loggedIn     bool
		wantStatus   int
		wantLocation string
	}{
		{"health", http.MethodGet, "/healthz", false, http.StatusOK, ""},
		{"index anonymous", http.MethodGet, "/", false, http.StatusOK, ""},
		{"static asset", http.MethodGet, "/static/css/style.css", false, http.StatusOK, ""},
		{"portfolio page redirects to login", http.MethodGet, "/portfolio", false, http.StatusSeeOther, "/login"},
		{"portfolio page with session", http.MethodGet, "/portfolio", true, http.StatusOK, ""},
		{"login goes to google", http.MethodGet, "/login", false, http.StatusTemporaryRedirect, ""},
		{"logout needs session", http.MethodGet, "/logout", false, http.StatusUnauthorized, ""},
		{"logout", http.MethodGet, "/logout", true, http.StatusSeeOther, "/"},
		{"holdings need session", http.MethodGet, "/api/get-holdings", false, http.StatusUnauthorized, ""},
		{"summary needs session", http.MethodGet, "/api/portfolio/summary", false, http.StatusUnauthorized, ""},
		{"save needs session", http.MethodPost, "/api/save-stock", false, http.StatusUnauthorized, ""},
		{"delete needs session", http.MethodDelete, "/api/delete-stock/1", false, http.StatusUnauthorized, ""},
		{"empty portfolio", http.MethodGet, "/api/get-holdings", true, http.StatusOK, ""},
		{"user not stored yet", http.MethodGet, "/api/get-user", true, http.StatusNotFound, ""},
		{"quote", http.MethodGet, "/api/stock/aapl", false, http.StatusOK, ""},
		{"unknown symbol", http.MethodGet, "/api/stock/ZZZZ", false, http.StatusNotFound, ""},
		{"bad period", http.MethodGet, "/api/stock/AAPL/history?period=7y", false, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.loggedIn {
				req.AddCookie(sessionCookie(t))
			}

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, rr.Header().Get("Location"))
			}
		})
	}
}

func TestServer_QuoteBody(t *testing.T) {
	h := newTestServer(t, testConfig(t, fakeYahoo(t).URL))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/stock/aapl", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "AAPL", body["symbol"])
	assert.Equal(t, 180.0, body["currentPrice"])
	assert.Equal(t, 25.0, body["forwardPE"])
}

func TestServer_CORSPreflight(t *testing.T) {
	h := newTestServer(t, testConfig(t, fakeYahoo(t).URL))

	req := httptest.NewRequest(http.MethodOptions, "/api/get-holdings", nil)
	req.Header.Set("Origin", "http://127.0.0.1:5500")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "http://127.0.0.1:5500", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
}

func TestServer_LoginDisabledWithoutGoogle(t *testing.T) {
	cfg := testConfig(t, fakeYahoo(t).URL)
	cfg.Auth.GoogleClientID = ""
	h := newTestServer(t, cfg)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/login", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(t, fakeYahoo(t).URL)
	cfg.Cache.Backend = config.CacheRedis
	cfg.Cache.RedisAddr = mr.Addr()
	h := newTestServer(t, cfg)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/stock/AAPL", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, mr.Exists("quote:AAPL"), "quote should be cached in redis")
}

func TestNew_RedisUnreachable(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Cache.Backend = config.CacheRedis
	cfg.Cache.RedisAddr = "127.0.0.1:1"

	_, err := server.New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
