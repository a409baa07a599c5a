package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provenance/internal/platform/config"
	"provenance/internal/registry/handler"
	"provenance/pkg/testutil"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Server: config.Server{
			Addr:            ":0",
			RequestTimeout:  5 * time.Second,
			ShutdownTimeout: time.Second,
		},
		Registry: config.Registry{
			MintingAuthority: "mint-authority",
			CacheTTL:         time.Minute,
		},
		Auth: config.Auth{IdentityHeader: "X-Caller-Identity"},
	}
}

func TestNewApp_InMemory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := newApp(context.Background(), memoryConfig(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Nil(t, a.db)
	assert.Nil(t, a.relay)

	t.Run("health reports ok without external stores", func(t *testing.T) {
		rr := testutil.DoRequest(a.router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
		testutil.AssertStatusOK(t, rr)
		body := testutil.UnmarshalResponse[healthResponse](t, rr)
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, "mint-authority", body.Minting)
	})

	t.Run("caller header reaches the registry", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/assets", handler.CreateAssetRequest{
			Serial:   "SN1",
			AuthHash: strings.Repeat("aa", 32),
			Model:    "M1",
		})
		req.Header.Set("X-Caller-Identity", "mint-authority")
		rr := testutil.DoRequest(a.router, req)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

		created := testutil.UnmarshalResponse[handler.CreateAssetResponse](t, rr)
		assert.EqualValues(t, 1, created.AssetID)
	})

	t.Run("anonymous mutation is rejected", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/assets/1/events", handler.LogEventRequest{Action: "scan"})
		rr := testutil.DoRequest(a.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("metrics expose registry counters", func(t *testing.T) {
		rr := testutil.DoRequest(a.router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
		testutil.AssertStatusOK(t, rr)
		assert.Contains(t, rr.Body.String(), "provenance_registry_operations_total")
		assert.Contains(t, rr.Body.String(), "provenance_http_request_duration_seconds")
	})
}

func TestNewApp_InMemoryIgnoresRedis(t *testing.T) {
	cfg := memoryConfig()
	// Nothing listens here; a dial attempt would fail newApp.
	cfg.Redis.URL = "redis://127.0.0.1:1/0"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := newApp(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	assert.Nil(t, a.redis, "in-memory ledger must not share a persistent cache")

	req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/assets", handler.CreateAssetRequest{
		Serial:   "SN1",
		AuthHash: strings.Repeat("aa", 32),
		Model:    "M1",
	})
	req.Header.Set("X-Caller-Identity", "mint-authority")
	rr := testutil.DoRequest(a.router, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = testutil.DoRequest(a.router, testutil.NewRequest(t, http.MethodGet, "/v1/assets/1"))
	testutil.AssertStatusOK(t, rr)
}

func TestNewApp_RequiresMintingAuthority(t *testing.T) {
	cfg := memoryConfig()
	cfg.Registry.MintingAuthority = ""
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := newApp(context.Background(), cfg, logger)
	require.Error(t, err)
}

func TestNewApp_AdminTokenGuardsMetrics(t *testing.T) {
	testutil.Given(t, "an app configured with an admin token", func(t *testing.T) {
		cfg := memoryConfig()
		cfg.Auth.AdminToken = "ops-token"
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		a, err := newApp(context.Background(), cfg, logger)
		require.NoError(t, err)
		t.Cleanup(func() { _ = a.Close() })

		testutil.When(t, "metrics are scraped without the token", func(t *testing.T) {
			rr := testutil.DoRequest(a.router, testutil.NewRequest(t, http.MethodGet, "/metrics"))

			testutil.Then(t, "the scrape is rejected", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
			})
		})

		testutil.When(t, "metrics are scraped with the token", func(t *testing.T) {
			req := testutil.NewRequest(t, http.MethodGet, "/metrics")
			req.Header.Set("X-Admin-Token", "ops-token")
			rr := testutil.DoRequest(a.router, req)

			testutil.Then(t, "the scrape succeeds", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
			})
		})

		testutil.When(t, "health is probed without the token", func(t *testing.T) {
			rr := testutil.DoRequest(a.router, testutil.NewRequest(t, http.MethodGet, "/healthz"))

			testutil.And(t, "health stays open", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
			})
		})
	})
}
