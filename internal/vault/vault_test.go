package vault

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	vault "github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRef(t *testing.T) {
	p, k, err := ParseRef("vault:kv/platform/vercel#token")
	require.NoError(t, err)
	assert.Equal(t, "kv/platform/vercel", p)
	assert.Equal(t, "token", k)

	for _, bad := range []string{"kv/platform#token", "vault:kv/platform", "vault:kv#token", "vault:kv/x#"} {
		_, _, err := ParseRef(bad)
		assert.ErrorIs(t, err, ErrBadRef, bad)
	}
	assert.True(t, IsRef("vault:a/b#c"))
	assert.False(t, IsRef("plain"))
}

// fakeKV serves a single KV-v2 secret at kv/platform.
func fakeKV(t *testing.T, hits *atomic.Int32) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/kv/data/platform" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"data":     map[string]any{"token": "s3cret", "port": 5},
				"metadata": map[string]any{"version": 1},
			},
		})
	}))
	t.Cleanup(srv.Close)

	cfg := vault.DefaultConfig()
	cfg.Address = srv.URL
	api, err := vault.NewClient(cfg)
	require.NoError(t, err)
	api.SetToken("test")
	return NewWithAPI(api, nil)
}

func TestResolve(t *testing.T) {
	var hits atomic.Int32
	c := fakeKV(t, &hits)
	ctx := context.Background()

	v, err := c.Resolve(ctx, "vault:kv/platform#token")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", v)

	_, err = c.Resolve(ctx, "vault:kv/platform#token")
	require.NoError(t, err)
	assert.EqualValues(t, 1, hits.Load(), "second resolve served from cache")

	_, err = c.Resolve(ctx, "vault:kv/platform#missing")
	assert.ErrorContains(t, err, "not found")

	_, err = c.Resolve(ctx, "vault:kv/platform#port")
	assert.ErrorContains(t, err, "not a string")
}
