package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	t.Run("Should connect and ping", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client, err := Connect(t.Context(), &Config{URL: "redis://" + mr.Addr() + "/0", PoolSize: 4})
		require.NoError(t, err)
		defer client.Close()
		require.NoError(t, client.Set(t.Context(), "k", "v", 0).Err())
		got, err := mr.Get("k")
		require.NoError(t, err)
		assert.Equal(t, "v", got)
		assert.Equal(t, 4, client.Options().PoolSize)
	})

	t.Run("Should apply a password from config when the url has none", func(t *testing.T) {
		mr := miniredis.RunT(t)
		mr.RequireAuth("secret")
		client, err := Connect(t.Context(), &Config{URL: "redis://" + mr.Addr(), Password: "secret"})
		require.NoError(t, err)
		_ = client.Close()
	})

	t.Run("Should fail when the server is unreachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()
		_, err := Connect(t.Context(), &Config{URL: "redis://" + addr, PingTimeout: 200 * time.Millisecond})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pinging Redis server")
	})

	t.Run("Should reject a missing or invalid url", func(t *testing.T) {
		_, err := Connect(t.Context(), &Config{})
		require.Error(t, err)
		_, err = Connect(t.Context(), &Config{URL: "http://nope"})
		require.Error(t, err)
	})

	t.Run("Should enable RESP3 and TLS on request", func(t *testing.T) {
		opt, err := buildOptions(&Config{URL: "redis://cache.internal:6380/2", RESP3: true, TLSEnabled: true})
		require.NoError(t, err)
		assert.Equal(t, 3, opt.Protocol)
		assert.Equal(t, 2, opt.DB)
		require.NotNil(t, opt.TLSConfig)
		assert.Equal(t, "cache.internal", opt.TLSConfig.ServerName)
	})
}
