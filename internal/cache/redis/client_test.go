package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      ClientConfig
		addr     string
		password string
		db       int
		tls      bool
	}{
		{name: "default address", cfg: ClientConfig{}, addr: "localhost:6379"},
		{name: "host and port", cfg: ClientConfig{Addr: "cache:6380", DB: 2}, addr: "cache:6380", db: 2},
		{name: "url", cfg: ClientConfig{Addr: "redis://:secret@cache:6379/3"}, addr: "cache:6379", password: "secret", db: 3},
		{name: "explicit fields win", cfg: ClientConfig{Addr: "redis://:secret@cache:6379/3", Password: "other", DB: 5}, addr: "cache:6379", password: "other", db: 5},
		{name: "tls flag", cfg: ClientConfig{Addr: "cache:6379", TLSEnabled: true}, addr: "cache:6379", tls: true},
		{name: "rediss url", cfg: ClientConfig{Addr: "rediss://cache:6379"}, addr: "cache:6379", tls: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts, err := options(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.addr, opts.Addr)
			assert.Equal(t, tt.password, opts.Password)
			assert.Equal(t, tt.db, opts.DB)
			assert.Equal(t, tt.tls, opts.TLSConfig != nil)
			assert.Equal(t, clientName, opts.ClientName)
		})
	}
}

func TestOptionsBadURL(t *testing.T) {
	t.Parallel()

	_, err := options(ClientConfig{Addr: "redis://cache:6379/notadb"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: parse url")
}
