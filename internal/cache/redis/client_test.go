package redis

import (
	"crypto/tls"
	"testing"
)

func TestOptions(t *testing.T) {
	opts := options(ClientConfig{Addr: "localhost:6379", DB: 2, MaxRetries: 3})
	if opts.ClientName != ClientName || opts.Addr != "localhost:6379" || opts.DB != 2 || opts.MaxRetries != 3 {
		t.Fatalf("opts = %+v", opts)
	}
	if opts.PoolSize != defaultPoolSize {
		t.Errorf("pool size = %d, want default %d", opts.PoolSize, defaultPoolSize)
	}
	if opts.WriteTimeout != writeTimeout || !opts.ContextTimeoutEnabled {
		t.Errorf("timeouts = %v / %v", opts.WriteTimeout, opts.ContextTimeoutEnabled)
	}
	if opts.TLSConfig != nil {
		t.Error("tls enabled without being configured")
	}

	opts = options(ClientConfig{PoolSize: 20, TLSEnabled: true})
	if opts.PoolSize != 20 {
		t.Errorf("pool size = %d, want 20", opts.PoolSize)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tls.VersionTLS12 {
		t.Errorf("tls = %+v", opts.TLSConfig)
	}
}
