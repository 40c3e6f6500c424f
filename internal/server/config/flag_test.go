package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-d", "db", "-k", "badger", "-s", "secret", "-t", "60",
			"-x", "s3", "-f", "/srv/uploads", "-b", "bucket", "-e", "http://endpoint", "-i", "native", "-w", "4",
		}, expected: &Config{
			HTTPAddr:                    "127.0.0.1:9090",
			DatabaseDSN:                 "db",
			CatalogBackend:              "badger",
			SecretKey:                   "secret",
			AccessTokenValidityDuration: 60 * time.Minute,
			AssetBackend:                "s3",
			UploadDir:                   "/srv/uploads",
			S3Bucket:                    "bucket",
			S3BaseEndpoint:              "http://endpoint",
			ImageEngine:                 "native",
			IngestConcurrency:           4,
		}},
		{name: "unknown flags are filtered out", args: []string{"cmd", "-z", "1", "-a", ":1"},
			expected: &Config{HTTPAddr: ":1"}},
		{name: "bad int panics", args: []string{"cmd", "-w", "many"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
