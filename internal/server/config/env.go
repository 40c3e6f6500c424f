package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// dotEnvFile is loaded before the environment is read. A missing file is
// not an error.
var dotEnvFile = ".env"

// loadDotEnv is a seam for tests.
var loadDotEnv = func(files ...string) error {
	return godotenv.Load(files...)
}

// parseEnv overlays config with environment variables. Values from the
// .env file never override variables that are already set in the process
// environment.
//
// Recognized variables:
//
//	PORT, HTTP_ADDR, REQUEST_TIMEOUT
//	CATALOG_BACKEND, DATABASE_DSN, BADGER_DIR, CATALOG_CACHE_TTL
//	ASSET_BACKEND, UPLOAD_DIR, S3_ROOT_USER, S3_ROOT_PASSWORD, S3_BUCKET,
//	S3_REGION, S3_BASE_ENDPOINT, S3_PUBLIC_BASE_URL, S3_KEY_PREFIX
//	ADMIN_USER, ADMIN_PASS_HASH, SECRET_KEY, ACCESS_TOKEN_TTL
//	IMAGE_ENGINE, MAX_FILES_PER_BATCH, MAX_FILE_BYTES, INGEST_CONCURRENCY,
//	OUTPUT_MAX_WIDTH, OUTPUT_QUALITY, CONFLICT_RETRIES, LOG_LEVEL
//
// A malformed numeric or duration value panics.
func parseEnv(config *Config) {
	if _, err := os.Stat(dotEnvFile); err == nil {
		if err := loadDotEnv(dotEnvFile); err != nil {
			panic(fmt.Errorf("load %s: %w", dotEnvFile, err))
		}
	}

	if err := applyEnv(config, os.LookupEnv); err != nil {
		panic(err)
	}
}

func applyEnv(c *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	var firstErr error
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("env %s: %w", key, err)
			}
			return
		}
		*dst = n
	}
	num64 := func(key string, dst *int64) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("env %s: %w", key, err)
			}
			return
		}
		*dst = n
	}
	dur := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("env %s: %w", key, err)
			}
			return
		}
		*dst = d
	}

	if port, ok := lookup("PORT"); ok && port != "" {
		c.HTTPAddr = ":" + port
	}
	str("HTTP_ADDR", &c.HTTPAddr)
	dur("REQUEST_TIMEOUT", &c.RequestTimeout)

	str("CATALOG_BACKEND", &c.CatalogBackend)
	str("DATABASE_DSN", &c.DatabaseDSN)
	str("BADGER_DIR", &c.BadgerDir)
	dur("CATALOG_CACHE_TTL", &c.CatalogCacheTTL)

	str("ASSET_BACKEND", &c.AssetBackend)
	str("UPLOAD_DIR", &c.UploadDir)
	str("S3_ROOT_USER", &c.S3RootUser)
	str("S3_ROOT_PASSWORD", &c.S3RootPassword)
	str("S3_BUCKET", &c.S3Bucket)
	str("S3_REGION", &c.S3Region)
	str("S3_BASE_ENDPOINT", &c.S3BaseEndpoint)
	str("S3_PUBLIC_BASE_URL", &c.S3PublicBaseURL)
	str("S3_KEY_PREFIX", &c.S3KeyPrefix)

	str("ADMIN_USER", &c.AdminUser)
	str("ADMIN_PASS_HASH", &c.AdminPassHash)
	str("SECRET_KEY", &c.SecretKey)
	dur("ACCESS_TOKEN_TTL", &c.AccessTokenValidityDuration)

	str("IMAGE_ENGINE", &c.ImageEngine)
	num("MAX_FILES_PER_BATCH", &c.MaxFilesPerBatch)
	num64("MAX_FILE_BYTES", &c.MaxFileBytes)
	num("INGEST_CONCURRENCY", &c.IngestConcurrency)
	num("OUTPUT_MAX_WIDTH", &c.OutputMaxWidth)
	num("OUTPUT_QUALITY", &c.OutputQuality)
	num("CONFLICT_RETRIES", &c.ConflictRetries)

	str("LOG_LEVEL", &c.LogLevel)

	return firstErr
}
