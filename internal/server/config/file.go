package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"strings"

	"github.com/dmitrijs2005/autolot/internal/flagx"
	"github.com/dmitrijs2005/autolot/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the config file. It is decoded from
// JSON or YAML depending on the file extension; durations go through
// timex.Duration so both "30s" and integer nanoseconds are accepted.
// Zero values mean "not set" and leave the current value untouched.
type FileConfig struct {
	HTTPAddr       string         `json:"http_addr" yaml:"http_addr"`
	RequestTimeout timex.Duration `json:"request_timeout" yaml:"request_timeout"`

	CatalogBackend  string         `json:"catalog_backend" yaml:"catalog_backend"`
	DatabaseDSN     string         `json:"database_dsn" yaml:"database_dsn"`
	BadgerDir       string         `json:"badger_dir" yaml:"badger_dir"`
	CatalogCacheTTL timex.Duration `json:"catalog_cache_ttl" yaml:"catalog_cache_ttl"`

	AssetBackend    string `json:"asset_backend" yaml:"asset_backend"`
	UploadDir       string `json:"upload_dir" yaml:"upload_dir"`
	S3RootUser      string `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword  string `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket        string `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region        string `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint  string `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	S3PublicBaseURL string `json:"s3_public_base_url" yaml:"s3_public_base_url"`
	S3KeyPrefix     string `json:"s3_key_prefix" yaml:"s3_key_prefix"`

	AdminUser                   string         `json:"admin_user" yaml:"admin_user"`
	AdminPassHash               string         `json:"admin_pass_hash" yaml:"admin_pass_hash"`
	SecretKey                   string         `json:"secret_key" yaml:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	LoginRatePerMinute          int            `json:"login_rate_per_minute" yaml:"login_rate_per_minute"`
	LoginBurst                  int            `json:"login_burst" yaml:"login_burst"`

	ImageEngine       string `json:"image_engine" yaml:"image_engine"`
	MaxFilesPerBatch  int    `json:"max_files_per_batch" yaml:"max_files_per_batch"`
	MaxFileBytes      int64  `json:"max_file_bytes" yaml:"max_file_bytes"`
	IngestConcurrency int    `json:"ingest_concurrency" yaml:"ingest_concurrency"`
	OutputMaxWidth    int    `json:"output_max_width" yaml:"output_max_width"`
	OutputQuality     int    `json:"output_quality" yaml:"output_quality"`
	SkipMaxBytes      int64  `json:"skip_max_bytes" yaml:"skip_max_bytes"`
	SkipMaxWidth      int    `json:"skip_max_width" yaml:"skip_max_width"`
	NameAttempts      int    `json:"name_attempts" yaml:"name_attempts"`
	ConflictRetries   int    `json:"conflict_retries" yaml:"conflict_retries"`

	LogLevel string `json:"log_level" yaml:"log_level"`
}

// parseFile loads configuration values from the file named by the
// -c/-config/--config flag into config. Without the flag nothing happens.
// An unreadable or malformed file panics; the server cannot start on a
// half-applied configuration.
func parseFile(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	fc, err := readFile(path)
	if err != nil {
		panic(err)
	}

	fc.apply(config)
}

func readFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return fc, nil
}

func (fc *FileConfig) apply(c *Config) {
	setString(&c.HTTPAddr, fc.HTTPAddr)
	setDuration(&c.RequestTimeout, fc.RequestTimeout)

	setString(&c.CatalogBackend, fc.CatalogBackend)
	setString(&c.DatabaseDSN, fc.DatabaseDSN)
	setString(&c.BadgerDir, fc.BadgerDir)
	setDuration(&c.CatalogCacheTTL, fc.CatalogCacheTTL)

	setString(&c.AssetBackend, fc.AssetBackend)
	setString(&c.UploadDir, fc.UploadDir)
	setString(&c.S3RootUser, fc.S3RootUser)
	setString(&c.S3RootPassword, fc.S3RootPassword)
	setString(&c.S3Bucket, fc.S3Bucket)
	setString(&c.S3Region, fc.S3Region)
	setString(&c.S3BaseEndpoint, fc.S3BaseEndpoint)
	setString(&c.S3PublicBaseURL, fc.S3PublicBaseURL)
	setString(&c.S3KeyPrefix, fc.S3KeyPrefix)

	setString(&c.AdminUser, fc.AdminUser)
	setString(&c.AdminPassHash, fc.AdminPassHash)
	setString(&c.SecretKey, fc.SecretKey)
	setDuration(&c.AccessTokenValidityDuration, fc.AccessTokenValidityDuration)
	setInt(&c.LoginRatePerMinute, fc.LoginRatePerMinute)
	setInt(&c.LoginBurst, fc.LoginBurst)

	setString(&c.ImageEngine, fc.ImageEngine)
	setInt(&c.MaxFilesPerBatch, fc.MaxFilesPerBatch)
	setInt64(&c.MaxFileBytes, fc.MaxFileBytes)
	setInt(&c.IngestConcurrency, fc.IngestConcurrency)
	setInt(&c.OutputMaxWidth, fc.OutputMaxWidth)
	setInt(&c.OutputQuality, fc.OutputQuality)
	setInt64(&c.SkipMaxBytes, fc.SkipMaxBytes)
	setInt(&c.SkipMaxWidth, fc.SkipMaxWidth)
	setInt(&c.NameAttempts, fc.NameAttempts)
	setInt(&c.ConflictRetries, fc.ConflictRetries)

	setString(&c.LogLevel, fc.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setInt64(dst *int64, v int64) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
