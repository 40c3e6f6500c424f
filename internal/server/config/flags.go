package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/autolot/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":3000")
//	-d string   PostgreSQL DSN
//	-k string   catalog backend: postgres | badger
//	-s string   JWT HMAC secret key
//	-t int      admin token validity, minutes
//	-x string   asset backend: fs | s3
//	-f string   upload directory for the fs asset backend
//	-b string   S3 bucket name
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-i string   image engine: vips | native
//	-w int      ingest concurrency
//
// Only these flags are extracted from os.Args, so the config loader does
// not collide with cobra when used from the admin CLI.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-k", "-s", "-t", "-x", "-f", "-b", "-e", "-i", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.CatalogBackend, "k", config.CatalogBackend, "catalog backend (postgres|badger)")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")

	fs.StringVar(&config.AssetBackend, "x", config.AssetBackend, "asset backend (fs|s3)")
	fs.StringVar(&config.UploadDir, "f", config.UploadDir, "upload directory")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.ImageEngine, "i", config.ImageEngine, "image engine (vips|native)")
	fs.IntVar(&config.IngestConcurrency, "w", config.IngestConcurrency, "files transcoded concurrently")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
}
