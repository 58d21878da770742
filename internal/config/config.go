// Package config loads the scoring engine's process configuration from
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config groups the scoring engine's runtime configuration.
type Config struct {
	// Port is the listen port for the HTTP ingestion endpoint.
	Port string
	// APIKey authenticates POST / requests. Required; the process refuses
	// to serve without it.
	APIKey string

	// NumThreads is the total worker budget. The originality pool gets
	// NumThreads-3 workers (ingress consumer, concordance worker, HTTP
	// listener each take one).
	NumThreads int

	// SubmissionsBucket and DatasetsBucket name the object-store buckets
	// holding per-submission prediction files and per-round dataset
	// archives respectively.
	SubmissionsBucket string
	DatasetsBucket    string

	// BlobCacheDir is the local-disk root the Blob Cache mirrors object
	// store keys under.
	BlobCacheDir string

	// QueueDir is the root directory holding the three durable queue
	// databases (ingress, originality, concordance).
	QueueDir string

	// MetadataDSN is the data-source name for the Metadata Gateway's
	// backing store.
	MetadataDSN string
}

// OriginalityPoolSize returns the number of originality workers: NumThreads
// minus the ingress consumer, concordance worker, and HTTP listener.
func (c Config) OriginalityPoolSize() int {
	n := c.NumThreads - 3
	if n < 1 {
		return 1
	}
	return n
}

// Load reads configuration from the environment, applying the documented
// defaults. It fails fast when a required value has no safe default.
func Load() (Config, error) {
	cfg := Config{
		Port:              getenv("PORT", "5151"),
		APIKey:            os.Getenv("API_KEY"),
		SubmissionsBucket: getenv("S3_UPLOAD_BUCKET", "numerai-production-uploads"),
		DatasetsBucket:    os.Getenv("S3_DATASET_BUCKET"),
		BlobCacheDir:      getenv("BLOB_CACHE_DIR", "/tmp/scoring-engine/blobs"),
		QueueDir:          getenv("QUEUE_DIR", "/tmp/scoring-engine/queues"),
		MetadataDSN:       getenv("METADATA_DSN", "/tmp/scoring-engine/metadata.db"),
	}

	numThreads := 32
	if raw := os.Getenv("NUM_THREADS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse NUM_THREADS=%q: %w", raw, err)
		}
		numThreads = n
	}
	cfg.NumThreads = numThreads

	if cfg.APIKey == "" {
		return Config{}, fmt.Errorf("API_KEY is required")
	}
	if cfg.DatasetsBucket == "" {
		return Config{}, fmt.Errorf("S3_DATASET_BUCKET is required")
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
