// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paperfinder/0.1 (mailto:someone@example.org)").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// BackendConfig holds the rate and retry contract of one backend.
type BackendConfig struct {
	// Enabled controls whether the backend is constructed at all.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Cap overrides the router's per-backend result cap when positive.
	Cap int `json:"cap,omitempty" yaml:"cap,omitempty"`

	// RatePerSecond is the maximum sustained request rate.
	RatePerSecond float64 `json:"rate_per_second" yaml:"rate_per_second"`

	// Burst is the number of requests that may be issued back to back.
	Burst int `json:"burst" yaml:"burst"`

	// MaxConcurrent bounds in-flight requests to the source.
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent"`

	// CallTimeout bounds a single search or fetch call, retries included.
	CallTimeout time.Duration `json:"call_timeout" yaml:"call_timeout"`

	// MaxRetries bounds retries after a rate-limit signal.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// MaxRetryWait bounds the total time spent in backoff sleeps.
	MaxRetryWait time.Duration `json:"max_retry_wait" yaml:"max_retry_wait"`
}

// ResolverConfig holds settings for the multi-source resolution pipeline.
type ResolverConfig struct {
	HTTPConfig `yaml:",inline"`

	// Deadline is the overall per-request fan-out deadline.
	Deadline time.Duration `json:"deadline" yaml:"deadline"`

	// MaxCandidates truncates the ranked candidate list (0 keeps all).
	MaxCandidates int `json:"max_candidates" yaml:"max_candidates"`

	// SemanticScholarAPIKey raises the Semantic Scholar quota when set.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty"`

	// Mailto is sent to Crossref and OpenAlex for polite-pool access.
	Mailto string `json:"mailto,omitempty" yaml:"mailto,omitempty"`

	// Backends maps backend ids (dblp, semantic_scholar, ...) to their contracts.
	Backends map[string]BackendConfig `json:"backends" yaml:"backends"`
}

// RefineConfig holds settings for PDF-assisted refinement.
type RefineConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxBytes caps the size of a downloaded PDF.
	MaxBytes int64 `json:"max_bytes" yaml:"max_bytes"`

	// TempDir is where downloads are staged ("" uses the OS default).
	TempDir string `json:"temp_dir,omitempty" yaml:"temp_dir,omitempty"`

	// Concurrency bounds parallel refinements in RefineAll.
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// CacheConfig holds settings for the resolution cache.
type CacheConfig struct {
	// Path is the SQLite database file.
	Path string `json:"path" yaml:"path"`

	// TTL is how long a cached resolution is served (0 disables expiry).
	TTL time.Duration `json:"ttl" yaml:"ttl"`
}

// ServerConfig holds settings for the HTTP API.
type ServerConfig struct {
	Addr         string        `json:"addr" yaml:"addr"`
	RequestLimit time.Duration `json:"request_limit" yaml:"request_limit"`
}

// Config groups all stage configurations.
type Config struct {
	Resolver ResolverConfig `json:"resolver" yaml:"resolver"`
	Refine   RefineConfig   `json:"refine" yaml:"refine"`
	Cache    CacheConfig    `json:"cache" yaml:"cache"`
	Server   ServerConfig   `json:"server" yaml:"server"`
}
