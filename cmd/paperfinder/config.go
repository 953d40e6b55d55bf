// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/paperfinder/internal/cache"
	"github.com/pdiddy/paperfinder/internal/secrets"
	"github.com/pdiddy/paperfinder/pkg/types"
)

const (
	defaultCallTimeout   = 10 * time.Second
	defaultDeadline      = 20 * time.Second
	defaultMaxCandidates = 5
	defaultRefineTimeout = 60 * time.Second
	defaultRefineMax     = 50 << 20
	defaultCacheTTL      = 7 * 24 * time.Hour
	defaultAddr          = ":8080"
	defaultRequestLimit  = 60 * time.Second
)

// backendIDs lists the sources configurable under resolver.backends.
var backendIDs = []string{
	types.BackendDBLP,
	types.BackendSemanticScholar,
	types.BackendACL,
	types.BackendArxiv,
	types.BackendCrossref,
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("secrets_dir", secrets.DefaultDir)

	v.SetDefault("resolver.timeout", defaultCallTimeout)
	v.SetDefault("resolver.deadline", defaultDeadline)
	v.SetDefault("resolver.max_candidates", defaultMaxCandidates)
	for _, id := range backendIDs {
		v.SetDefault("resolver.backends."+id+".enabled", true)
	}

	v.SetDefault("refine.timeout", defaultRefineTimeout)
	v.SetDefault("refine.max_bytes", defaultRefineMax)
	v.SetDefault("refine.concurrency", 2)

	v.SetDefault("cache.path", cache.DefaultPath)
	v.SetDefault("cache.ttl", defaultCacheTTL)

	v.SetDefault("server.addr", defaultAddr)
	v.SetDefault("server.request_limit", defaultRequestLimit)
}

// configFrom assembles the pipeline configuration. Values set in config,
// environment, or flags win over secret files.
func configFrom(v *viper.Viper, s secrets.Secrets) types.Config {
	mailto := s.Or(secrets.KeyMailto, v.GetString("resolver.mailto"))
	ua := v.GetString("resolver.user_agent")
	if ua == "" {
		ua = userAgent(mailto)
	}

	backends := make(map[string]types.BackendConfig, len(backendIDs))
	for _, id := range backendIDs {
		key := "resolver.backends." + id + "."
		backends[id] = types.BackendConfig{
			Enabled:       v.GetBool(key + "enabled"),
			Cap:           v.GetInt(key + "cap"),
			RatePerSecond: v.GetFloat64(key + "rate_per_second"),
			Burst:         v.GetInt(key + "burst"),
			MaxConcurrent: v.GetInt(key + "max_concurrent"),
			CallTimeout:   v.GetDuration(key + "call_timeout"),
			MaxRetries:    v.GetInt(key + "max_retries"),
			MaxRetryWait:  v.GetDuration(key + "max_retry_wait"),
		}
	}

	return types.Config{
		Resolver: types.ResolverConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   v.GetDuration("resolver.timeout"),
				UserAgent: ua,
			},
			Deadline:              v.GetDuration("resolver.deadline"),
			MaxCandidates:         v.GetInt("resolver.max_candidates"),
			SemanticScholarAPIKey: s.Or(secrets.KeySemanticScholar, v.GetString("resolver.semantic_scholar_api_key")),
			Mailto:                mailto,
			Backends:              backends,
		},
		Refine: types.RefineConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   v.GetDuration("refine.timeout"),
				UserAgent: ua,
			},
			MaxBytes:    v.GetInt64("refine.max_bytes"),
			TempDir:     v.GetString("refine.temp_dir"),
			Concurrency: v.GetInt("refine.concurrency"),
		},
		Cache: types.CacheConfig{
			Path: v.GetString("cache.path"),
			TTL:  v.GetDuration("cache.ttl"),
		},
		Server: types.ServerConfig{
			Addr:         v.GetString("server.addr"),
			RequestLimit: v.GetDuration("server.request_limit"),
		},
	}
}

func userAgent(mailto string) string {
	ua := "paperfinder/" + version
	if mailto != "" {
		ua += " (mailto:" + mailto + ")"
	}
	return ua
}
