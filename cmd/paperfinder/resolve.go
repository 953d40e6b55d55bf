// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paperfinder/internal/cache"
	"github.com/pdiddy/paperfinder/internal/cite"
	"github.com/pdiddy/paperfinder/internal/resolver"
	"github.com/pdiddy/paperfinder/pkg/types"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <query...>",
	Short: "Resolve a citation query to ranked candidate papers",
	Long: `Resolve routes the query by research domain, queries the matching
sources under a shared deadline, merges records for the same work, and prints
the best candidates. A DOI, arXiv id, or ACL Anthology id in the query is
looked up directly first.

Results are cached by domain and query text; --no-cache bypasses the cache.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().Bool("refine", false, "refine candidates from their PDFs")
	resolveCmd.Flags().String("format", "bibtex", "output format: bibtex, csl, json, or yaml")
	resolveCmd.Flags().Duration("deadline", 0, "overall search deadline (default 20s)")
	resolveCmd.Flags().Int("max", 0, "maximum number of candidates (default 5)")
	resolveCmd.Flags().Bool("no-cache", false, "skip the resolution cache")

	_ = viper.BindPFlag("resolver.deadline", resolveCmd.Flags().Lookup("deadline"))
	_ = viper.BindPFlag("resolver.max_candidates", resolveCmd.Flags().Lookup("max"))

	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	refine, _ := cmd.Flags().GetBool("refine")
	format, _ := cmd.Flags().GetString("format")
	noCache, _ := cmd.Flags().GetBool("no-cache")
	if !validFormat(format) {
		return eris.Errorf("unknown format %q (want bibtex, csl, json, or yaml)", format)
	}

	cfg := configFrom(viper.GetViper(), loadedSecrets)
	r := resolver.New(cfg,
		resolver.WithHTTPClient(&http.Client{}),
		resolver.WithLogger(logger),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var rc *cache.Cache
	if !noCache {
		c, err := cache.Open(cfg.Cache)
		if err != nil {
			logger.Warn("resolution cache unavailable", zap.Error(err))
		} else {
			rc = c
			defer rc.Close()
		}
	}

	res, err := resolveCached(ctx, r, rc, text, refine)
	logEvents(logger, res.Events)
	if err != nil {
		return err
	}
	return writeResult(cmd.OutOrStdout(), format, res)
}

// resolveCached serves text from c when possible and stores fresh results.
// A nil cache resolves every time.
func resolveCached(ctx context.Context, r *resolver.Resolver, c *cache.Cache, text string, refine bool) (resolver.Result, error) {
	var key string
	if c != nil {
		plan, err := r.Plan(text)
		if err != nil {
			return resolver.Result{}, err
		}
		key = cache.Key(string(plan.Domain), text)
		if refine {
			key += "|refined"
		}
		var cached resolver.Result
		ok, err := c.Get(ctx, key, &cached)
		if err != nil {
			logger.Warn("reading resolution cache", zap.Error(err))
		}
		if ok {
			logger.Debug("cache hit", zap.String("key", key))
			return cached, nil
		}
	}

	res, err := r.Resolve(ctx, text)
	if err != nil {
		return res, err
	}
	if refine {
		refined, events := r.RefineAll(ctx, res.Candidates)
		for i := range events {
			events[i].RequestID = res.RequestID
		}
		res.Candidates = refined
		res.Events = append(res.Events, events...)
	}

	if c != nil && ctx.Err() == nil && complete(res) {
		if err := c.Put(ctx, key, res); err != nil {
			logger.Warn("writing resolution cache", zap.Error(err))
		}
	}
	return res, nil
}

// complete reports whether every routed backend answered in full. Results
// missing a source are not cached so the next call can recover them.
func complete(res resolver.Result) bool {
	return types.CountKind(res.Events, types.EventSourceUnavailable) == 0 &&
		types.CountKind(res.Events, types.EventPartialResponse) == 0
}

func validFormat(f string) bool {
	switch f {
	case "bibtex", "csl", "json", "yaml":
		return true
	}
	return false
}

func writeResult(w io.Writer, format string, res resolver.Result) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(res), "encoding json")
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return eris.Wrap(err, "encoding yaml")
		}
		return eris.Wrap(enc.Close(), "encoding yaml")
	}

	cites := cite.NewSynthesizer().Cite(res.Candidates...)
	if format == "csl" {
		return cite.WriteCSL(w, cites)
	}
	entries := make([]types.Entry, len(cites))
	for i, c := range cites {
		entries[i] = c.Entry
	}
	return cite.WriteBibTeX(w, entries)
}
