// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/paperfinder/internal/cite"
	"github.com/pdiddy/paperfinder/internal/refine"
	"github.com/pdiddy/paperfinder/internal/refs"
	"github.com/pdiddy/paperfinder/internal/resolver"
	"github.com/pdiddy/paperfinder/pkg/types"
)

var refsCmd = &cobra.Command{
	Use:   "refs <file>",
	Short: "Resolve every entry of a reference list",
	Long: `Refs reads the reference section of a Markdown, text, or PDF file ("-" reads
standard input), resolves each entry, and writes a bibliography with one
entry per resolved reference. Unresolved references are reported as BibTeX
comments so the output can be reviewed by hand.`,
	Args: cobra.ExactArgs(1),
	RunE: runRefs,
}

func init() {
	refsCmd.Flags().String("format", "bibtex", "output format: bibtex or csl")
	refsCmd.Flags().Int("concurrency", refs.DefaultConcurrency, "references resolved in parallel")

	rootCmd.AddCommand(refsCmd)
}

func runRefs(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if format != "bibtex" && format != "csl" {
		return eris.Errorf("unknown format %q (want bibtex or csl)", format)
	}

	text, err := readDocument(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}
	list := refs.Parse(text)
	if len(list) == 0 {
		return eris.Errorf("no references found in %s", args[0])
	}
	logger.Debug("parsed references", zap.Int("count", len(list)))

	cfg := configFrom(viper.GetViper(), loadedSecrets)
	r := resolver.New(cfg,
		resolver.WithHTTPClient(&http.Client{}),
		resolver.WithLogger(logger),
	)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	results := refs.ResolveAll(ctx, r, list, concurrency)
	for _, res := range results {
		logEvents(logger, res.Result.Events)
	}
	return writeBibliography(cmd.OutOrStdout(), format, results)
}

func readDocument(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		return string(data), eris.Wrap(err, "reading stdin")
	}
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return refine.ReadText(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "reading %s", path)
	}
	return string(data), nil
}

// writeBibliography writes one citation per resolved reference. Keys are
// unique across the whole list.
func writeBibliography(w io.Writer, format string, results []refs.Resolution) error {
	var papers []types.Paper
	var unresolved []refs.Resolution
	for _, res := range results {
		if p, ok := res.Best(); ok {
			papers = append(papers, p)
		} else {
			unresolved = append(unresolved, res)
		}
	}

	cites := cite.NewSynthesizer().Cite(papers...)
	if format == "csl" {
		if err := cite.WriteCSL(w, cites); err != nil {
			return err
		}
		for _, res := range unresolved {
			fmt.Fprintf(w, "# unresolved [%s]: %s\n", res.Reference.Label, res.Reference.Raw)
		}
		return nil
	}

	entries := make([]types.Entry, len(cites))
	for i, c := range cites {
		entries[i] = c.Entry
	}
	if err := cite.WriteBibTeX(w, entries); err != nil {
		return err
	}
	for _, res := range unresolved {
		fmt.Fprintf(w, "\n%% unresolved [%s]: %s\n", res.Reference.Label, res.Reference.Raw)
	}
	return nil
}
