package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/goodtune/plexbw/internal/attribution"
	"github.com/goodtune/plexbw/internal/config"
	"github.com/goodtune/plexbw/internal/storage/memory"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	pollJSON    bool
	pollTimeout time.Duration
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run a single attribution poll and print the samples",
	Long: `Poll the Plex server once and print every attributed sample. Markers are
kept in a private in-memory store, so the run does not affect a running
exporter sharing the configured storage.`,
	Example: `  plexbw poll
  plexbw -c config.yaml poll --json`,
	RunE: runPoll,
}

func init() {
	pollCmd.Flags().BoolVar(&pollJSON, "json", false, "Print samples as JSON lines")
	pollCmd.Flags().DurationVar(&pollTimeout, "timeout", 30*time.Second, "Overall poll timeout")
	rootCmd.AddCommand(pollCmd)
}

func runPoll(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Only warnings and errors, on stderr
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)

	store, err := memory.Open(cfg.Storage.Memory.Capacity)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
	defer cancel()

	samples, err := newPoller(cfg, store, logger).Poll(ctx)
	if err != nil {
		return err
	}

	if pollJSON {
		return printSamplesJSON(os.Stdout, samples)
	}
	printSamples(os.Stdout, samples)
	return nil
}

func printSamplesJSON(w io.Writer, samples []attribution.Sample) error {
	enc := json.NewEncoder(w)
	for _, s := range samples {
		if err := enc.Encode(struct {
			Labels attribution.Labels `json:"labels"`
			Bytes  float64            `json:"bytes"`
		}{s.Labels, s.Bytes}); err != nil {
			return err
		}
	}
	return nil
}

func printSamples(w io.Writer, samples []attribution.Sample) {
	if len(samples) == 0 {
		_, _ = fmt.Fprintln(w, "No new samples")
		return
	}

	cyan := color.New(color.FgCyan, color.Bold)
	yellow := color.New(color.FgYellow)
	green := color.New(color.FgGreen)

	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Bytes > samples[j].Bytes
	})

	var total float64
	for _, s := range samples {
		l := s.Labels

		_, _ = cyan.Fprintf(w, "%-10s", humanize.Bytes(uint64(s.Bytes)))
		_, _ = fmt.Fprintf(w, " %s (%s) on %s [%s]", l[attribution.LabelAccountName], l[attribution.LabelAccountID], l[attribution.LabelDeviceName], l[attribution.LabelNet])
		if original := l[attribution.LabelOriginalAccountName]; original != "" {
			_, _ = yellow.Fprintf(w, " reattributed from %s", original)
		}
		if title := l[attribution.LabelMediaTitle]; title != "" {
			_, _ = green.Fprintf(w, " %s", title)
			_, _ = fmt.Fprintf(w, " %s", strings.TrimSpace(l[attribution.LabelState]+" "+l[attribution.LabelAddress]))
		}
		_, _ = fmt.Fprintln(w)

		total += s.Bytes
	}

	_, _ = fmt.Fprintf(w, "\n%s across %s\n", humanize.Bytes(uint64(total)), pluralSamples(len(samples)))
}

func pluralSamples(n int) string {
	if n == 1 {
		return "1 sample"
	}
	return humanize.Comma(int64(n)) + " samples"
}
