package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/goodtune/plexbw/internal/config"
	"github.com/goodtune/plexbw/internal/storage"
	"github.com/spf13/cobra"
)

var markerCmd = &cobra.Command{
	Use:   "marker ACCOUNT_ID DEVICE_ID",
	Short: "Show the last emitted bucket of an account and device",
	Long: `Read the emission marker of one (account, device) pair from the configured
storage. Only useful with redis storage, or to confirm a pair has no marker.`,
	Example: `  plexbw -c config.yaml marker 22 7`,
	Args:    cobra.ExactArgs(2),
	RunE:    runMarker,
}

func init() {
	rootCmd.AddCommand(markerCmd)
}

func runMarker(cmd *cobra.Command, args []string) error {
	key, err := parsePairKey(args[0], args[1])
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return showMarker(ctx, os.Stdout, store, key)
}

func parsePairKey(account, device string) (storage.PairKey, error) {
	accountID, err := strconv.ParseInt(account, 10, 64)
	if err != nil {
		return storage.PairKey{}, fmt.Errorf("invalid account id %q", account)
	}
	deviceID, err := strconv.ParseInt(device, 10, 64)
	if err != nil {
		return storage.PairKey{}, fmt.Errorf("invalid device id %q", device)
	}
	return storage.PairKey{AccountID: accountID, DeviceID: deviceID}, nil
}

func showMarker(ctx context.Context, w io.Writer, store storage.MarkerStore, key storage.PairKey) error {
	at, err := store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		_, _ = color.New(color.FgYellow).Fprintf(w, "%s: no bucket emitted yet\n", key)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read marker %s: %w", key, err)
	}

	when := time.Unix(at, 0)
	_, _ = fmt.Fprintf(w, "%s: last emitted bucket %d (%s, %s)\n", key, at, when.UTC().Format(time.RFC3339), humanize.Time(when))
	return nil
}
