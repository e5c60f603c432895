package main

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/plexbw/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	validateDump bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the plexbw configuration, including environment overrides, and report unknown keys.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump full configuration with defaults highlighted")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Configuration validation failed: %v\n", err)
		return err
	}

	unknownKeys, err := findUnknownKeys(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Warning: could not check for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "Configuration is valid: %s\n", configPath)

	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		_, _ = fmt.Fprintln(os.Stdout)
		_, _ = red.Fprintf(os.Stdout, "WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			_, _ = red.Fprintf(os.Stdout, "   - %s\n", key)
		}
		_, _ = fmt.Fprintln(os.Stdout, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	if validateDump {
		_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
		_, _ = fmt.Fprintln(os.Stdout, "FULL CONFIGURATION (values different from defaults are highlighted)")
		_, _ = fmt.Fprintln(os.Stdout, strings.Repeat("=", 80))

		dumpConfig(os.Stdout, cfg, getDefaultConfig())

		_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
	}

	return nil
}

// getDefaultConfig creates a configuration with default values
func getDefaultConfig() *config.Config {
	v := viper.New()
	config.SetDefaults(v)

	var cfg config.Config
	_ = v.Unmarshal(&cfg)

	return &cfg
}

// findUnknownKeys loads the config file and returns the keys that are not
// part of the configuration schema. A missing file has no unknown keys.
func findUnknownKeys(configPath string) ([]string, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	valid := map[string]bool{}
	defaults := viper.New()
	config.SetDefaults(defaults)
	for _, key := range defaults.AllKeys() {
		valid[key] = true
	}

	unknown := []string{}
	for _, key := range v.AllKeys() {
		if !valid[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)

	return unknown, nil
}

// dumpConfig dumps configuration with color highlighting for non-default values
func dumpConfig(w io.Writer, cfg, defaultCfg *config.Config) {
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan, color.Bold)

	dump := func(name string, value, defaultValue any) {
		dumpField(w, name, value, defaultValue, yellow, green)
	}

	_, _ = cyan.Fprintln(w, "\n[server]")
	dump("  bind_address", cfg.Server.BindAddress, defaultCfg.Server.BindAddress)
	dump("  metrics_port", cfg.Server.MetricsPort, defaultCfg.Server.MetricsPort)

	_, _ = cyan.Fprintln(w, "\n[plex]")
	dump("  url", cfg.Plex.URL, defaultCfg.Plex.URL)
	dump("  token", redact(cfg.Plex.Token), redact(defaultCfg.Plex.Token))
	dump("  timespan", cfg.Plex.Timespan, defaultCfg.Plex.Timespan)
	dump("  timeout", cfg.Plex.Timeout, defaultCfg.Plex.Timeout)
	dump("  insecure_skip_verify", cfg.Plex.InsecureSkipVerify, defaultCfg.Plex.InsecureSkipVerify)
	dump("  client_identifier", cfg.Plex.ClientIdentifier, defaultCfg.Plex.ClientIdentifier)
	dump("  device_name", cfg.Plex.DeviceName, defaultCfg.Plex.DeviceName)

	_, _ = cyan.Fprintln(w, "\n[attribution]")
	dump("  owner_account_id", cfg.Attribution.OwnerAccountID, defaultCfg.Attribution.OwnerAccountID)
	dump("  streaming_threshold_bytes", cfg.Attribution.StreamingThresholdBytes, defaultCfg.Attribution.StreamingThresholdBytes)
	dump("  default_bitrate_kbps", cfg.Attribution.DefaultBitrateKbps, defaultCfg.Attribution.DefaultBitrateKbps)

	_, _ = cyan.Fprintln(w, "\n[storage]")
	dump("  type", cfg.Storage.Type, defaultCfg.Storage.Type)
	_, _ = cyan.Fprintln(w, "  [storage.memory]")
	dump("    capacity", cfg.Storage.Memory.Capacity, defaultCfg.Storage.Memory.Capacity)
	_, _ = cyan.Fprintln(w, "  [storage.redis]")
	dump("    host", cfg.Storage.Redis.Host, defaultCfg.Storage.Redis.Host)
	dump("    port", cfg.Storage.Redis.Port, defaultCfg.Storage.Redis.Port)
	dump("    password", redact(cfg.Storage.Redis.Password), redact(defaultCfg.Storage.Redis.Password))
	dump("    db", cfg.Storage.Redis.DB, defaultCfg.Storage.Redis.DB)
	dump("    pool_size", cfg.Storage.Redis.PoolSize, defaultCfg.Storage.Redis.PoolSize)
	dump("    min_idle_conns", cfg.Storage.Redis.MinIdleConns, defaultCfg.Storage.Redis.MinIdleConns)
	dump("    dial_timeout", cfg.Storage.Redis.DialTimeout, defaultCfg.Storage.Redis.DialTimeout)
	dump("    read_timeout", cfg.Storage.Redis.ReadTimeout, defaultCfg.Storage.Redis.ReadTimeout)
	dump("    write_timeout", cfg.Storage.Redis.WriteTimeout, defaultCfg.Storage.Redis.WriteTimeout)
	dump("    key_prefix", cfg.Storage.Redis.KeyPrefix, defaultCfg.Storage.Redis.KeyPrefix)
	dump("    marker_ttl", cfg.Storage.Redis.MarkerTTL, defaultCfg.Storage.Redis.MarkerTTL)

	_, _ = cyan.Fprintln(w, "\n[logging]")
	dump("  level", cfg.Logging.Level, defaultCfg.Logging.Level)
	dump("  format", cfg.Logging.Format, defaultCfg.Logging.Format)
}

// dumpField prints a field with color if it differs from default
func dumpField(w io.Writer, name string, value, defaultValue any, modifiedColor, defaultColor *color.Color) {
	if reflect.DeepEqual(value, defaultValue) {
		_, _ = defaultColor.Fprintf(w, "%s = %v\n", name, value)
		return
	}
	_, _ = modifiedColor.Fprintf(w, "%s = %v  (modified from default: %v)\n", name, value, defaultValue)
}

// redact hides secrets if not empty
func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "***REDACTED***"
}
