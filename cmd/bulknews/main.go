// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the bulknews CLI.
package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/bulknews/internal/auth"
	"github.com/pdiddy/bulknews/pkg/types"
)

const (
	defaultHost      = "https://api.dowjones.com"
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "bulknews/0.1"
	secretsDir       = ".secrets/"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the bulknews CLI.
var rootCmd = &cobra.Command{
	Use:   "bulknews",
	Short: "Bulk access to the Dow Jones news archive",
	Long: `bulknews submits snapshot jobs against the Dow Jones news archive,
downloads their results, manages streams of article events, and looks up
taxonomy and company reference data.

Snapshots are asynchronous server-side jobs: explain counts matching
documents, analytics buckets them over time, extract produces downloadable
archive files, and update refreshes an existing extraction. Streams push
matching articles continuously over Pub/Sub.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := auth.LoadSecrets(secretsDir)
		if err != nil {
			return err
		}
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./bulknews.yaml or ~/.config/bulknews/config.yaml)")
	rootCmd.PersistentFlags().String("user-key", "", "account user key (overrides BULKNEWS_USERKEY and .secrets/)")
	rootCmd.PersistentFlags().String("host", "", "API base URL (default "+defaultHost+")")
	rootCmd.PersistentFlags().Duration("timeout", 0, "HTTP request timeout (default 60s)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("bulknews")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "bulknews"))
		}
	}

	viper.SetEnvPrefix("BULKNEWS")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// apiConfig resolves the API host, timeout and user key from flags, the
// config file, the environment, and .secrets/, in that order.
func apiConfig(cmd *cobra.Command) (types.APIConfig, error) {
	host, _ := cmd.Flags().GetString("host")
	if host == "" {
		host = viper.GetString("host")
	}
	if host == "" {
		host = defaultHost
	}
	host = strings.TrimRight(host, "/")

	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = viper.GetDuration("timeout")
	}
	if timeout == 0 {
		timeout = defaultTimeout
	}

	explicit, _ := cmd.Flags().GetString("user-key")
	if explicit == "" {
		explicit = viper.GetString("user_key")
	}
	userKey, err := auth.ResolveUserKey(explicit, secretsDir)
	if err != nil {
		return types.APIConfig{}, err
	}

	cfg := types.APIConfig{Host: host, UserKey: userKey}
	cfg.Timeout = timeout
	cfg.UserAgent = defaultUserAgent
	return cfg, nil
}

func newHTTPClient(cfg types.APIConfig) *http.Client {
	return &http.Client{Timeout: cfg.Timeout}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
