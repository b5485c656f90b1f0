// Package cmd holds the arogyactl commands.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"arogyarakshak/cli/api"
	"arogyarakshak/core/config"
)

// outputFormat is a pflag.Value restricted to plain and json.
type outputFormat string

var _ pflag.Value = (*outputFormat)(nil)

func (o *outputFormat) String() string { return string(*o) }
func (o *outputFormat) Type() string   { return "format" }

func (o *outputFormat) Set(v string) error {
	switch v {
	case "plain", "json":
		*o = outputFormat(v)
		return nil
	}
	return fmt.Errorf("must be plain or json, got %q", v)
}

var (
	serverURL string
	token     string
	envFile   string
	output    = outputFormat("plain")
)

var rootCmd = &cobra.Command{
	Use:           "arogyactl",
	Short:         "Arogya Rakshak ledger CLI",
	Long:          "A command-line tool for inspecting and verifying an Arogya Rakshak ledger node.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&serverURL, "server", envOr("AROGYA_SERVER", api.DefaultServer), "node base URL")
	flags.StringVar(&token, "token", os.Getenv("AROGYA_TOKEN"), "bearer token for authenticated nodes")
	flags.StringVar(&envFile, "env", ".env", "dotenv file with AROGYA_* settings for local commands")
	flags.VarP(&output, "output", "o", "output format: plain|json")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func client() *api.Client { return api.NewClient(serverURL, token) }

func loadConfig() (config.Config, error) { return config.Load(envFile) }

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
