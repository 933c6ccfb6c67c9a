// Package cmd is the taskhook command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskhook/config"
)

var (
	configFile string
	rootCmd    *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "taskhook",
		Short: "Task manager with an n8n webhook bridge",
		Long: `taskhook serves a small task list and keeps it in sync with an external
workflow-automation service: new tasks are POSTed to a webhook, and the
service can create, update and enrich tasks through inbound endpoints.

Settings come from an optional YAML file and the environment
(STORE_URL, STORE_KEY, WEBHOOK_URL, HTTP_ADDR, ...).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a YAML config file")
}

// Execute runs the root command.
func Execute() error {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(webhookStatusCmd)
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func loadConfig(cmd *cobra.Command) (*viper.Viper, config.Config, error) {
	v, err := config.New(configFile)
	if err != nil {
		return nil, config.Config{}, err
	}
	if f := cmd.Flags().Lookup("addr"); f != nil {
		if err := v.BindPFlag("http.addr", f); err != nil {
			return nil, config.Config{}, err
		}
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, config.Config{}, err
	}
	return v, cfg, nil
}
