package cmd

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"taskhook/webhook"
)

var webhookStatusCmd = &cobra.Command{
	Use:   "webhook-status",
	Short: "Check the configured automation webhook",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		client := webhook.NewClient(webhook.ClientConfig{
			URL:     cfg.Webhook.URL,
			Timeout: cfg.Webhook.Timeout,
		})
		status := client.Status(cmd.Context())

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			return err
		}
		if !status.Success {
			return errors.New("webhook is inactive")
		}
		return nil
	},
}
