package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"taskhook/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the store schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		// Open applies the schema.
		st, err := store.Open(cmd.Context(), cfg.Store.URL, cfg.Store.Key)
		if err != nil {
			return err
		}
		defer st.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "%s store is up to date\n", store.Backend(cfg.Store.URL))
		return nil
	},
}
