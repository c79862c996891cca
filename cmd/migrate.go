package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the store schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}

		// Migration is a natural moment to clear out dead cache rows.
		removed, err := st.DeleteExpiredSnapshots(cmd.Context())
		if err != nil {
			zap.L().Warn("expired snapshot sweep failed", zap.Error(err))
		} else if removed > 0 {
			zap.L().Info("removed expired cached snapshots", zap.Int("count", removed))
		}

		fmt.Printf("store %q migrated\n", cfg.Store.Driver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
