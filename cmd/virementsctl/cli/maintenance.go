package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/supratours/virements/internal/shared"
)

func newPurgeIdempotencyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge-idempotency",
		Short: "Delete idempotency keys older than a retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			olderThan, _ := cmd.Flags().GetDuration("older-than")
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			n, err := shared.NewIdempotencyStore(e.pool).Purge(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d key(s)\n", n)
			return nil
		},
	}
	cmd.Flags().Duration("older-than", 72*time.Hour, "Retention window")
	return cmd
}
