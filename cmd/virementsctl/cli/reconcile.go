package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/supratours/virements/internal/attachments"
	"github.com/supratours/virements/internal/payables"
)

func newReconcileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute payment order amounts and invoice statuses",
		Long: `Recompute the amount of payment orders from their attached invoices and
realign the invoice statuses with the order milestones.

Without --order every order is reconciled, each in its own transaction; a
failing order is reported and the run continues. Orders already handed to
the bank keep their amount unless --force is given.`,
		Example: `  virementsctl reconcile
  virementsctl reconcile --order 42
  virementsctl reconcile --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			orderID, _ := cmd.Flags().GetInt64("order")
			force, _ := cmd.Flags().GetBool("force")
			if orderID < 0 {
				return fmt.Errorf("--order must be positive")
			}
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			files, err := attachments.NewLocalStore(e.cfg.UploadDir)
			if err != nil {
				return err
			}
			service := payables.NewService(payables.NewRepository(e.pool), files, payables.NewReconciler(nil), payables.Config{
				CompanyName: e.cfg.CompanyName,
				OVStartNum:  e.cfg.OVStartNum,
			}, e.logger)

			if orderID > 0 {
				recompute := service.Recompute
				if force {
					recompute = service.Repair
				}
				order, err := recompute(cmd.Context(), orderID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "order %s: montant %s\n", order.Reference, order.Montant.StringFixed(2))
				return nil
			}
			n, err := service.ReconcileAll(cmd.Context(), force)
			if err != nil {
				return fmt.Errorf("reconciled %d order(s), failures:\n%w", n, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reconciled %d order(s)\n", n)
			return nil
		},
	}
	cmd.Flags().Int64("order", 0, "Reconcile a single payment order by id")
	cmd.Flags().Bool("force", false, "Also rewrite the amount of orders already handed to the bank")
	return cmd
}
