package cli

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/supratours/virements/internal/attachments"
	"github.com/supratours/virements/internal/masterdata/contracts"
	"github.com/supratours/virements/internal/payables"
	"github.com/supratours/virements/internal/view"
	"github.com/supratours/virements/jobs"
)

func newDigestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest [invoices|unpaid|purchase-orders]",
		Short: "Send a follow-up digest now",
		Long: `Build a follow-up digest and queue its mail.

  invoices         unpaid invoices already due or due within the next days
  unpaid           every unpaid invoice regardless of its due date
  purchase-orders  purchase orders not yet fully invoiced

With --enqueue the digest itself is handed to the worker instead.`,
		Example: `  virementsctl digest unpaid
  virementsctl digest invoices --enqueue`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{DigestInvoices, DigestUnpaid, DigestPurchaseOrders},
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if _, err := digestTask(name); err != nil {
				return err
			}
			enqueue, _ := cmd.Flags().GetBool("enqueue")
			if enqueue {
				cfg, _, err := loadConfig()
				if err != nil {
					return err
				}
				c := NewJobsCLI(cfg.RedisAddr)
				defer c.Close()
				info, err := c.Trigger(cmd.Context(), name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queued %s as %s\n", info.Type, info.ID)
				return nil
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
			templates, err := view.NewEngine()
			if err != nil {
				return err
			}
			mail, err := jobs.NewClient(asynq.RedisClientOpt{Addr: e.cfg.RedisAddr})
			if err != nil {
				return err
			}
			defer mail.Close()

			job := &jobs.DigestJob{
				Invoices: payables.NewService(payables.NewRepository(e.pool), files, payables.NewReconciler(nil), payables.Config{
					CompanyName: e.cfg.CompanyName,
					OVStartNum:  e.cfg.OVStartNum,
				}, e.logger),
				Contracts: contracts.NewService(contracts.NewRepository(e.pool), files, e.logger),
				Renderer:  templates,
				Mail:      mail,
				Recipients: jobs.DigestRecipients{
					Invoices:       e.cfg.DigestInvoicesTo,
					PurchaseOrders: e.cfg.DigestPurchaseOrdersTo,
				},
				Logger: e.logger,
			}

			var n int
			switch name {
			case DigestPurchaseOrders:
				n, err = job.SendPurchaseOrderDigest(cmd.Context())
			default:
				n, err = job.SendInvoiceDigest(cmd.Context(), name == DigestUnpaid)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s digest: %d row(s)\n", name, n)
			return nil
		},
	}
	cmd.Flags().Bool("enqueue", false, "Queue the digest for the worker instead of building it here")
	return cmd
}
