package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/supratours/virements/internal/auth"
	"github.com/supratours/virements/internal/rbac"
	"github.com/supratours/virements/internal/shared"
)

const passwordEnv = "VIREMENTS_PASSWORD"

func newCreateUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a back-office account",
		Long: `Create a back-office account and optionally grant it a role.

The password is read from --password or, when omitted, from the
VIREMENTS_PASSWORD environment variable.`,
		Example: `  VIREMENTS_PASSWORD=... virementsctl create-user --email compta@supratours.ma --role comptable
  virementsctl create-user --email admin@supratours.ma --password ... --superuser`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, role, err := newUserFromFlags(cmd)
			if err != nil {
				return err
			}
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			service := auth.NewService(auth.NewRepository(e.pool))
			service.SetAuditor(shared.NewAuditLogger(e.pool))
			user, err := service.CreateUser(cmd.Context(), in)
			if err != nil {
				return err
			}
			if role != "" {
				if err := assignRole(cmd.Context(), rbac.NewService(e.pool), user.ID, role); err != nil {
					return fmt.Errorf("user %d created but role not granted: %w", user.ID, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d <%s>\n", user.ID, user.Email)
			return nil
		},
	}
	cmd.Flags().String("email", "", "Login email")
	cmd.Flags().String("name", "", "Display name")
	cmd.Flags().String("password", "", "Password (defaults to $"+passwordEnv+")")
	cmd.Flags().String("role", "", "Role to grant")
	cmd.Flags().Bool("superuser", false, "Grant every permission")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newUserFromFlags(cmd *cobra.Command) (auth.NewUser, string, error) {
	email, _ := cmd.Flags().GetString("email")
	name, _ := cmd.Flags().GetString("name")
	password, _ := cmd.Flags().GetString("password")
	role, _ := cmd.Flags().GetString("role")
	superuser, _ := cmd.Flags().GetBool("superuser")
	if password == "" {
		password = os.Getenv(passwordEnv)
	}
	if password == "" {
		return auth.NewUser{}, "", fmt.Errorf("a password is required (--password or $%s)", passwordEnv)
	}
	return auth.NewUser{Email: email, Name: name, Password: password, Superuser: superuser}, strings.TrimSpace(role), nil
}

type roleAssigner interface {
	ListRoles(ctx context.Context) ([]rbac.Role, error)
	AssignRole(ctx context.Context, userID, roleID int64) error
}

func assignRole(ctx context.Context, roles roleAssigner, userID int64, name string) error {
	all, err := roles.ListRoles(ctx)
	if err != nil {
		return err
	}
	for _, r := range all {
		if strings.EqualFold(r.Name, name) {
			return roles.AssignRole(ctx, userID, r.ID)
		}
	}
	return fmt.Errorf("role %q: %w", name, shared.ErrNotFound)
}
