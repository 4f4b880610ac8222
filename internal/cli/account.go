package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/rlchess/internal/account"
)

// AccountView is the printed form of a burner.
type AccountView struct {
	account.Burner
	Active bool `json:"active"`
}

// NewAccountCommand creates the account command group.
func NewAccountCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage burner accounts",
		Long: `Manage burner accounts derived from the keystore mnemonic.

Burners are deployed and funded by the master account
(RLCHESS_MASTER_ADDRESS, RLCHESS_MASTER_PRIVATE_KEY). The keystore is sealed
with RLCHESS_KEYSTORE_PASSPHRASE.`,
	}
	cmd.AddCommand(newAccountNewCommand(rootOpts))
	cmd.AddCommand(newAccountListCommand(rootOpts))
	cmd.AddCommand(newAccountUseCommand(rootOpts))
	return cmd
}

func newAccountNewCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "new",
		Short:         "Derive, deploy and activate the next burner",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			ks, ok, err := e.keystore()
			if err != nil {
				return err
			}
			if !ok {
				if e.cfg.KeystorePassphrase == "" {
					return NewExitError(ExitCommandError, "keystore passphrase not set (RLCHESS_KEYSTORE_PASSPHRASE)")
				}
				if ks.Mnemonic, err = account.NewMnemonic(); err != nil {
					return WrapExitError(ExitCommandError, "failed to create mnemonic", err)
				}
			}

			m, err := e.manager(cmd.Context(), ks, true)
			if err != nil {
				return err
			}
			b, err := m.Create(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to create burner", err)
			}

			ks.Burners = m.List()
			ks.Active = m.Active()
			if err := ks.Save(e.cfg.KeystorePath, e.cfg.KeystorePassphrase); err != nil {
				return WrapExitError(ExitCommandError, "failed to save keystore", err)
			}

			view := AccountView{Burner: b, Active: true}
			return newFormatter(rootOpts, cmd).Success(view, func(w io.Writer) {
				fmt.Fprintf(w, "Burner %d deployed at %s (tx %s), now active\n", b.Index, b.Address, b.TxHash)
			})
		},
	}
}

func newAccountListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List burners in the keystore",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			ks, _, err := e.keystore()
			if err != nil {
				return err
			}
			views := make([]AccountView, 0, len(ks.Burners))
			for _, b := range ks.Burners {
				views = append(views, AccountView{Burner: b, Active: b.Address == ks.Active})
			}
			return newFormatter(rootOpts, cmd).Success(views, func(w io.Writer) {
				if len(views) == 0 {
					fmt.Fprintln(w, "No burners. Create one with: rlchess account new")
					return
				}
				for _, v := range views {
					marker := " "
					if v.Active {
						marker = "*"
					}
					fmt.Fprintf(w, "%s %3d %s\n", marker, v.Index, v.Address)
				}
			})
		},
	}
}

func newAccountUseCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "use <address>",
		Short:         "Make a burner the active signer",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			ks, ok, err := e.keystore()
			if err != nil {
				return err
			}
			if !ok {
				return NewExitError(ExitCommandError, "no keystore: create a burner first")
			}
			m, err := e.manager(cmd.Context(), ks, false)
			if err != nil {
				return err
			}
			b, err := m.Select(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "unknown account", err)
			}
			ks.Active = b.Address
			if err := ks.Save(e.cfg.KeystorePath, e.cfg.KeystorePassphrase); err != nil {
				return WrapExitError(ExitCommandError, "failed to save keystore", err)
			}
			view := AccountView{Burner: b, Active: true}
			return newFormatter(rootOpts, cmd).Success(view, func(w io.Writer) {
				fmt.Fprintf(w, "Active account: %s\n", b.Address)
			})
		},
	}
}
