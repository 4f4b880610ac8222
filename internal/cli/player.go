package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/rlchess/internal/contract"
	"github.com/roach88/rlchess/internal/display"
	"github.com/roach88/rlchess/internal/lobby"
	"github.com/roach88/rlchess/internal/model"
	"github.com/roach88/rlchess/internal/store"
)

// ProfileOptions holds flags for player register and update.
type ProfileOptions struct {
	ActionOptions
	Name    string
	PicType string
	PicURI  string
}

// NewPlayerCommand creates the player command group.
func NewPlayerCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "player",
		Short: "Register players and inspect synced profiles",
	}
	cmd.AddCommand(newProfileCommand(rootOpts, "register", lobby.ActionRegisterPlayer))
	cmd.AddCommand(newProfileCommand(rootOpts, "update", lobby.ActionUpdatePlayer))
	cmd.AddCommand(newPlayerListCommand(rootOpts))
	cmd.AddCommand(newPlayerShowCommand(rootOpts))
	return cmd
}

func newProfileCommand(rootOpts *RootOptions, use string, action lobby.Action) *cobra.Command {
	opts := &ProfileOptions{ActionOptions: ActionOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Submit %s for the signing account", action),
		Long: fmt.Sprintf(`Submit %s for the signing account.

The name is packed into a single felt and must be ASCII, at most 31 bytes.

Examples:
  rlchess player %s --name alice
  rlchess player %s --name alice --pfp-type Native --pfp-uri 7 --wait`, action, use, use),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pt, err := model.ParseProfilePicType(opts.PicType)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --pfp-type", err)
			}
			profile := lobby.PlayerProfile{Name: opts.Name, ProfilePicType: pt, ProfilePicURI: opts.PicURI}
			return runAction(&opts.ActionOptions, cmd, func(ctx context.Context, c *lobby.Client, s contract.Signer) lobby.Result {
				if action == lobby.ActionUpdatePlayer {
					return c.UpdatePlayer(ctx, s, profile)
				}
				return c.RegisterPlayer(ctx, s, profile)
			})
		},
	}

	addActionFlags(cmd, &opts.ActionOptions)
	cmd.Flags().StringVar(&opts.Name, "name", "", "player name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&opts.PicType, "pfp-type", "Undefined", "profile picture type (Undefined|Native|External)")
	cmd.Flags().StringVar(&opts.PicURI, "pfp-uri", "", "profile picture uri")

	return cmd
}

func newPlayerListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List synced players",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			players, err := loadPlayers(cmd.Context(), e.store)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read players", err)
			}
			rows := display.Players(players)
			return newFormatter(rootOpts, cmd).Success(rows, func(w io.Writer) {
				if len(rows) == 0 {
					fmt.Fprintln(w, "No players synced.")
					return
				}
				for _, r := range rows {
					fmt.Fprintf(w, "%-20s %-10s pfp=%-4d %s\n", r.Name, r.ProfilePicType, r.ProfilePicNumber, r.Address)
				}
			})
		},
	}
}

func newPlayerShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <address>",
		Short:         "Show one synced player",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			id, err := model.PlayerEntity(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid address", err)
			}
			c, ok, err := e.store.GetComponent(cmd.Context(), id, model.ComponentPlayer)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read player", err)
			}
			if !ok {
				return NewExitError(ExitCommandError, fmt.Sprintf("player %s not synced", args[0]))
			}
			p, err := model.DecodePlayer(c.Value)
			if err != nil {
				return WrapExitError(ExitCommandError, "corrupt player", err)
			}
			row := display.Players([]model.Player{p})[0]
			return newFormatter(rootOpts, cmd).Success(row, func(w io.Writer) {
				fmt.Fprintf(w, "Name:     %s\n", row.Name)
				fmt.Fprintf(w, "Address:  %s\n", row.Address)
				fmt.Fprintf(w, "Picture:  %s (%d)\n", row.ProfilePicType, row.ProfilePicNumber)
			})
		},
	}
}

// loadPlayers decodes every synced Player, skipping undecodable rows.
func loadPlayers(ctx context.Context, st *store.Store) ([]model.Player, error) {
	comps, err := st.ListComponents(ctx, model.ComponentPlayer)
	if err != nil {
		return nil, err
	}
	out := make([]model.Player, 0, len(comps))
	for _, c := range comps {
		p, err := model.DecodePlayer(c.Value)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
