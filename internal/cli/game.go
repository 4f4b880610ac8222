package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/rlchess/internal/chessmove"
	"github.com/roach88/rlchess/internal/contract"
	"github.com/roach88/rlchess/internal/display"
	"github.com/roach88/rlchess/internal/lobby"
	"github.com/roach88/rlchess/internal/model"
	"github.com/roach88/rlchess/internal/store"
)

// NewGameCommand creates the game command group.
func NewGameCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "game",
		Short: "Open, join and play game rooms",
	}
	cmd.AddCommand(newGameCreateCommand(rootOpts))
	cmd.AddCommand(newGameInviteCommand(rootOpts))
	cmd.AddCommand(newGameReplyCommand(rootOpts))
	cmd.AddCommand(newGameIDActionCommand(rootOpts, "join", "Join an open room", func(ctx context.Context, c *lobby.Client, s contract.Signer, id int64) lobby.Result {
		return c.JoinGame(ctx, s, id)
	}))
	cmd.AddCommand(newGameIDActionCommand(rootOpts, "start", "Start play in a room you own", func(ctx context.Context, c *lobby.Client, s contract.Signer, id int64) lobby.Result {
		return c.StartGame(ctx, s, id)
	}))
	cmd.AddCommand(newGameMoveCommand(rootOpts))
	cmd.AddCommand(newGameRoomsCommand(rootOpts))
	cmd.AddCommand(newGameShowCommand(rootOpts))
	return cmd
}

func newGameCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ActionOptions{RootOptions: rootOpts}
	var format int64

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a room owned by the signing account",
		Long: `Open a room owned by the signing account.

Formats: 0 Unlimited, 1 Bullet, 2 Blitz, 3 Rapid, 4 Classical, or any id
defined on chain.

Example:
  rlchess game create --format 2 --wait`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(opts, cmd, func(ctx context.Context, c *lobby.Client, s contract.Signer) lobby.Result {
				return c.CreateGame(ctx, s, format)
			})
		},
	}
	addActionFlags(cmd, opts)
	cmd.Flags().Int64Var(&format, "format", 0, "game format id")
	return cmd
}

func newGameInviteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ActionOptions{RootOptions: rootOpts}
	var (
		format  int64
		invitee string
		expires time.Duration
	)

	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Open a room and invite a player into it",
		Long: `Open a room and invite a player into it.

Example:
  rlchess game invite --invitee 0xb0b --format 1 --expires 30m`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if expires <= 0 {
				return NewExitError(ExitCommandError, "--expires must be positive")
			}
			p := lobby.InviteParams{
				GameFormatID: format,
				Invitee:      invitee,
				InviteExpiry: time.Now().Add(expires).Unix(),
			}
			return runAction(opts, cmd, func(ctx context.Context, c *lobby.Client, s contract.Signer) lobby.Result {
				return c.Invite(ctx, s, p)
			})
		},
	}
	addActionFlags(cmd, opts)
	cmd.Flags().Int64Var(&format, "format", 0, "game format id")
	cmd.Flags().StringVar(&invitee, "invitee", "", "address of the invited player (required)")
	_ = cmd.MarkFlagRequired("invitee")
	cmd.Flags().DurationVar(&expires, "expires", time.Hour, "how long the invitation stays open")
	return cmd
}

func newGameReplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ActionOptions{RootOptions: rootOpts}
	var reject bool

	cmd := &cobra.Command{
		Use:           "reply <game-id>",
		Short:         "Accept (default) or reject an invitation",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseGameID(args[0])
			if err != nil {
				return err
			}
			return runAction(opts, cmd, func(ctx context.Context, c *lobby.Client, s contract.Signer) lobby.Result {
				return c.ReplyInvite(ctx, s, id, !reject)
			})
		},
	}
	addActionFlags(cmd, opts)
	cmd.Flags().BoolVar(&reject, "reject", false, "reject instead of accepting")
	return cmd
}

func newGameIDActionCommand(rootOpts *RootOptions, use, short string, act func(context.Context, *lobby.Client, contract.Signer, int64) lobby.Result) *cobra.Command {
	opts := &ActionOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:           use + " <game-id>",
		Short:         short,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseGameID(args[0])
			if err != nil {
				return err
			}
			return runAction(opts, cmd, func(ctx context.Context, c *lobby.Client, s contract.Signer) lobby.Result {
				return act(ctx, c, s, id)
			})
		},
	}
	addActionFlags(cmd, opts)
	return cmd
}

func newGameMoveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ActionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "move <game-id> <move>",
		Short: "Play a move",
		Long: `Play a move in UCI ("e2e4", "e7e8q") or SAN ("Nf3").

SAN and legality checks need the game's position, which is read from the
local store when the game state has been synced.

Examples:
  rlchess game move 12 e2e4
  rlchess game move 12 Nf3 --wait`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseGameID(args[0])
			if err != nil {
				return err
			}
			fen, err := syncedFEN(cmd.Context(), rootOpts, id)
			if err != nil {
				return err
			}
			parsed, err := chessmove.Parse(args[1], fen)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid move", err)
			}
			newFormatter(rootOpts, cmd).VerboseLog("move %s -> %s", args[1], parsed.Move)
			return runAction(opts, cmd, func(ctx context.Context, c *lobby.Client, s contract.Signer) lobby.Result {
				return c.MakeMove(ctx, s, id, parsed.Move)
			})
		},
	}
	addActionFlags(cmd, opts)
	return cmd
}

// syncedFEN returns the stored position of a game, or "" when unknown.
func syncedFEN(ctx context.Context, rootOpts *RootOptions, gameID int64) (string, error) {
	e, err := openEnv(rootOpts)
	if err != nil {
		return "", err
	}
	defer e.Close()

	state, err := loadGameState(ctx, e.store, gameID)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to read game state", err)
	}
	if state == nil {
		return "", nil
	}
	return state.FEN, nil
}

func newGameRoomsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "rooms",
		Short:         "List rooms awaiting an opponent",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			games, err := loadGames(ctx, e.store)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read games", err)
			}
			players, err := loadPlayers(ctx, e.store)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read players", err)
			}
			formats, err := loadFormats(ctx, e.store)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read formats", err)
			}

			rooms := display.OpenRooms(games, players, formats)
			return newFormatter(rootOpts, cmd).Success(rooms, func(w io.Writer) {
				if len(rooms) == 0 {
					fmt.Fprintln(w, "No open rooms.")
					return
				}
				for _, r := range rooms {
					fmt.Fprintf(w, "#%-5d %-20s %-10s %-12s %s\n", r.GameID, r.OwnerName, r.Format, r.TotalTime, r.RoomStart)
				}
			})
		},
	}
}

func newGameShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <game-id>",
		Short:         "Show a room from the owner's and opponent's side",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseGameID(args[0])
			if err != nil {
				return err
			}
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			game, ok, err := loadGame(ctx, e.store, id)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read game", err)
			}
			if !ok {
				return NewExitError(ExitCommandError, fmt.Sprintf("game %d not synced", id))
			}
			state, err := loadGameState(ctx, e.store, id)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read game state", err)
			}
			players, err := loadPlayers(ctx, e.store)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read players", err)
			}
			formats, err := loadFormats(ctx, e.store)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read formats", err)
			}

			room := display.BuildRoom(game, state, players, formats)
			return newFormatter(rootOpts, cmd).Success(room, func(w io.Writer) {
				writeRoom(w, room)
			})
		},
	}
}

func writeRoom(w io.Writer, r display.Room) {
	fmt.Fprintf(w, "Game #%d (%s) invite=%s started=%t\n", r.GameID, r.Format, r.InviteState, r.Started)
	writeSeat(w, "owner", r.Owner)
	if r.Opponent == nil {
		fmt.Fprintln(w, "  opponent: waiting")
		return
	}
	writeSeat(w, "opponent", *r.Opponent)
}

func writeSeat(w io.Writer, role string, s display.Seat) {
	fmt.Fprintf(w, "  %s: %s %s [%s] %s\n", role, s.Name, s.Address, s.Color, s.Clock)
}

func parseGameID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid game id %q", s))
	}
	return id, nil
}

func loadGames(ctx context.Context, st *store.Store) ([]model.Game, error) {
	comps, err := st.ListComponents(ctx, model.ComponentGame)
	if err != nil {
		return nil, err
	}
	out := make([]model.Game, 0, len(comps))
	for _, c := range comps {
		if g, err := model.DecodeGame(c.Value); err == nil {
			out = append(out, g)
		}
	}
	return out, nil
}

func loadGame(ctx context.Context, st *store.Store, id int64) (model.Game, bool, error) {
	entity, err := model.GameEntity(id)
	if err != nil {
		return model.Game{}, false, err
	}
	c, ok, err := st.GetComponent(ctx, entity, model.ComponentGame)
	if err != nil || !ok {
		return model.Game{}, false, err
	}
	g, err := model.DecodeGame(c.Value)
	if err != nil {
		return model.Game{}, false, err
	}
	return g, true, nil
}

func loadGameState(ctx context.Context, st *store.Store, id int64) (*model.GameState, error) {
	entity, err := model.GameEntity(id)
	if err != nil {
		return nil, err
	}
	c, ok, err := st.GetComponent(ctx, entity, model.ComponentGameState)
	if err != nil || !ok {
		return nil, err
	}
	s, err := model.DecodeGameState(c.Value)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func loadFormats(ctx context.Context, st *store.Store) (display.Formats, error) {
	comps, err := st.ListComponents(ctx, model.ComponentGameFormat)
	if err != nil {
		return display.Formats{}, err
	}
	synced := make([]model.GameFormat, 0, len(comps))
	for _, c := range comps {
		if f, err := model.DecodeGameFormat(c.Value); err == nil {
			synced = append(synced, f)
		}
	}
	return display.NewFormats(synced), nil
}
