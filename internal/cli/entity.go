package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/rlchess/internal/ir"
	"github.com/roach88/rlchess/internal/model"
	"github.com/roach88/rlchess/internal/store"
)

// EntityView is the printed form of a stored entity's components.
type EntityView struct {
	EntityID   string                 `json:"entity_id"`
	Keys       []string               `json:"keys,omitempty"`
	Components map[string]ir.IRObject `json:"components,omitempty"`
}

// NewEntityCommand creates the entity command group.
func NewEntityCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entity",
		Short: "Inspect entity ids and synced components",
	}
	cmd.AddCommand(newEntityIDCommand(rootOpts))
	cmd.AddCommand(newEntityShowCommand(rootOpts))
	return cmd
}

func newEntityIDCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "id <key>...",
		Short: "Derive the entity id of a set of keys",
		Long: `Derive the entity id for key values, in the order the model declares
its keys. Keys are felts in hex or decimal.

Examples:
  rlchess entity id 0xa11ce
  rlchess entity id 42`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := make([]ir.IRValue, len(args))
			felts := make([]string, len(args))
			for i, a := range args {
				f, err := ir.Felt(ir.IRString(a))
				if err != nil {
					return WrapExitError(ExitCommandError, fmt.Sprintf("invalid key %q", a), err)
				}
				keys[i] = f
				felts[i] = string(f)
			}
			id, err := ir.EntityID(keys...)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to derive entity id", err)
			}
			view := EntityView{EntityID: id, Keys: felts}
			return newFormatter(rootOpts, cmd).Success(view, func(w io.Writer) {
				fmt.Fprintln(w, id)
			})
		},
	}
}

func newEntityShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <entity-id>",
		Short: "Show every synced component of an entity",
		Example: `  rlchess entity show 0x81b11bbac49f8f663aa82f9297f988aa97f5c0fc6d94e1d90d8829f1a0039470
  rlchess entity show $(rlchess entity id 1) --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			view, err := loadEntity(cmd, e.store, args[0])
			if err != nil {
				return err
			}
			if len(view.Components) == 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("entity %s not synced", args[0]))
			}
			return newFormatter(rootOpts, cmd).Success(view, func(w io.Writer) {
				fmt.Fprintln(w, view.EntityID)
				for _, name := range model.Components() {
					if v, ok := view.Components[name]; ok {
						fmt.Fprintf(w, "  %-11s %s\n", name, canonicalString(v))
					}
				}
			})
		},
	}
}

func loadEntity(cmd *cobra.Command, st *store.Store, entityID string) (EntityView, error) {
	view := EntityView{EntityID: entityID, Components: make(map[string]ir.IRObject)}
	for _, name := range model.Components() {
		c, ok, err := st.GetComponent(cmd.Context(), entityID, name)
		if err != nil {
			return EntityView{}, WrapExitError(ExitCommandError, "failed to read store", err)
		}
		if !ok {
			continue
		}
		view.Components[name] = c.Value
		if view.Keys == nil {
			for _, k := range c.Keys {
				if s, ok := k.(ir.IRString); ok {
					view.Keys = append(view.Keys, string(s))
				}
			}
		}
	}
	return view, nil
}
