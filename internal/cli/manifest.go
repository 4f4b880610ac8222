package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/rlchess/internal/config"
	"github.com/roach88/rlchess/internal/lobby"
	"github.com/roach88/rlchess/internal/manifest"
	"github.com/roach88/rlchess/internal/model"
)

// ManifestView summarizes a valid manifest.
type ManifestView struct {
	Path      string              `json:"path"`
	Namespace string              `json:"namespace"`
	World     string              `json:"world"`
	Contracts []manifest.Contract `json:"contracts"`
	Models    []string            `json:"models"`
}

// Error codes for manifest validation.
const (
	ErrCodeManifestInvalid = "E_MANIFEST_INVALID"
	ErrCodeMissingContract = "E_MISSING_CONTRACT"
)

// NewManifestCommand creates the manifest command group.
func NewManifestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect the deployment manifest",
	}
	cmd.AddCommand(newManifestValidateCommand(rootOpts))
	return cmd
}

func newManifestValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a manifest and list its contracts and models",
		Long: `Validate a deployment manifest against the manifest schema and check
that the lobby and gameroom contracts exist under the configured namespace.

Without a path, the manifest from the configuration is used.

Examples:
  rlchess manifest validate
  rlchess manifest validate ./manifest_dev.json --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManifestValidate(rootOpts, args, cmd)
		},
	}
}

func runManifestValidate(opts *RootOptions, args []string, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	path := cfg.ManifestPath
	if len(args) == 1 {
		path = args[0]
	}

	f := newFormatter(opts, cmd)
	f.VerboseLog("Validating %s (namespace %s)", path, cfg.Namespace)

	m, err := manifest.Load(path)
	if err != nil {
		var details map[string]any
		var merr *manifest.Error
		if errors.As(err, &merr) && merr.Pos.IsValid() {
			details = map[string]any{
				"file":   merr.Pos.Filename(),
				"line":   merr.Pos.Line(),
				"column": merr.Pos.Column(),
			}
		}
		if outErr := f.Error(ErrCodeManifestInvalid, err.Error(), details); outErr != nil {
			return outErr
		}
		return NewExitError(ExitFailure, "manifest invalid")
	}

	for _, name := range []string{lobby.ContractLobby, lobby.ContractGameroom} {
		tag := model.Tag(cfg.Namespace, name)
		if _, ok := m.Contract(tag); !ok {
			if outErr := f.Error(ErrCodeMissingContract, fmt.Sprintf("manifest has no contract tagged %q", tag), nil); outErr != nil {
				return outErr
			}
			return NewExitError(ExitFailure, "manifest incomplete")
		}
	}

	view := ManifestView{
		Path:      path,
		Namespace: cfg.Namespace,
		World:     m.World.Address,
		Contracts: m.Contracts,
		Models:    m.ModelTags(cfg.Namespace),
	}
	return f.Success(view, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s is valid\n", path)
		fmt.Fprintf(w, "World: %s\n", view.World)
		fmt.Fprintln(w, "Contracts:")
		for _, c := range view.Contracts {
			fmt.Fprintf(w, "  %-30s %s\n", c.Tag, c.Address)
		}
		fmt.Fprintln(w, "Models:")
		for _, tag := range view.Models {
			fmt.Fprintf(w, "  %s\n", tag)
		}
	})
}
