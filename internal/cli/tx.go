package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/rlchess/internal/ir"
	"github.com/roach88/rlchess/internal/store"
)

// TxView is the printed form of a journaled transaction.
type TxView struct {
	TxHash        string   `json:"tx_hash"`
	Action        string   `json:"action"`
	Sender        string   `json:"sender"`
	Contract      string   `json:"contract"`
	Entrypoint    string   `json:"entrypoint"`
	Calldata      []string `json:"calldata"`
	Status        string   `json:"status"`
	Detail        string   `json:"detail,omitempty"`
	CorrelationID string   `json:"correlation_id"`
	SubmittedAt   string   `json:"submitted_at"`
	UpdatedAt     string   `json:"updated_at"`
}

func newTxView(r store.TxRecord) TxView {
	return TxView{
		TxHash:        r.TxHash,
		Action:        r.Action,
		Sender:        r.Sender,
		Contract:      r.Contract,
		Entrypoint:    r.Entrypoint,
		Calldata:      r.Calldata,
		Status:        string(r.Status),
		Detail:        r.Detail,
		CorrelationID: r.CorrelationID,
		SubmittedAt:   time.UnixMilli(r.SubmittedAt).UTC().Format(time.RFC3339),
		UpdatedAt:     time.UnixMilli(r.UpdatedAt).UTC().Format(time.RFC3339),
	}
}

// NewTxCommand creates the tx command group.
func NewTxCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Inspect the local transaction journal",
	}
	cmd.AddCommand(newTxListCommand(rootOpts))
	cmd.AddCommand(newTxShowCommand(rootOpts))
	return cmd
}

func newTxListCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List submitted transactions, oldest first",
		Example: `  rlchess tx list
  rlchess tx list --limit 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			records, err := e.store.ListTransactions(cmd.Context(), limit)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read journal", err)
			}
			views := make([]TxView, len(records))
			for i, r := range records {
				views[i] = newTxView(r)
			}
			return newFormatter(rootOpts, cmd).Success(views, func(w io.Writer) {
				if len(views) == 0 {
					fmt.Fprintln(w, "No transactions.")
					return
				}
				for _, v := range views {
					fmt.Fprintf(w, "%-10s %-16s %-10s %s\n", v.TxHash, v.Action, v.Status, v.SubmittedAt)
				}
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of transactions (0 for all)")
	return cmd
}

func newTxShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <tx-hash>",
		Short:         "Show one journaled transaction",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			r, ok, err := e.store.GetTransaction(cmd.Context(), ir.NormalizeFelt(args[0]))
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read journal", err)
			}
			if !ok {
				return NewExitError(ExitFailure, fmt.Sprintf("transaction %s not in journal", args[0]))
			}
			v := newTxView(r)
			return newFormatter(rootOpts, cmd).Success(v, func(w io.Writer) {
				fmt.Fprintf(w, "Hash:        %s\n", v.TxHash)
				fmt.Fprintf(w, "Action:      %s\n", v.Action)
				fmt.Fprintf(w, "Status:      %s\n", v.Status)
				if v.Detail != "" {
					fmt.Fprintf(w, "Detail:      %s\n", v.Detail)
				}
				fmt.Fprintf(w, "Sender:      %s\n", v.Sender)
				fmt.Fprintf(w, "Call:        %s.%s %v\n", v.Contract, v.Entrypoint, v.Calldata)
				fmt.Fprintf(w, "Correlation: %s\n", v.CorrelationID)
				fmt.Fprintf(w, "Submitted:   %s\n", v.SubmittedAt)
				fmt.Fprintf(w, "Updated:     %s\n", v.UpdatedAt)
			})
		},
	}
}
