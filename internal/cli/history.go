package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/export"
	"github.com/spf13/cobra"
)

var historyToken string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded tokens or one token's events",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyToken, "token", "", "token address (empty lists tokens)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	env, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer env.close()
	out := cmd.OutOrStdout()

	if historyToken == "" {
		tokens, err := env.store.Tokens(ctx)
		if err != nil {
			return err
		}
		for _, tok := range tokens {
			fmt.Fprintln(out, tok)
		}
		return nil
	}

	tok, err := solana.PublicKeyFromBase58(historyToken)
	if err != nil {
		return fmt.Errorf("invalid token address: %w", err)
	}
	records, err := env.store.History(ctx, tok)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tTIME\tTYPE\tACTION\tDETAIL")
	for _, rec := range records {
		row, err := export.RowFromRecord(rec)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", row.Seq, row.Time.Format("2006-01-02 15:04:05"), row.Type, row.Action, row.Detail)
	}
	return w.Flush()
}
