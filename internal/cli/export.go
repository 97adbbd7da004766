package cli

import (
	"fmt"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/export"
	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportTokens []string
	exportType   string
	exportOut    string
	exportFrom   string
	exportTo     string
	exportDaily  string
)

const dateLayout = "2006-01-02"

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recorded events as CSV or JSON",
	RunE:  runExport,
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportFormat, "format", string(export.FormatCSV), "csv or json")
	f.StringSliceVar(&exportTokens, "token", nil, "token addresses (default all)")
	f.StringVar(&exportType, "type", "", "event type filter, e.g. trade.executed")
	f.StringVarP(&exportOut, "out", "o", "exports", "output directory")
	f.StringVar(&exportFrom, "from", "", "start date (YYYY-MM-DD, UTC)")
	f.StringVar(&exportTo, "to", "", "end date, exclusive (YYYY-MM-DD, UTC)")
	f.StringVar(&exportDaily, "daily", "", "write the JSON daily report for a date instead")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	env, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer env.close()

	exporter := export.NewEventExporter(env.store, clock.New(), env.log.Logger)

	var path string
	if exportDaily != "" {
		day, err := time.Parse(dateLayout, exportDaily)
		if err != nil {
			return fmt.Errorf("invalid --daily date: %w", err)
		}
		path, err = exporter.ExportDailyReport(ctx, day, exportOut)
		if err != nil {
			return err
		}
	} else {
		opts := export.ExportOptions{
			Format:     export.ExportFormat(exportFormat),
			TypeFilter: events.EventType(exportType),
			OutputDir:  exportOut,
		}
		for _, s := range exportTokens {
			tok, err := solana.PublicKeyFromBase58(s)
			if err != nil {
				return fmt.Errorf("invalid token address %q: %w", s, err)
			}
			opts.Tokens = append(opts.Tokens, tok)
		}
		if opts.StartTime, err = parseDate(exportFrom); err != nil {
			return err
		}
		if opts.EndTime, err = parseDate(exportTo); err != nil {
			return err
		}
		if path, err = exporter.Export(ctx, opts); err != nil {
			return err
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}
