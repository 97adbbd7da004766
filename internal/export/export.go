// Package export writes a token's stored event history to CSV or JSON.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// loadConcurrency bounds parallel history reads.
const loadConcurrency = 4

// ExportOptions configures the export behavior
type ExportOptions struct {
	Format     ExportFormat
	StartTime  time.Time
	EndTime    time.Time
	Tokens     []solana.PublicKey // empty exports every known token
	TypeFilter events.EventType
	OutputDir  string
}

// EventExporter handles event export functionality
type EventExporter struct {
	store  storage.Store
	clock  clock.Clock
	logger *zap.Logger
}

// NewEventExporter creates a new exporter reading from store
func NewEventExporter(store storage.Store, clk clock.Clock, logger *zap.Logger) *EventExporter {
	return &EventExporter{
		store:  store,
		clock:  clk,
		logger: logger.Named("export"),
	}
}

// Load reads the history of every requested token concurrently and returns
// the matching rows ordered by sequence number.
func (ee *EventExporter) Load(ctx context.Context, options ExportOptions) ([]Row, error) {
	tokens := options.Tokens
	if len(tokens) == 0 {
		var err error
		if tokens, err = ee.store.Tokens(ctx); err != nil {
			return nil, fmt.Errorf("failed to list tokens: %w", err)
		}
	}

	perToken := make([][]Row, len(tokens))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for i, tok := range tokens {
		g.Go(func() error {
			recs, err := ee.store.History(gctx, tok)
			if err != nil {
				return fmt.Errorf("failed to load history of %s: %w", tok, err)
			}
			rows := make([]Row, 0, len(recs))
			for _, rec := range recs {
				row, err := RowFromRecord(rec)
				if err != nil {
					return err
				}
				rows = append(rows, row)
			}
			perToken[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Row
	for _, rows := range perToken {
		all = append(all, ee.filterRows(rows, options)...)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Seq < all[j].Seq
	})
	return all, nil
}

// Export writes the matching history to a file in options.OutputDir and
// returns its path.
func (ee *EventExporter) Export(ctx context.Context, options ExportOptions) (string, error) {
	rows, err := ee.Load(ctx, options)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("no events match the export criteria")
	}

	filename := ee.generateFilename(options)
	outputPath := filepath.Join(options.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	switch options.Format {
	case FormatCSV:
		err = ee.exportToCSV(rows, outputPath)
	case FormatJSON:
		err = ee.exportToJSON(rows, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	ee.logger.Info("Events exported",
		zap.String("file", outputPath),
		zap.Int("count", len(rows)),
		zap.String("format", string(options.Format)))

	return outputPath, nil
}

func (ee *EventExporter) filterRows(rows []Row, options ExportOptions) []Row {
	var filtered []Row
	for _, row := range rows {
		if !options.StartTime.IsZero() && row.Time.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && row.Time.After(options.EndTime) {
			continue
		}
		if options.TypeFilter != "" && row.Type != options.TypeFilter {
			continue
		}
		filtered = append(filtered, row)
	}
	return filtered
}

// generateFilename creates a filename based on export options
func (ee *EventExporter) generateFilename(options ExportOptions) string {
	timestamp := ee.clock.Now().Format("20060102_150405")

	prefix := "events_all"
	if options.TypeFilter != "" {
		prefix = fmt.Sprintf("events_%s", options.TypeFilter)
	}
	if len(options.Tokens) == 1 {
		prefix += "_" + options.Tokens[0].String()[:8]
	}

	return fmt.Sprintf("%s_%s.%s", prefix, timestamp, options.Format)
}

func (ee *EventExporter) exportToCSV(rows []Row, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for i := range rows {
		if err := writer.Write(rows[i].ToCSV()); err != nil {
			return fmt.Errorf("failed to write event %d: %w", rows[i].Seq, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func (ee *EventExporter) exportToJSON(rows []Row, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	exportData := struct {
		ExportTime time.Time     `json:"export_time"`
		EventCount int           `json:"event_count"`
		Events     []Row         `json:"events"`
		Summary    ExportSummary `json:"summary"`
	}{
		ExportTime: ee.clock.Now(),
		EventCount: len(rows),
		Events:     rows,
		Summary:    CalculateSummary(rows),
	}

	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// ExportSummary contains summary statistics for exported events
type ExportSummary struct {
	TotalEvents  int       `json:"total_events"`
	TradeCount   int       `json:"trade_count"`
	BuyCount     int       `json:"buy_count"`
	SellCount    int       `json:"sell_count"`
	UniqueTokens int       `json:"unique_tokens"`
	Launches     int       `json:"launches"`
	Graduations  int       `json:"graduations"`
	BuyVolume    uint64    `json:"buy_volume"`
	SellVolume   uint64    `json:"sell_volume"`
	TotalVolume  uint64    `json:"total_volume"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
}

// CalculateSummary aggregates rows ordered by sequence number. Volumes are
// in asset base units.
func CalculateSummary(rows []Row) ExportSummary {
	summary := ExportSummary{TotalEvents: len(rows)}
	if len(rows) == 0 {
		return summary
	}
	summary.StartDate = rows[0].Time
	summary.EndDate = rows[len(rows)-1].Time

	tokenSet := make(map[string]bool)
	for _, row := range rows {
		if row.Token != "" {
			tokenSet[row.Token] = true
		}
		switch row.Type {
		case events.TradeExecuted:
			summary.TradeCount++
			if row.Action == "buy" {
				summary.BuyCount++
				summary.BuyVolume += row.AssetIn
			} else {
				summary.SellCount++
				summary.SellVolume += row.AssetOut
			}
		case events.TokenLaunched:
			summary.Launches++
		case events.TokenGraduated:
			summary.Graduations++
		}
	}
	summary.UniqueTokens = len(tokenSet)
	summary.TotalVolume = summary.BuyVolume + summary.SellVolume
	return summary
}

// DailyReport represents one day of launchpad activity
type DailyReport struct {
	Date            time.Time     `json:"date"`
	EventCount      int           `json:"event_count"`
	Summary         ExportSummary `json:"summary"`
	HourlyBreakdown []HourlyStats `json:"hourly_breakdown"`
	Events          []Row         `json:"events"`
}

// HourlyStats represents trading statistics for an hour
type HourlyStats struct {
	Hour       int    `json:"hour"`
	TradeCount int    `json:"trade_count"`
	BuyCount   int    `json:"buy_count"`
	SellCount  int    `json:"sell_count"`
	Volume     uint64 `json:"volume"`
}

// ExportDailyReport writes a JSON report of the events on date's calendar
// day. It returns an empty path when the day has no events.
func (ee *EventExporter) ExportDailyReport(ctx context.Context, date time.Time, outputDir string) (string, error) {
	startOfDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	rows, err := ee.Load(ctx, ExportOptions{StartTime: startOfDay, EndTime: endOfDay})
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		ee.logger.Info("No events for daily report", zap.Time("date", startOfDay))
		return "", nil
	}

	report := DailyReport{
		Date:            startOfDay,
		EventCount:      len(rows),
		Summary:         CalculateSummary(rows),
		HourlyBreakdown: calculateHourlyBreakdown(rows),
		Events:          rows,
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(outputDir, fmt.Sprintf("daily_report_%s.json", startOfDay.Format("20060102")))
	file, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	ee.logger.Info("Daily report exported",
		zap.String("file", outputPath),
		zap.Time("date", startOfDay),
		zap.Int("events", len(rows)))
	return outputPath, nil
}

func calculateHourlyBreakdown(rows []Row) []HourlyStats {
	hourlyMap := make(map[int]*HourlyStats)
	for _, row := range rows {
		if row.Type != events.TradeExecuted {
			continue
		}
		hour := row.Time.Hour()
		stats, exists := hourlyMap[hour]
		if !exists {
			stats = &HourlyStats{Hour: hour}
			hourlyMap[hour] = stats
		}
		stats.TradeCount++
		if row.Action == "buy" {
			stats.BuyCount++
			stats.Volume += row.AssetIn
		} else {
			stats.SellCount++
			stats.Volume += row.AssetOut
		}
	}

	var breakdown []HourlyStats
	for hour := 0; hour < 24; hour++ {
		if stats, exists := hourlyMap[hour]; exists {
			breakdown = append(breakdown, *stats)
		}
	}
	return breakdown
}
