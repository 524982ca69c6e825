package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/dlmm-tracker/internal/dlmm"
	"github.com/rovshanmuradov/dlmm-tracker/internal/portfolio"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ErrNothingToExport is returned when no position passes the filters.
var ErrNothingToExport = errors.New("no positions match the export criteria")

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// ExportOptions configures the export behavior
type ExportOptions struct {
	Format     ExportFormat
	Account    string          // recorded in the file name and JSON metadata
	PoolFilter string          // only positions of this pool
	MinValue   decimal.Decimal // skip positions valued below this
	OnlyPriced bool            // skip positions whose pricing failed
	OutputDir  string
}

// Exporter writes enriched positions to CSV or JSON files.
type Exporter struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewExporter creates a new position exporter
func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{
		logger: logger.Named("export"),
		now:    time.Now,
	}
}

// ExportPositions exports positions based on the provided options and
// returns the written file path.
func (e *Exporter) ExportPositions(positions []dlmm.EnrichedPosition, options ExportOptions) (string, error) {
	if _, err := ParseFormat(string(options.Format)); err != nil {
		return "", err
	}

	filtered := filterPositions(positions, options)
	if len(filtered) == 0 {
		return "", ErrNothingToExport
	}

	// Most valuable first, ties by id
	sort.SliceStable(filtered, func(i, j int) bool {
		if c := filtered[i].TotalValue.Cmp(filtered[j].TotalValue); c != 0 {
			return c > 0
		}
		return filtered[i].ID.String() < filtered[j].ID.String()
	})

	if options.OutputDir == "" {
		options.OutputDir = "."
	}
	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(options.OutputDir, e.generateFilename(options))

	var err error
	switch options.Format {
	case FormatCSV:
		err = exportToCSV(filtered, outputPath)
	case FormatJSON:
		err = e.exportToJSON(filtered, options, outputPath)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("Positions exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))

	return outputPath, nil
}

func filterPositions(positions []dlmm.EnrichedPosition, options ExportOptions) []dlmm.EnrichedPosition {
	pool := dlmm.Ref(dlmm.NormalizeRef(options.PoolFilter))
	return lo.Filter(positions, func(p dlmm.EnrichedPosition, _ int) bool {
		if pool != "" && !p.PoolID.Equal(pool) {
			return false
		}
		if p.TotalValue.LessThan(options.MinValue) {
			return false
		}
		if options.OnlyPriced && p.PriceError != "" {
			return false
		}
		return true
	})
}

// generateFilename creates a filename based on export options
func (e *Exporter) generateFilename(options ExportOptions) string {
	timestamp := e.now().Format("20060102_150405")

	prefix := "positions"
	if options.Account != "" {
		prefix += "_" + dlmm.Ref(options.Account).Short(8)
	}
	if options.PoolFilter != "" {
		prefix += "_pool_" + dlmm.Ref(dlmm.NormalizeRef(options.PoolFilter)).Short(8)
	}

	return fmt.Sprintf("%s_%s.%s", prefix, timestamp, options.Format)
}

// CSVHeaders is the column order of CSV exports.
func CSVHeaders() []string {
	return []string{
		"position_id", "pool_id", "pool_name", "lower_bin_id", "upper_bin_id",
		"liquidity_value", "total_value", "pnl", "pnl_percentage", "fees",
		"tokens", "summary", "last_updated", "price_error",
	}
}

func csvRecord(p dlmm.EnrichedPosition) []string {
	tokens := lo.Map(p.Tokens, func(t dlmm.Token, _ int) string {
		return t.Symbol + ":" + t.Amount.String()
	})
	return []string{
		p.ID.String(),
		p.PoolID.String(),
		p.PoolName,
		strconv.Itoa(p.LowerBinID),
		strconv.Itoa(p.UpperBinID),
		p.LiquidityValue().StringFixed(2),
		p.TotalValue.StringFixed(2),
		p.PnL.StringFixed(2),
		p.PnLPercentage.StringFixed(2),
		p.Fees.String(),
		strings.Join(tokens, ";"),
		strconv.FormatBool(p.Summary),
		p.LastUpdated.UTC().Format(time.RFC3339),
		p.PriceError,
	}
}

// exportToCSV exports positions to CSV format
func exportToCSV(positions []dlmm.EnrichedPosition, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, p := range positions {
		if err := writer.Write(csvRecord(p)); err != nil {
			return fmt.Errorf("failed to write position %s: %w", p.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// Row is the JSON shape of one exported position.
type Row struct {
	ID             string          `json:"id"`
	PoolID         string          `json:"pool_id"`
	PoolName       string          `json:"pool_name"`
	LowerBinID     int             `json:"lower_bin_id"`
	UpperBinID     int             `json:"upper_bin_id"`
	Tokens         []TokenRow      `json:"tokens"`
	LiquidityValue decimal.Decimal `json:"liquidity_value"`
	TotalValue     decimal.Decimal `json:"total_value"`
	PnL            decimal.Decimal `json:"pnl"`
	PnLPercentage  decimal.Decimal `json:"pnl_percentage"`
	Fees           decimal.Decimal `json:"fees"`
	Summary        bool            `json:"summary,omitempty"`
	LastUpdated    time.Time       `json:"last_updated"`
	PriceError     string          `json:"price_error,omitempty"`
}

type TokenRow struct {
	Mint   string          `json:"mint"`
	Symbol string          `json:"symbol"`
	Amount decimal.Decimal `json:"amount"`
	Value  decimal.Decimal `json:"value"`
}

// Document is the top-level JSON export.
type Document struct {
	ExportTime    time.Time  `json:"export_time"`
	Account       string     `json:"account,omitempty"`
	PositionCount int        `json:"position_count"`
	Summary       SummaryRow `json:"summary"`
	Positions     []Row      `json:"positions"`
}

type SummaryRow struct {
	TotalValue       decimal.Decimal `json:"total_value"`
	TotalPnL         decimal.Decimal `json:"total_pnl"`
	TotalPositions   int             `json:"total_positions"`
	TotalFees        decimal.Decimal `json:"total_fees"`
	AvgPnLPercentage decimal.Decimal `json:"avg_pnl_percentage"`
}

func toRow(p dlmm.EnrichedPosition) Row {
	return Row{
		ID:         p.ID.String(),
		PoolID:     p.PoolID.String(),
		PoolName:   p.PoolName,
		LowerBinID: p.LowerBinID,
		UpperBinID: p.UpperBinID,
		Tokens: lo.Map(p.Tokens, func(t dlmm.Token, i int) TokenRow {
			value := decimal.Zero
			if i < len(p.TokenValues) {
				value = p.TokenValues[i]
			}
			return TokenRow{Mint: t.Mint, Symbol: t.Symbol, Amount: t.Amount, Value: value}
		}),
		LiquidityValue: p.LiquidityValue(),
		TotalValue:     p.TotalValue,
		PnL:            p.PnL,
		PnLPercentage:  p.PnLPercentage,
		Fees:           p.Fees,
		Summary:        p.Summary,
		LastUpdated:    p.LastUpdated,
		PriceError:     p.PriceError,
	}
}

// exportToJSON exports positions to JSON format
func (e *Exporter) exportToJSON(positions []dlmm.EnrichedPosition, options ExportOptions, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	doc := Document{
		ExportTime:    e.now().UTC(),
		Account:       options.Account,
		PositionCount: len(positions),
		Summary:       SummaryRow(portfolio.Summarize(positions)),
		Positions:     lo.Map(positions, func(p dlmm.EnrichedPosition, _ int) Row { return toRow(p) }),
	}
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
