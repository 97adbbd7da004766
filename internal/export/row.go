package export

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/storage/models"
)

// Row is one exported event, flattened for CSV and JSON output.
type Row struct {
	Seq      uint64           `json:"seq"`
	Time     time.Time        `json:"time"`
	Type     events.EventType `json:"type"`
	Token    string           `json:"token,omitempty"`
	Pair     string           `json:"pair,omitempty"`
	Action   string           `json:"action,omitempty"` // "buy" or "sell" for trades
	AssetIn  uint64           `json:"asset_in,omitempty"`
	AssetOut uint64           `json:"asset_out,omitempty"`
	TokenIn  uint64           `json:"token_in,omitempty"`
	TokenOut uint64           `json:"token_out,omitempty"`
	Detail   string           `json:"detail,omitempty"`
}

// RowFromRecord decodes a stored record into a row.
func RowFromRecord(rec models.Record) (Row, error) {
	ev, err := rec.Event()
	if err != nil {
		return Row{}, err
	}
	row := Row{
		Seq:  rec.Seq,
		Time: rec.Time,
		Type: rec.Type,
	}
	if !rec.Token.IsZero() {
		row.Token = rec.Token.String()
	}
	if !rec.Pair.IsZero() {
		row.Pair = rec.Pair.String()
	}

	switch e := ev.(type) {
	case *events.TradeExecutedEvent:
		row.Action = "sell"
		if e.IsBuy() {
			row.Action = "buy"
		}
		row.AssetIn, row.AssetOut = e.AssetIn, e.AssetOut
		row.TokenIn, row.TokenOut = e.TokenIn, e.TokenOut
	case *events.LiquiditySeededEvent:
		row.AssetIn, row.TokenIn = e.AssetAmount, e.TokenAmount
		if e.K != "" {
			row.Detail = "k=" + e.K
		}
	case *events.TokenLaunchedEvent:
		row.Detail = fmt.Sprintf("symbol=%s supply=%d fee=%d purchase=%d", e.Symbol, e.Supply, e.Fee, e.InitialPurchase)
	case *events.TokenGraduatedEvent:
		row.AssetOut, row.TokenOut = e.AssetAmount, e.TokenAmount
		row.Detail = fmt.Sprintf("burned=%d lp=%d", e.Burned, e.LPMinted)
	case *events.LaunchReservedEvent:
		row.Detail = fmt.Sprintf("start=%s escrow=%d application=%d", e.StartTime.Format(time.RFC3339), e.Escrow, e.ApplicationID)
	case *events.LaunchExecutedEvent:
		row.TokenOut = e.TokensOut
	case *events.LaunchCancelledEvent:
		row.AssetOut = e.Refund
	case *events.PairCreatedEvent:
		row.Detail = fmt.Sprintf("model=%s index=%d", e.Model, e.Index)
	case *events.TaxParametersUpdatedEvent:
		row.Detail = fmt.Sprintf("buy=%dbp sell=%dbp anti_sniper=%dbp", e.BuyBp, e.SellBp, e.AntiSniperStartBp)
	}
	return row, nil
}

// ToCSV converts the row to a CSV record
func (r *Row) ToCSV() []string {
	return []string{
		strconv.FormatUint(r.Seq, 10),
		r.Time.Format(time.RFC3339),
		string(r.Type),
		r.Token,
		r.Pair,
		r.Action,
		formatUint64(r.AssetIn),
		formatUint64(r.AssetOut),
		formatUint64(r.TokenIn),
		formatUint64(r.TokenOut),
		r.Detail,
	}
}

// CSVHeaders returns the header row for event CSV files
func CSVHeaders() []string {
	return []string{
		"seq",
		"time",
		"type",
		"token",
		"pair",
		"action",
		"asset_in",
		"asset_out",
		"token_in",
		"token_out",
		"detail",
	}
}

func formatUint64(u uint64) string {
	if u == 0 {
		return ""
	}
	return strconv.FormatUint(u, 10)
}
