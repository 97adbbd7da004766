package bonding

import (
	"time"

	"github.com/shopspring/decimal"
)

// VolumeWindow is the rolling period of MarketData.Volume24h.
const VolumeWindow = 24 * time.Hour

// MarketData is the snapshot refreshed after every curve trade. Price is
// tokens per asset unit, as seen by the pair's pricing model.
type MarketData struct {
	Price       decimal.Decimal
	PrevPrice   decimal.Decimal
	MarketCap   decimal.Decimal
	Liquidity   decimal.Decimal
	Volume      uint64
	Volume24h   uint64
	WindowStart time.Time
	LastUpdated time.Time
}

// spotPrice returns tokenReserve/assetReserve, zero for an empty asset side.
func spotPrice(tokenReserve, assetReserve uint64) decimal.Decimal {
	if assetReserve == 0 {
		return decimal.Zero
	}
	return decimal.NewFromUint64(tokenReserve).Div(decimal.NewFromUint64(assetReserve))
}

// next returns md advanced by a trade of volume asset units at the given
// reserves.
func (md MarketData) next(now time.Time, supply, tokenReserve, assetReserve, volume uint64) MarketData {
	if md.WindowStart.IsZero() || now.Sub(md.WindowStart) >= VolumeWindow {
		md.PrevPrice = md.Price
		md.Volume24h = 0
		md.WindowStart = now
	}
	md.Price = spotPrice(tokenReserve, assetReserve)
	md.Liquidity = decimal.NewFromUint64(assetReserve).Mul(decimal.NewFromInt(2))
	if tokenReserve > 0 {
		md.MarketCap = decimal.NewFromUint64(supply).
			Mul(decimal.NewFromUint64(assetReserve)).
			Div(decimal.NewFromUint64(tokenReserve))
	} else {
		md.MarketCap = decimal.Zero
	}
	md.Volume += volume
	md.Volume24h += volume
	md.LastUpdated = now
	return md
}

// refresh re-reads the curve reserves into rec's snapshot.
func (o *Orchestrator) refresh(rec *Launch, volume uint64) error {
	tokenReserve, assetReserve, err := o.router.Reserves(rec.Token)
	if err != nil {
		return err
	}
	supply := rec.Supply
	if tok, err := o.book.Get(rec.Token); err == nil {
		supply = tok.TotalSupply()
	}
	rec.Market = rec.Market.next(o.j.Now(), supply, tokenReserve, assetReserve, volume)
	return nil
}
