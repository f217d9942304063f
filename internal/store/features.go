package store

import (
	"context"
	"fmt"

	"github.com/quantfold/marketcurator/internal/model"
)

// InsertFeature appends one computed feature row. Re-computation for the
// same (ticker, feature_time) conflicts silently.
func (s *Store) InsertFeature(ctx context.Context, f model.MarketFeature) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO market_features (ticker, feature_time,
			time_to_close_seconds, time_to_expiration_seconds,
			yes_bid_prob, yes_ask_prob, no_bid_prob, no_ask_prob,
			mid_prob, bid_ask_spread, volume_24h, open_interest, market_type, status,
			return_1h, return_24h, volatility_1h, volatility_24h,
			volume_1h, notional_1h, notional_24h,
			top_of_book_liquidity_yes, top_of_book_liquidity_no,
			total_liquidity_yes, total_liquidity_no, orderbook_imbalance,
			category, external_probability, misprice_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)
		ON CONFLICT (ticker, feature_time) DO NOTHING
	`, f.Ticker, f.FeatureTime,
		f.TimeToCloseSeconds, f.TimeToExpirationSeconds,
		f.YesBidProb, f.YesAskProb, f.NoBidProb, f.NoAskProb,
		f.MidProb, f.BidAskSpread, f.Volume24h, f.OpenInterest, f.MarketType, f.Status,
		f.Return1h, f.Return24h, f.Volatility1h, f.Volatility24h,
		f.Volume1h, f.Notional1h, f.Notional24h,
		f.TopOfBookLiquidityYes, f.TopOfBookLiquidityNo,
		f.TotalLiquidityYes, f.TotalLiquidityNo, f.OrderbookImbalance,
		f.Category, f.ExternalProbability, f.MispriceScore)
	if err != nil {
		return fmt.Errorf("insert feature: %w", err)
	}
	return nil
}
