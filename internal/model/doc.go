// Package model defines shared data types used across the market curator.
//
// Conventions:
//   - Prices: integer cents (0-100 = $0.00-$1.00)
//   - Derived probabilities and features: float64
//   - Timestamps: time.Time in UTC
//   - IDs: string tickers for entities, uuid.UUID for snapshot and event rows
package model
