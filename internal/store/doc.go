// Package store implements the analytical-store DAO.
//
// Two table families:
//   - Fact tables (snapshots, candlesticks, orderbook snapshots/events,
//     features, sync log) are append-only: batch inserts with
//     ON CONFLICT DO NOTHING, never updated. Duplicate deliveries land as
//     conflicts and are counted, not errors.
//   - Dimension tables (series, events, tags, watchlist) use replacement
//     semantics: keyed upserts where the latest last_update wins.
package store
