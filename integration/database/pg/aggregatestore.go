package pg

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/devicekit/core/metrics"
)

// AggregateStore is the PostgreSQL metrics.AggregateStore implementation.
// The (name, type, window, slot, dimensions) primary key makes Upsert
// idempotent: re-rolling a slot overwrites the previous row.
type AggregateStore struct {
	pool *pgxpool.Pool
}

func NewAggregateStore(pool *pgxpool.Pool) *AggregateStore {
	return &AggregateStore{pool: pool}
}

func (s *AggregateStore) Upsert(ctx context.Context, a *metrics.Aggregate) error {
	value, err := json.Marshal(a.Value)
	if err != nil {
		return err
	}
	_, err = db(ctx, s.pool).Exec(ctx, `
		INSERT INTO device_metrics (name, type, win, slot, dimensions, value)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (name, type, win, slot, dimensions)
		DO UPDATE SET value = EXCLUDED.value`,
		a.Name, a.Type, a.Window, a.Timestamp, metrics.EncodeDimensions(a.Dimensions), value)
	return err
}

func (s *AggregateStore) List(ctx context.Context, window metrics.Window, from, to time.Time) ([]metrics.Aggregate, error) {
	rows, err := db(ctx, s.pool).Query(ctx, `
		SELECT name, type, win, slot, dimensions, value FROM device_metrics
		WHERE win = $1 AND slot >= $2 AND slot < $3`,
		window, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []metrics.Aggregate
	for rows.Next() {
		var (
			a     metrics.Aggregate
			dims  string
			value []byte
		)
		if err := rows.Scan(&a.Name, &a.Type, &a.Window, &a.Timestamp, &dims, &value); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(value, &a.Value); err != nil {
			return nil, err
		}
		if a.Dimensions, err = metrics.DecodeDimensions(dims); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *AggregateStore) DeleteOlderThan(ctx context.Context, window metrics.Window, cutoff time.Time) (int64, error) {
	tag, err := db(ctx, s.pool).Exec(ctx,
		`DELETE FROM device_metrics WHERE win = $1 AND slot < $2`, window, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
