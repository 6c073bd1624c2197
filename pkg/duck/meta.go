package duck

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Meta describes the dataset's dimensional vocabulary and bounds. It is fed
// to the intent service so the model can ground filter values, and served
// to clients for filter pickers.
type Meta struct {
	Projects      []string `json:"projects"`
	Districts     []string `json:"districts"`
	PropertyTypes []string `json:"propertyTypes"`
	Layouts       []string `json:"layouts"`
	MinDate       string   `json:"minDate"`
	MaxDate       string   `json:"maxDate"`
	MinPrice      float64  `json:"minPrice"`
	MaxPrice      float64  `json:"maxPrice"`
}

const metaCacheKey = "dataset-meta"

// MetaCache serves dataset metadata, refreshing from the dataset at most
// once per TTL. The distinct-value scans are the most expensive queries the
// system runs, and the dataset is fixed, so a long TTL is safe.
type MetaCache struct {
	log   *slog.Logger
	db    DB
	cache *ttlcache.Cache[string, Meta]
}

// NewMetaCache creates a MetaCache with the given refresh TTL.
func NewMetaCache(log *slog.Logger, db DB, ttl time.Duration) *MetaCache {
	cache := ttlcache.New[string, Meta](
		ttlcache.WithTTL[string, Meta](ttl),
		ttlcache.WithDisableTouchOnHit[string, Meta](),
	)
	go cache.Start()
	return &MetaCache{log: log, db: db, cache: cache}
}

// Meta returns the cached dataset metadata, loading it on miss.
func (m *MetaCache) Meta(ctx context.Context) (Meta, error) {
	if item := m.cache.Get(metaCacheKey); item != nil {
		return item.Value(), nil
	}

	meta, err := m.load(ctx)
	if err != nil {
		return Meta{}, err
	}
	m.cache.Set(metaCacheKey, meta, ttlcache.DefaultTTL)
	return meta, nil
}

// Stop shuts down the cache's expiry loop.
func (m *MetaCache) Stop() {
	m.cache.Stop()
}

func (m *MetaCache) load(ctx context.Context) (Meta, error) {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return Meta{}, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	var meta Meta
	distinct := []struct {
		column string
		extra  string
		dest   *[]string
	}{
		{"project_name", "", &meta.Projects},
		{"district", "", &meta.Districts},
		{"property_type", "", &meta.PropertyTypes},
		{"layout", "AND layout != 'unclassified'", &meta.Layouts},
	}
	for _, d := range distinct {
		query := fmt.Sprintf(
			"SELECT DISTINCT %s FROM sales WHERE %s IS NOT NULL %s ORDER BY %s",
			d.column, d.column, d.extra, d.column,
		)
		rs, err := conn.QueryContext(ctx, query)
		if err != nil {
			return Meta{}, fmt.Errorf("failed to query distinct %s: %w", d.column, err)
		}
		for rs.Next() {
			var v string
			if err := rs.Scan(&v); err != nil {
				rs.Close()
				return Meta{}, fmt.Errorf("failed to scan distinct %s: %w", d.column, err)
			}
			*d.dest = append(*d.dest, v)
		}
		if err := rs.Err(); err != nil {
			rs.Close()
			return Meta{}, fmt.Errorf("error iterating distinct %s: %w", d.column, err)
		}
		rs.Close()
	}

	row := conn.QueryRowContext(ctx, `
		SELECT
			strftime(MIN(sale_date), '%Y-%m-%d') AS min_date,
			strftime(MAX(sale_date), '%Y-%m-%d') AS max_date,
			MIN(price_aed)                       AS min_price,
			MAX(price_aed)                       AS max_price
		FROM sales
		WHERE price_aed > 0
	`)
	if err := row.Scan(&meta.MinDate, &meta.MaxDate, &meta.MinPrice, &meta.MaxPrice); err != nil {
		return Meta{}, fmt.Errorf("failed to scan dataset bounds: %w", err)
	}

	m.log.Info("dataset meta refreshed",
		"projects", len(meta.Projects),
		"districts", len(meta.Districts),
		"layouts", len(meta.Layouts),
		"range", meta.MinDate+".."+meta.MaxDate)
	return meta, nil
}
