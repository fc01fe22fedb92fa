package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shelfsight/querydeck/internal/models"
)

// ClickHouseMetricStore reads pre-aggregated rows from the
// search_query_metrics table, one row per (date, marketplace,
// search_query, asin).
type ClickHouseMetricStore struct {
	conn driver.Conn
}

func NewClickHouseMetricStore(conn driver.Conn) *ClickHouseMetricStore {
	return &ClickHouseMetricStore{conn: conn}
}

func (s *ClickHouseMetricStore) QueryMetrics(ctx context.Context, filter models.MetricFilter) ([]models.QueryMetrics, error) {
	entityCol := "search_query"
	if filter.Entity == models.EntityASIN {
		entityCol = "asin"
	}

	where, args := buildWhere(filter)
	query := fmt.Sprintf(`
		SELECT %s,
		       any(marketplace),
		       min(date),
		       sum(impressions), sum(clicks), sum(cart_adds), sum(purchases),
		       sum(query_volume), sum(market_clicks), sum(market_purchases)
		FROM search_query_metrics
		%s
		GROUP BY %s
		ORDER BY sum(impressions) DESC
	`, entityCol, where, entityCol)

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	var out []models.QueryMetrics
	for rows.Next() {
		var m models.QueryMetrics
		var entity string
		if err := rows.Scan(
			&entity, &m.Marketplace, &m.Date,
			&m.Impressions, &m.Clicks, &m.CartAdds, &m.Purchases,
			&m.QueryVolume, &m.MarketClicks, &m.MarketPurchases,
		); err != nil {
			return nil, fmt.Errorf("failed to scan metrics row: %w", err)
		}
		if filter.Entity == models.EntityASIN {
			m.ASIN = entity
		} else {
			m.SearchQuery = entity
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("metrics rows: %w", err)
	}

	return out, nil
}

func (s *ClickHouseMetricStore) TimeSeries(ctx context.Context, identifier string, filter models.MetricFilter) ([]models.QueryMetrics, error) {
	entityCol := "search_query"
	if filter.Entity == models.EntityASIN {
		entityCol = "asin"
	}

	where, args := buildWhere(filter)
	if where == "" {
		where = "WHERE " + entityCol + " = ?"
	} else {
		where += " AND " + entityCol + " = ?"
	}
	args = append(args, identifier)

	query := fmt.Sprintf(`
		SELECT date,
		       any(marketplace),
		       sum(impressions), sum(clicks), sum(cart_adds), sum(purchases),
		       sum(query_volume), sum(market_clicks), sum(market_purchases)
		FROM search_query_metrics
		%s
		GROUP BY date
		ORDER BY date
	`, where)

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query time series: %w", err)
	}
	defer rows.Close()

	var out []models.QueryMetrics
	for rows.Next() {
		var m models.QueryMetrics
		if err := rows.Scan(
			&m.Date, &m.Marketplace,
			&m.Impressions, &m.Clicks, &m.CartAdds, &m.Purchases,
			&m.QueryVolume, &m.MarketClicks, &m.MarketPurchases,
		); err != nil {
			return nil, fmt.Errorf("failed to scan time series row: %w", err)
		}
		if filter.Entity == models.EntityASIN {
			m.ASIN = identifier
		} else {
			m.SearchQuery = identifier
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("time series rows: %w", err)
	}

	return out, nil
}

func buildWhere(filter models.MetricFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if filter.Marketplace != "" {
		conds = append(conds, "marketplace = ?")
		args = append(args, filter.Marketplace)
	}
	if len(filter.ASINs) > 0 {
		conds = append(conds, "asin IN (?)")
		args = append(args, filter.ASINs)
	}
	if !filter.StartDate.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, filter.StartDate.Truncate(24*time.Hour))
	}
	if !filter.EndDate.IsZero() {
		conds = append(conds, "date < ?")
		args = append(args, filter.EndDate.Truncate(24*time.Hour))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}
