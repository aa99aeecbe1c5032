package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Source supplies the two catalog datasets. Prices are required for a
// functional catalog; Details may legitimately be absent or partial.
type Source interface {
	Prices(ctx context.Context) ([]Item, error)
	Details(ctx context.Context) (map[string]Details, error)
}

// FileSource loads the datasets from JSON files. An empty DetailsPath means
// the deployment ships without the details dataset.
type FileSource struct {
	PricesPath  string
	DetailsPath string
}

// Prices reads the price list file.
func (f FileSource) Prices(_ context.Context) ([]Item, error) {
	data, err := os.ReadFile(f.PricesPath)
	if err != nil {
		return nil, fmt.Errorf("read price data: %w", err)
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse price data: %w", err)
	}
	return items, nil
}

// Details reads the optional details file.
func (f FileSource) Details(_ context.Context) (map[string]Details, error) {
	if f.DetailsPath == "" {
		return map[string]Details{}, nil
	}
	data, err := os.ReadFile(f.DetailsPath)
	if err != nil {
		return nil, fmt.Errorf("read detail data: %w", err)
	}
	var details map[string]Details
	if err := json.Unmarshal(data, &details); err != nil {
		return nil, fmt.Errorf("parse detail data: %w", err)
	}
	return details, nil
}

// PGSource loads the datasets from Postgres for deployments that keep the
// price list in a database instead of shipped files.
type PGSource struct {
	Pool *pgxpool.Pool
}

// Prices reads the lab test price rows. A NULL tourist price yields a
// flat-priced item, matching the single-price catalog shape.
func (p PGSource) Prices(ctx context.Context) ([]Item, error) {
	if p.Pool == nil {
		return nil, fmt.Errorf("pg source: pool not configured")
	}
	rows, err := p.Pool.Query(ctx, `
		SELECT code, name, private_price, tourist_price
		FROM lab_tests
		ORDER BY position, code`)
	if err != nil {
		return nil, fmt.Errorf("query lab tests: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			code         string
			name         string
			privatePrice float64
			touristPrice *float64
		)
		if err := rows.Scan(&code, &name, &privatePrice, &touristPrice); err != nil {
			return nil, fmt.Errorf("scan lab test: %w", err)
		}
		item := Item{Code: Code(code), Name: name}
		if touristPrice == nil {
			item.Price = Price{Flat: &privatePrice}
		} else {
			item.Price = Price{Variants: map[string]float64{
				"private": privatePrice,
				"tourist": *touristPrice,
			}}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lab tests: %w", err)
	}
	return items, nil
}

// Details reads the handling metadata rows.
func (p PGSource) Details(ctx context.Context) (map[string]Details, error) {
	if p.Pool == nil {
		return nil, fmt.Errorf("pg source: pool not configured")
	}
	rows, err := p.Pool.Query(ctx, `
		SELECT code, tubes, sampling_conditions, transport, execution_time, results_turnaround
		FROM lab_test_details`)
	if err != nil {
		return nil, fmt.Errorf("query lab test details: %w", err)
	}
	defer rows.Close()

	details := map[string]Details{}
	for rows.Next() {
		var (
			code string
			d    Details
		)
		if err := rows.Scan(&code, &d.Tubes, &d.Sampling, &d.Transport, &d.Execution, &d.Turnaround); err != nil {
			return nil, fmt.Errorf("scan lab test details: %w", err)
		}
		details[code] = d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lab test details: %w", err)
	}
	return details, nil
}
