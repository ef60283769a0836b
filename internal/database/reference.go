package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/marketlens/marketlens/internal/models"
)

const referenceColumns = `
	symbol, company_name, exchange, sector, industry, description, website,
	currency, employees,
	market_cap, shares_outstanding, current_price, week_52_high, week_52_low,
	average_volume,
	pe_ratio, price_to_book, price_to_sales, roe, roa, current_ratio,
	debt_to_equity, dividend_yield, profit_margin, operating_margin, gross_margin,
	revenue, net_income, operating_income, gross_profit, ebitda,
	total_assets, total_liabilities, total_equity,
	operating_cash_flow, free_cash_flow, capital_expenditure,
	last_updated, created_at`

// UpsertReference writes the full merged record. Merge semantics live
// in the service layer; by the time a record reaches the store it is
// already the overlay of fresh data on the prior row, so a plain
// column-for-column upsert is idempotent and safe under concurrent
// refreshes of the same symbol.
func (db *DB) UpsertReference(r *models.ReferenceRecord) error {
	query := `
		INSERT INTO reference_records (` + referenceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26,
		        $27, $28, $29, $30, $31, $32, $33, $34, $35, $36, $37, $38, $39)
		ON CONFLICT (symbol) DO UPDATE SET
			company_name = EXCLUDED.company_name,
			exchange = EXCLUDED.exchange,
			sector = EXCLUDED.sector,
			industry = EXCLUDED.industry,
			description = EXCLUDED.description,
			website = EXCLUDED.website,
			currency = EXCLUDED.currency,
			employees = EXCLUDED.employees,
			market_cap = EXCLUDED.market_cap,
			shares_outstanding = EXCLUDED.shares_outstanding,
			current_price = EXCLUDED.current_price,
			week_52_high = EXCLUDED.week_52_high,
			week_52_low = EXCLUDED.week_52_low,
			average_volume = EXCLUDED.average_volume,
			pe_ratio = EXCLUDED.pe_ratio,
			price_to_book = EXCLUDED.price_to_book,
			price_to_sales = EXCLUDED.price_to_sales,
			roe = EXCLUDED.roe,
			roa = EXCLUDED.roa,
			current_ratio = EXCLUDED.current_ratio,
			debt_to_equity = EXCLUDED.debt_to_equity,
			dividend_yield = EXCLUDED.dividend_yield,
			profit_margin = EXCLUDED.profit_margin,
			operating_margin = EXCLUDED.operating_margin,
			gross_margin = EXCLUDED.gross_margin,
			revenue = EXCLUDED.revenue,
			net_income = EXCLUDED.net_income,
			operating_income = EXCLUDED.operating_income,
			gross_profit = EXCLUDED.gross_profit,
			ebitda = EXCLUDED.ebitda,
			total_assets = EXCLUDED.total_assets,
			total_liabilities = EXCLUDED.total_liabilities,
			total_equity = EXCLUDED.total_equity,
			operating_cash_flow = EXCLUDED.operating_cash_flow,
			free_cash_flow = EXCLUDED.free_cash_flow,
			capital_expenditure = EXCLUDED.capital_expenditure,
			last_updated = EXCLUDED.last_updated
	`
	now := time.Now()
	if r.LastUpdated.IsZero() {
		r.LastUpdated = now
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}

	_, err := db.conn.Exec(query,
		strings.ToUpper(r.Symbol), r.CompanyName, r.Exchange, r.Sector, r.Industry,
		r.Description, r.Website, r.Currency, r.Employees,
		r.MarketCap, r.SharesOutstanding, r.CurrentPrice, r.Week52High, r.Week52Low,
		r.AverageVolume,
		r.PERatio, r.PriceToBook, r.PriceToSales, r.ROE, r.ROA, r.CurrentRatio,
		r.DebtToEquity, r.DividendYield, r.ProfitMargin, r.OperatingMargin, r.GrossMargin,
		r.Revenue, r.NetIncome, r.OperatingIncome, r.GrossProfit, r.EBITDA,
		r.TotalAssets, r.TotalLiabilities, r.TotalEquity,
		r.OperatingCashFlow, r.FreeCashFlow, r.CapitalExpenditure,
		r.LastUpdated, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert reference record: %w", err)
	}
	return nil
}

// GetReference retrieves a reference record by symbol, or ErrNotFound.
func (db *DB) GetReference(symbol string) (*models.ReferenceRecord, error) {
	query := `SELECT ` + referenceColumns + ` FROM reference_records WHERE symbol = $1`

	var r models.ReferenceRecord
	err := db.conn.QueryRow(query, strings.ToUpper(symbol)).Scan(
		&r.Symbol, &r.CompanyName, &r.Exchange, &r.Sector, &r.Industry,
		&r.Description, &r.Website, &r.Currency, &r.Employees,
		&r.MarketCap, &r.SharesOutstanding, &r.CurrentPrice, &r.Week52High, &r.Week52Low,
		&r.AverageVolume,
		&r.PERatio, &r.PriceToBook, &r.PriceToSales, &r.ROE, &r.ROA, &r.CurrentRatio,
		&r.DebtToEquity, &r.DividendYield, &r.ProfitMargin, &r.OperatingMargin, &r.GrossMargin,
		&r.Revenue, &r.NetIncome, &r.OperatingIncome, &r.GrossProfit, &r.EBITDA,
		&r.TotalAssets, &r.TotalLiabilities, &r.TotalEquity,
		&r.OperatingCashFlow, &r.FreeCashFlow, &r.CapitalExpenditure,
		&r.LastUpdated, &r.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reference record: %w", err)
	}
	return &r, nil
}

// GetMarketCaps returns the known market capitalizations for the given
// symbols in one query. Symbols with no stored record or a NULL market
// cap are simply absent from the result.
func (db *DB) GetMarketCaps(symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	upper := make([]string, len(symbols))
	for i, s := range symbols {
		upper[i] = strings.ToUpper(s)
	}

	query := `
		SELECT symbol, market_cap
		FROM reference_records
		WHERE symbol = ANY($1) AND market_cap IS NOT NULL
	`
	rows, err := db.conn.Query(query, pq.Array(upper))
	if err != nil {
		return nil, fmt.Errorf("failed to query market caps: %w", err)
	}
	defer rows.Close()

	caps := make(map[string]float64, len(symbols))
	for rows.Next() {
		var symbol string
		var mcap float64
		if err := rows.Scan(&symbol, &mcap); err != nil {
			return nil, fmt.Errorf("failed to scan market cap: %w", err)
		}
		caps[symbol] = mcap
	}
	return caps, rows.Err()
}

// GetSymbolsMissingMarketCap lists stored symbols whose market cap is
// NULL or older than the given cutoff. Used by the background refresh
// sweep.
func (db *DB) GetSymbolsMissingMarketCap(cutoff time.Time) ([]string, error) {
	query := `
		SELECT symbol
		FROM reference_records
		WHERE market_cap IS NULL OR last_updated < $1
		ORDER BY symbol ASC
	`
	rows, err := db.conn.Query(query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols missing market cap: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	return symbols, rows.Err()
}

// DeleteReference removes a reference record.
func (db *DB) DeleteReference(symbol string) error {
	result, err := db.conn.Exec(`DELETE FROM reference_records WHERE symbol = $1`, strings.ToUpper(symbol))
	if err != nil {
		return fmt.Errorf("failed to delete reference record: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
