package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/marketlens/marketlens/internal/models"
)

// UpsertBranding replaces the stored branding row wholesale. Branding
// assets are atomic, so there is no field-level merge here.
func (db *DB) UpsertBranding(b *models.BrandingRecord) error {
	query := `
		INSERT INTO branding_records (symbol, company_name, exchange, icon_url, logo_url, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol) DO UPDATE SET
			company_name = EXCLUDED.company_name,
			exchange = EXCLUDED.exchange,
			icon_url = EXCLUDED.icon_url,
			logo_url = EXCLUDED.logo_url,
			fetched_at = EXCLUDED.fetched_at
	`
	if b.FetchedAt.IsZero() {
		b.FetchedAt = time.Now()
	}

	_, err := db.conn.Exec(query,
		strings.ToUpper(b.Symbol), b.CompanyName, b.Exchange, b.IconURL, b.LogoURL, b.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert branding record: %w", err)
	}
	return nil
}

// GetBranding retrieves a branding record by symbol, or ErrNotFound.
func (db *DB) GetBranding(symbol string) (*models.BrandingRecord, error) {
	query := `
		SELECT symbol, company_name, exchange, icon_url, logo_url, fetched_at
		FROM branding_records
		WHERE symbol = $1
	`
	var b models.BrandingRecord
	err := db.conn.QueryRow(query, strings.ToUpper(symbol)).Scan(
		&b.Symbol, &b.CompanyName, &b.Exchange, &b.IconURL, &b.LogoURL, &b.FetchedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get branding record: %w", err)
	}
	return &b, nil
}

// DeleteBranding removes a branding record.
func (db *DB) DeleteBranding(symbol string) error {
	result, err := db.conn.Exec(`DELETE FROM branding_records WHERE symbol = $1`, strings.ToUpper(symbol))
	if err != nil {
		return fmt.Errorf("failed to delete branding record: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
