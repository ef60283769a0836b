package models

import "time"

// ReferenceRecord holds everything we know about one ticker: company
// identity, the latest market snapshot, derived ratios and absolute
// financial-statement figures. One row per symbol; refreshes merge into
// the existing record rather than replacing it, so every non-identity
// field is a pointer: nil means the upstream provider has never
// supplied that figure.
type ReferenceRecord struct {
	Symbol      string  `json:"symbol"`
	CompanyName string  `json:"company_name"`
	Exchange    *string `json:"exchange,omitempty"`
	Sector      *string `json:"sector,omitempty"`
	Industry    *string `json:"industry,omitempty"`
	Description *string `json:"description,omitempty"`
	Website     *string `json:"website,omitempty"`
	Currency    *string `json:"currency,omitempty"`
	Employees   *int64  `json:"employees,omitempty"`

	// Market snapshot
	MarketCap         *float64 `json:"market_cap,omitempty"`
	SharesOutstanding *float64 `json:"shares_outstanding,omitempty"`
	CurrentPrice      *float64 `json:"current_price,omitempty"`
	Week52High        *float64 `json:"week_52_high,omitempty"`
	Week52Low         *float64 `json:"week_52_low,omitempty"`
	AverageVolume     *int64   `json:"average_volume,omitempty"`

	// Ratios
	PERatio         *float64 `json:"pe_ratio,omitempty"`
	PriceToBook     *float64 `json:"price_to_book,omitempty"`
	PriceToSales    *float64 `json:"price_to_sales,omitempty"`
	ROE             *float64 `json:"roe,omitempty"`
	ROA             *float64 `json:"roa,omitempty"`
	CurrentRatio    *float64 `json:"current_ratio,omitempty"`
	DebtToEquity    *float64 `json:"debt_to_equity,omitempty"`
	DividendYield   *float64 `json:"dividend_yield,omitempty"`
	ProfitMargin    *float64 `json:"profit_margin,omitempty"`
	OperatingMargin *float64 `json:"operating_margin,omitempty"`
	GrossMargin     *float64 `json:"gross_margin,omitempty"`

	// Income statement
	Revenue         *float64 `json:"revenue,omitempty"`
	NetIncome       *float64 `json:"net_income,omitempty"`
	OperatingIncome *float64 `json:"operating_income,omitempty"`
	GrossProfit     *float64 `json:"gross_profit,omitempty"`
	EBITDA          *float64 `json:"ebitda,omitempty"`

	// Balance sheet
	TotalAssets      *float64 `json:"total_assets,omitempty"`
	TotalLiabilities *float64 `json:"total_liabilities,omitempty"`
	TotalEquity      *float64 `json:"total_equity,omitempty"`

	// Cash flow
	OperatingCashFlow  *float64 `json:"operating_cash_flow,omitempty"`
	FreeCashFlow       *float64 `json:"free_cash_flow,omitempty"`
	CapitalExpenditure *float64 `json:"capital_expenditure,omitempty"`

	LastUpdated time.Time `json:"last_updated"`
	CreatedAt   time.Time `json:"created_at"`
}

// ReferencePatch is the partial result of one upstream fetch cycle.
// The Fetched* flags record which category sub-fetches actually
// returned data this cycle; a nil field inside a fetched category still
// never erases a prior value when the patch is merged.
type ReferencePatch struct {
	CompanyName *string
	Exchange    *string
	Sector      *string
	Industry    *string
	Description *string
	Website     *string
	Currency    *string
	Employees   *int64

	MarketCap         *float64
	SharesOutstanding *float64
	CurrentPrice      *float64
	Week52High        *float64
	Week52Low         *float64
	AverageVolume     *int64

	PERatio       *float64
	PriceToBook   *float64
	PriceToSales  *float64
	ROE           *float64
	ROA           *float64
	CurrentRatio  *float64
	DebtToEquity  *float64
	DividendYield *float64

	Revenue         *float64
	NetIncome       *float64
	OperatingIncome *float64
	GrossProfit     *float64
	EBITDA          *float64

	TotalAssets      *float64
	TotalLiabilities *float64
	TotalEquity      *float64

	OperatingCashFlow  *float64
	FreeCashFlow       *float64
	CapitalExpenditure *float64

	FetchedProfile   bool
	FetchedRatios    bool
	FetchedIncome    bool
	FetchedBalance   bool
	FetchedCashFlow  bool
	FetchedWeekRange bool
}

// Empty reports whether the patch carries no fetched data at all.
func (p ReferencePatch) Empty() bool {
	return !p.FetchedProfile && !p.FetchedRatios && !p.FetchedIncome &&
		!p.FetchedBalance && !p.FetchedCashFlow && !p.FetchedWeekRange
}
