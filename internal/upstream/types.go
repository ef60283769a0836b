package upstream

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marketlens/marketlens/internal/models"
)

// Provider payloads. Optional numerics are pointers: the provider omits
// figures it does not have and an omitted figure must stay nil all the
// way into the merge.

// Profile carries company identity plus the market snapshot.
type Profile struct {
	Symbol            string   `json:"symbol"`
	CompanyName       string   `json:"companyName"`
	Exchange          *string  `json:"exchange"`
	Sector            *string  `json:"sector"`
	Industry          *string  `json:"industry"`
	Description       *string  `json:"description"`
	Website           *string  `json:"website"`
	Currency          *string  `json:"currency"`
	Employees         *int64   `json:"fullTimeEmployees"`
	MarketCap         *float64 `json:"mktCap"`
	SharesOutstanding *float64 `json:"sharesOutstanding"`
	Price             *float64 `json:"price"`
}

// Ratios carries trailing-twelve-month ratios.
type Ratios struct {
	PERatio       *float64 `json:"peRatioTTM"`
	PriceToBook   *float64 `json:"priceToBookRatioTTM"`
	PriceToSales  *float64 `json:"priceToSalesRatioTTM"`
	ROE           *float64 `json:"returnOnEquityTTM"`
	ROA           *float64 `json:"returnOnAssetsTTM"`
	CurrentRatio  *float64 `json:"currentRatioTTM"`
	DebtToEquity  *float64 `json:"debtEquityRatioTTM"`
	DividendYield *float64 `json:"dividendYieldTTM"`
}

// IncomeStatement carries the latest annual income statement.
type IncomeStatement struct {
	Revenue         *float64 `json:"revenue"`
	NetIncome       *float64 `json:"netIncome"`
	OperatingIncome *float64 `json:"operatingIncome"`
	GrossProfit     *float64 `json:"grossProfit"`
	EBITDA          *float64 `json:"ebitda"`
}

// BalanceSheet carries the latest annual balance sheet.
type BalanceSheet struct {
	TotalAssets      *float64 `json:"totalAssets"`
	TotalLiabilities *float64 `json:"totalLiabilities"`
	TotalEquity      *float64 `json:"totalStockholdersEquity"`
}

// CashFlow carries the latest annual cash-flow statement.
type CashFlow struct {
	OperatingCashFlow  *float64 `json:"operatingCashFlow"`
	FreeCashFlow       *float64 `json:"freeCashFlow"`
	CapitalExpenditure *float64 `json:"capitalExpenditure"`
}

// WeekRange carries the 52-week range and average volume from the
// quote endpoint.
type WeekRange struct {
	Week52High    *float64 `json:"yearHigh"`
	Week52Low     *float64 `json:"yearLow"`
	AverageVolume *int64   `json:"avgVolume"`
}

type calendarEventPayload struct {
	ID              string   `json:"id"`
	Symbol          string   `json:"symbol"`
	CompanyName     string   `json:"companyName"`
	Date            string   `json:"date"`
	Time            string   `json:"time"`
	Importance      int      `json:"importance"`
	FiscalPeriod    string   `json:"fiscalPeriod"`
	FiscalYear      int      `json:"fiscalYear"`
	Currency        string   `json:"currency"`
	EPSActual       *float64 `json:"epsActual"`
	EPSEstimate     *float64 `json:"epsEstimate"`
	EPSPrior        *float64 `json:"epsPrior"`
	EPSSurprise     *float64 `json:"epsSurprisePercent"`
	RevenueActual   *float64 `json:"revenueActual"`
	RevenueEstimate *float64 `json:"revenueEstimate"`
	RevenuePrior    *float64 `json:"revenuePrior"`
	RevenueSurprise *float64 `json:"revenueSurprisePercent"`
}

func (p calendarEventPayload) toEvent() (*models.CalendarEvent, error) {
	if p.Symbol == "" || p.Date == "" {
		return nil, fmt.Errorf("event missing symbol or date")
	}
	date, err := time.Parse("2006-01-02", p.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to parse event date %q: %w", p.Date, err)
	}

	importance := p.Importance
	if importance < 0 {
		importance = 0
	}
	if importance > 5 {
		importance = 5
	}

	return &models.CalendarEvent{
		ID:              models.EventID(p.ID, p.Symbol, p.FiscalPeriod, p.FiscalYear),
		Symbol:          strings.ToUpper(p.Symbol),
		CompanyName:     p.CompanyName,
		Date:            date,
		TimeOfDay:       strings.ToLower(p.Time),
		Importance:      importance,
		FiscalPeriod:    p.FiscalPeriod,
		FiscalYear:      p.FiscalYear,
		Currency:        p.Currency,
		EPSActual:       toDecimal(p.EPSActual),
		EPSEstimate:     toDecimal(p.EPSEstimate),
		EPSPrior:        toDecimal(p.EPSPrior),
		EPSSurprise:     toDecimal(p.EPSSurprise),
		RevenueActual:   toDecimal(p.RevenueActual),
		RevenueEstimate: toDecimal(p.RevenueEstimate),
		RevenuePrior:    toDecimal(p.RevenuePrior),
		RevenueSurprise: toDecimal(p.RevenueSurprise),
	}, nil
}

func toDecimal(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(*f)
	return &d
}

type brandingPayload struct {
	CompanyName string `json:"companyName"`
	Exchange    string `json:"exchange"`
	IconURL     string `json:"iconUrl"`
	LogoURL     string `json:"logoUrl"`
}

type newsPayload struct {
	Symbol      string `json:"symbol"`
	Title       string `json:"title"`
	Text        string `json:"text"`
	Site        string `json:"site"`
	URL         string `json:"url"`
	Image       string `json:"image"`
	PublishedAt string `json:"publishedDate"`
}

func (p newsPayload) toArticle() *models.NewsArticle {
	published, err := time.Parse("2006-01-02 15:04:05", p.PublishedAt)
	if err != nil {
		published = time.Time{}
	}
	return &models.NewsArticle{
		Symbol:      strings.ToUpper(p.Symbol),
		Headline:    p.Title,
		Summary:     p.Text,
		Source:      p.Site,
		URL:         p.URL,
		ImageURL:    p.Image,
		PublishedAt: published,
	}
}
