package services

import (
	"strings"

	"github.com/marketlens/marketlens/internal/models"
)

// overlay keeps the prior value unless the fresh fetch actually
// supplied one. Every field of the merge goes through it, so a partial
// upstream response can never blank out a previously known figure.
func overlay[T any](prior, fresh *T) *T {
	if fresh != nil {
		return fresh
	}
	return prior
}

// MergePatch overlays one fetch cycle's partial result onto the prior
// record (nil when the symbol was never stored) and returns the merged
// record. Pure: neither input is mutated and no clock is read; the
// caller stamps LastUpdated.
//
// Derived margins are recomputed only when the patch carries fresh
// income-statement data; stale margins are carried over rather than
// recomputed from stale figures.
func MergePatch(existing *models.ReferenceRecord, symbol string, patch models.ReferencePatch) *models.ReferenceRecord {
	merged := models.ReferenceRecord{Symbol: strings.ToUpper(symbol)}
	if existing != nil {
		merged = *existing
	}

	if patch.CompanyName != nil {
		merged.CompanyName = *patch.CompanyName
	}
	merged.Exchange = overlay(merged.Exchange, patch.Exchange)
	merged.Sector = overlay(merged.Sector, patch.Sector)
	merged.Industry = overlay(merged.Industry, patch.Industry)
	merged.Description = overlay(merged.Description, patch.Description)
	merged.Website = overlay(merged.Website, patch.Website)
	merged.Currency = overlay(merged.Currency, patch.Currency)
	merged.Employees = overlay(merged.Employees, patch.Employees)

	merged.MarketCap = overlay(merged.MarketCap, patch.MarketCap)
	merged.SharesOutstanding = overlay(merged.SharesOutstanding, patch.SharesOutstanding)
	merged.CurrentPrice = overlay(merged.CurrentPrice, patch.CurrentPrice)
	merged.Week52High = overlay(merged.Week52High, patch.Week52High)
	merged.Week52Low = overlay(merged.Week52Low, patch.Week52Low)
	merged.AverageVolume = overlay(merged.AverageVolume, patch.AverageVolume)

	merged.PERatio = overlay(merged.PERatio, patch.PERatio)
	merged.PriceToBook = overlay(merged.PriceToBook, patch.PriceToBook)
	merged.PriceToSales = overlay(merged.PriceToSales, patch.PriceToSales)
	merged.ROE = overlay(merged.ROE, patch.ROE)
	merged.ROA = overlay(merged.ROA, patch.ROA)
	merged.CurrentRatio = overlay(merged.CurrentRatio, patch.CurrentRatio)
	merged.DebtToEquity = overlay(merged.DebtToEquity, patch.DebtToEquity)
	merged.DividendYield = overlay(merged.DividendYield, patch.DividendYield)

	merged.Revenue = overlay(merged.Revenue, patch.Revenue)
	merged.NetIncome = overlay(merged.NetIncome, patch.NetIncome)
	merged.OperatingIncome = overlay(merged.OperatingIncome, patch.OperatingIncome)
	merged.GrossProfit = overlay(merged.GrossProfit, patch.GrossProfit)
	merged.EBITDA = overlay(merged.EBITDA, patch.EBITDA)

	merged.TotalAssets = overlay(merged.TotalAssets, patch.TotalAssets)
	merged.TotalLiabilities = overlay(merged.TotalLiabilities, patch.TotalLiabilities)
	merged.TotalEquity = overlay(merged.TotalEquity, patch.TotalEquity)

	merged.OperatingCashFlow = overlay(merged.OperatingCashFlow, patch.OperatingCashFlow)
	merged.FreeCashFlow = overlay(merged.FreeCashFlow, patch.FreeCashFlow)
	merged.CapitalExpenditure = overlay(merged.CapitalExpenditure, patch.CapitalExpenditure)

	if patch.FetchedIncome {
		recomputeMargins(&merged)
	}

	return &merged
}

// recomputeMargins derives the margin ratios from the statement figures
// now on the record. A margin is only written when both operands are
// known and revenue is non-zero.
func recomputeMargins(r *models.ReferenceRecord) {
	if r.Revenue == nil || *r.Revenue == 0 {
		return
	}
	if r.NetIncome != nil {
		m := *r.NetIncome / *r.Revenue
		r.ProfitMargin = &m
	}
	if r.OperatingIncome != nil {
		m := *r.OperatingIncome / *r.Revenue
		r.OperatingMargin = &m
	}
	if r.GrossProfit != nil {
		m := *r.GrossProfit / *r.Revenue
		r.GrossMargin = &m
	}
}
