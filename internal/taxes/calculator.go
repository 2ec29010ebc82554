package taxes

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// BreakdownEntry reports one tax's contribution to a calculation. Exempt
// taxes appear with a zero amount and IsExempt set.
type BreakdownEntry struct {
	TaxID         int64   `json:"taxId"`
	TaxName       string  `json:"taxName"`
	TaxType       TaxType `json:"taxType"`
	Rate          float64 `json:"rate"`
	TaxableAmount float64 `json:"taxableAmount"`
	TaxAmount     float64 `json:"taxAmount"`
	IsExempt      bool    `json:"isExempt"`
}

// Result is the outcome of a tax calculation.
type Result struct {
	BaseAmount    float64          `json:"baseAmount"`
	TaxAmount     float64          `json:"taxAmount"`
	TotalAmount   float64          `json:"totalAmount"`
	EffectiveRate float64          `json:"effectiveRate"`
	Breakdown     []BreakdownEntry `json:"taxBreakdown"`
}

// SortForCalculation orders an ad-hoc tax list by type rank. Tax groups skip
// this and use their stored order instead.
func SortForCalculation(taxes []Tax) []Tax {
	out := make([]Tax, len(taxes))
	copy(out, taxes)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Type.Rank() < out[j].Type.Rank() })
	return out
}

// Calculate applies the taxes in the given order to a base amount. Compound
// taxes fold their amount into the running base so later taxes are computed
// tax-inclusive; normal and withholding taxes leave the base untouched. An
// exemption covering a tax produces a zero breakdown entry for it. Amounts
// use exact decimal arithmetic, rounded to 2 decimal places per tax.
func Calculate(baseAmount float64, taxes []Tax, exemptions []TaxExemption, at time.Time) Result {
	base := decimal.NewFromFloat(baseAmount)
	current := base
	totalTax := decimal.Zero
	hundred := decimal.NewFromInt(100)

	breakdown := make([]BreakdownEntry, 0, len(taxes))
	for _, tax := range taxes {
		if exempt(exemptions, tax.ID, at) {
			breakdown = append(breakdown, BreakdownEntry{
				TaxID:         tax.ID,
				TaxName:       tax.Name,
				TaxType:       tax.Type,
				Rate:          tax.Rate,
				TaxableAmount: current.InexactFloat64(),
				IsExempt:      true,
			})
			continue
		}
		rate := decimal.NewFromFloat(tax.Rate)
		amount := current.Mul(rate).Div(hundred).Round(2)
		totalTax = totalTax.Add(amount)
		breakdown = append(breakdown, BreakdownEntry{
			TaxID:         tax.ID,
			TaxName:       tax.Name,
			TaxType:       tax.Type,
			Rate:          tax.Rate,
			TaxableAmount: current.InexactFloat64(),
			TaxAmount:     amount.InexactFloat64(),
		})
		if tax.Type == TypeCompound {
			current = current.Add(amount)
		}
	}

	effective := decimal.Zero
	if !base.IsZero() {
		effective = totalTax.Div(base).Mul(hundred).Round(2)
	}
	return Result{
		BaseAmount:    base.InexactFloat64(),
		TaxAmount:     totalTax.InexactFloat64(),
		TotalAmount:   base.Add(totalTax).InexactFloat64(),
		EffectiveRate: effective.InexactFloat64(),
		Breakdown:     breakdown,
	}
}

func exempt(exemptions []TaxExemption, taxID int64, at time.Time) bool {
	for _, e := range exemptions {
		if e.AppliesTo(taxID, at) {
			return true
		}
	}
	return false
}
