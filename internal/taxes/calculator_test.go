package taxes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var calcTime = time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)

func normalTax(id int64, rate float64) Tax {
	return Tax{ID: id, Name: "Normal", Type: TypeNormal, Rate: rate, IsActive: true}
}

func compoundTax(id int64, rate float64) Tax {
	return Tax{ID: id, Name: "Compound", Type: TypeCompound, Rate: rate, IsActive: true}
}

func TestCalculateNormalThenCompound(t *testing.T) {
	taxes := []Tax{normalTax(1, 5), compoundTax(2, 10)}

	result := Calculate(100, taxes, nil, calcTime)
	require.Equal(t, 100.0, result.BaseAmount)
	require.Equal(t, 15.0, result.TaxAmount)
	require.Equal(t, 115.0, result.TotalAmount)
	require.Equal(t, 15.0, result.EffectiveRate)
	require.Len(t, result.Breakdown, 2)
	require.Equal(t, 5.0, result.Breakdown[0].TaxAmount)
	require.Equal(t, 100.0, result.Breakdown[0].TaxableAmount)
	require.Equal(t, 10.0, result.Breakdown[1].TaxAmount)
	require.Equal(t, 100.0, result.Breakdown[1].TaxableAmount)
}

func TestCalculateCompoundThenNormalChangesBase(t *testing.T) {
	taxes := []Tax{compoundTax(2, 10), normalTax(1, 5)}

	result := Calculate(100, taxes, nil, calcTime)
	require.Equal(t, 15.5, result.TaxAmount)
	require.Equal(t, 115.5, result.TotalAmount)
	require.Equal(t, 15.5, result.EffectiveRate)
	// compound folds into the running base, so normal sees 110
	require.Equal(t, 110.0, result.Breakdown[1].TaxableAmount)
	require.Equal(t, 5.5, result.Breakdown[1].TaxAmount)
}

func TestSortForCalculationOrdersByTypeRank(t *testing.T) {
	taxes := []Tax{
		compoundTax(3, 10),
		{ID: 2, Name: "WHT", Type: TypeWithholding, Rate: 2, IsActive: true},
		normalTax(1, 5),
	}
	sorted := SortForCalculation(taxes)
	require.Equal(t, TypeNormal, sorted[0].Type)
	require.Equal(t, TypeWithholding, sorted[1].Type)
	require.Equal(t, TypeCompound, sorted[2].Type)

	// rank ordering means an ad-hoc list always totals the same regardless
	// of the order the IDs were supplied in
	result := Calculate(100, sorted, nil, calcTime)
	require.Equal(t, 17.0, result.TaxAmount)
}

func TestCalculateAllTaxesExemptContact(t *testing.T) {
	taxes := []Tax{normalTax(1, 5), compoundTax(2, 10)}
	exemptions := []TaxExemption{{ID: 1, ContactID: 7, TaxID: nil, ExemptionType: ExemptGovernment, IsActive: true}}

	result := Calculate(100, taxes, exemptions, calcTime)
	require.Equal(t, 0.0, result.TaxAmount)
	require.Equal(t, 100.0, result.TotalAmount)
	require.Equal(t, 0.0, result.EffectiveRate)
	require.Len(t, result.Breakdown, 2)
	for _, entry := range result.Breakdown {
		require.True(t, entry.IsExempt)
		require.Equal(t, 0.0, entry.TaxAmount)
	}
}

func TestCalculateSingleTaxExemption(t *testing.T) {
	taxID := int64(1)
	taxes := []Tax{normalTax(1, 5), compoundTax(2, 10)}
	exemptions := []TaxExemption{{ID: 1, ContactID: 7, TaxID: &taxID, ExemptionType: ExemptResale, IsActive: true}}

	result := Calculate(100, taxes, exemptions, calcTime)
	require.Equal(t, 10.0, result.TaxAmount)
	require.True(t, result.Breakdown[0].IsExempt)
	require.False(t, result.Breakdown[1].IsExempt)
}

func TestCalculateExpiredCertificateNotApplied(t *testing.T) {
	expired := calcTime.AddDate(0, -1, 0)
	taxes := []Tax{normalTax(1, 5)}
	exemptions := []TaxExemption{{ID: 1, ContactID: 7, TaxID: nil, ExemptionType: ExemptNonProfit, CertificateExpiry: &expired, IsActive: true}}

	result := Calculate(100, taxes, exemptions, calcTime)
	require.Equal(t, 5.0, result.TaxAmount)
	require.False(t, result.Breakdown[0].IsExempt)
}

func TestCalculateZeroBaseAmount(t *testing.T) {
	taxes := []Tax{normalTax(1, 5)}

	result := Calculate(0, taxes, nil, calcTime)
	require.Equal(t, 0.0, result.TaxAmount)
	require.Equal(t, 0.0, result.EffectiveRate)
}

func TestCalculateRoundsPerTax(t *testing.T) {
	taxes := []Tax{normalTax(1, 7.25)}

	result := Calculate(19.99, taxes, nil, calcTime)
	// 19.99 * 7.25% = 1.449275 rounds to 1.45
	require.Equal(t, 1.45, result.TaxAmount)
	require.Equal(t, 21.44, result.TotalAmount)
	require.Equal(t, 7.25, result.EffectiveRate)
}
