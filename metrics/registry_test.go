package metrics

import (
	"testing"

	"claimauditor/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestNormalizeAliases(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Total Revenue", "revenue"},
		{"  sales ", "revenue"},
		{"EPS", "eps_diluted"},
		{"Diluted EPS", "eps_diluted"},
		{"op margin", "operating_margin"},
		{"FCF", "free_cash_flow"},
		{"capex", "capital_expenditure"},
		{"R&D", "research_and_development"},
		{"SG&A", "selling_general_admin"},
		{"some unknown metric", "some unknown metric"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestCanResolve(t *testing.T) {
	assert.True(t, CanResolve("revenue"))
	assert.True(t, CanResolve("gross margin"))
	assert.True(t, CanResolve("capex"))
	assert.False(t, CanResolve("daily active users"))
	assert.False(t, CanResolve("subscriber count"))
}

func TestResolveDirectField(t *testing.T) {
	period := &models.FinancialPeriod{Revenue: f(94.93e9)}
	v := Resolve("revenue", period)
	require.NotNil(t, v)
	assert.InDelta(t, 94.93e9, *v, 1)
}

func TestResolveMissingFieldIsNil(t *testing.T) {
	period := &models.FinancialPeriod{}
	assert.Nil(t, Resolve("revenue", period))
}

func TestResolveCapitalExpenditureIsAbsoluteValue(t *testing.T) {
	period := &models.FinancialPeriod{CapitalExpenditure: f(-3.2e9)}
	v := Resolve("capex", period)
	require.NotNil(t, v)
	assert.InDelta(t, 3.2e9, *v, 1)
}

func TestResolveDerivedMargin(t *testing.T) {
	period := &models.FinancialPeriod{
		GrossProfit: f(43.879e9),
		Revenue:     f(94.93e9),
	}
	v := Resolve("gross_margin", period)
	require.NotNil(t, v)
	assert.InDelta(t, 46.22, *v, 0.01)
}

func TestResolveDerivedMissingDenominatorIsNil(t *testing.T) {
	period := &models.FinancialPeriod{GrossProfit: f(1)}
	assert.Nil(t, Resolve("gross_margin", period))
}

func TestResolveUnknownMetricIsNil(t *testing.T) {
	period := &models.FinancialPeriod{Revenue: f(1)}
	assert.Nil(t, Resolve("daily active users", period))
}
