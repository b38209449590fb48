package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func TestNormalizeCurrency(t *testing.T) {
	assert.Equal(t, "UAH", NormalizeCurrency(""))
	assert.Equal(t, "USD", NormalizeCurrency(" usd "))
	assert.True(t, ValidCurrency("eur"))
	assert.True(t, ValidCurrency(""), "empty means the default")
	assert.False(t, ValidCurrency("XYZ"))
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(1250), ToMinorUnits(decimal.RequireFromString("12.50"), "USD"))
	assert.Equal(t, int64(1235), ToMinorUnits(decimal.RequireFromString("12.345"), "USD"))
	assert.Equal(t, int64(-1235), ToMinorUnits(decimal.RequireFromString("-12.345"), "USD"))
	assert.Equal(t, int64(1500), ToMinorUnits(decimal.NewFromInt(1500), "JPY"))

	assert.True(t, decimal.RequireFromString("12.5").Equal(FromMinorUnits(1250, "USD")))
	assert.True(t, decimal.NewFromInt(1500).Equal(FromMinorUnits(1500, "JPY")))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "$12.50", FormatAmount(decimal.RequireFromString("12.5"), "USD"))
	assert.Equal(t, "12.50 XYZ", FormatAmount(decimal.RequireFromString("12.5"), "xyz"))
}

func TestDebtStatusFor(t *testing.T) {
	due := "2024-06-01"
	tests := []struct {
		name  string
		paid  string
		due   *string
		today string
		want  DebtStatus
	}{
		{"unpaid before due", "0", &due, "2024-03-15", DebtOpen},
		{"partly paid", "500", &due, "2024-03-15", DebtOpen},
		{"due today is not overdue", "500", &due, "2024-06-01", DebtOpen},
		{"past due", "500", &due, "2024-06-02", DebtOverdue},
		{"paid in full", "1000", &due, "2024-06-02", DebtClosed},
		{"overpaid", "1200", &due, "2024-03-15", DebtClosed},
		{"no due date", "0", nil, "2030-01-01", DebtOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DebtStatusFor(decimal.NewFromInt(1000), decimal.RequireFromString(tt.paid), tt.due, tt.today)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeDebtStatus(t *testing.T) {
	assert.Equal(t, DebtOpen, NormalizeDebtStatus("active"))
	assert.Equal(t, DebtOpen, NormalizeDebtStatus(""))
	assert.Equal(t, DebtClosed, NormalizeDebtStatus(DebtClosed))
}

func TestPaidTotal(t *testing.T) {
	d1, d2 := "d1", "d2"
	payments := []DebtPayment{
		{DebtID: &d1, Amount: decimal.NewFromInt(300)},
		{DebtID: &d2, Amount: decimal.NewFromInt(50)},
		{DebtID: &d1, Amount: decimal.RequireFromString("200.5")},
		{Amount: decimal.NewFromInt(10)},
	}
	assert.Equal(t, "500.5", PaidTotal(payments, "d1").String())
	assert.True(t, PaidTotal(nil, "d1").IsZero())
}

func TestValidate(t *testing.T) {
	err := Transaction{Direction: "sideways", Amount: decimal.NewFromInt(-1), Currency: "XYZ"}.Validate()
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "transaction", ve.Entity)
	fields := make([]string, len(ve.Fields))
	for i, f := range ve.Fields {
		fields[i] = f.Field
	}
	assert.Equal(t, []string{"profileId", "direction", "amount", "currency", "occurredAt"}, fields)
	assert.True(t, IsValidationError(err))

	ok := Transaction{
		ProfileID:  "p1",
		Direction:  DirectionExpense,
		Amount:     decimal.NewFromInt(5),
		OccurredAt: mustTime(t, "2024-03-01T10:00:00Z"),
	}
	assert.NoError(t, ok.Validate(), "empty currency means the default")

	assert.Error(t, Debt{ProfileID: "p1", Direction: DebtIOwe, Counterparty: "Bob", StartDate: "2024-01-01"}.Validate(), "principal must be positive")
	assert.Error(t, Budget{ProfileID: "p1", Month: "2024-13"}.Validate())
	assert.Error(t, DebtPayment{ProfileID: "p1", Date: "2024-02-01", Amount: decimal.NewFromInt(1)}.Validate(), "debtId required")
	assert.NoError(t, Payment{ProfileID: "p1", DueDate: "2024-03-20", Title: "Rent", Status: PaymentPlanned}.Validate())
}
