package investec

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferDescription(t *testing.T) {
	tests := []struct {
		desc      string
		wantType  string
		wantShare string
		wantQty   string // "" means no quantity extracted
	}{
		{"DIV. 327 NINETY 1L", "Dividend", "NINETY", "327"},
		{"FOREIGN DIV. 123 A V I", "Foreign Dividend", "AVI", "123"},
		{"SPEC.DIV. 1229 OUTSURE", "Special Dividend", "OUTSURE", "1229"},
		{"DIV. TAX ON 74 NINETY 1L", "Dividend Tax", "NINETY", "74"},
		{"Buy 400 SHP at 1,192 Cents", "Buy", "SHP", ""},
		{"Sell 179 NEDBANK", "Sell", "NEDBANK", ""},
		{"QUARTERLY ADMIN FEE", "Fee", "FEE", ""},
		{"BROKERAGE CHARGED", "Broker Fee", "CHARGED", ""},
		{"VAT ON FEES", "Fee", "FEES", ""}, // FEE keyword outranks VAT
		{"VAT CHARGED", "VAT", "CHARGED", ""},
		{"CAP.REDUC 500 SASOL", "Capital Reduction", "SASOL", ""},
		{"INTER A/C TRF", "Inter Account Transfer", "TRF", ""},
		{"TRF TO 10011910139", "Transfer", "", ""},
		{"INVESTEC BANK LTD", "Bank Transfer", "LTD", ""},
		{"INTEREST ON CASH BALANCE", "Interest", "BALANCE", ""},
		{"10011910139 - MC DIPPENAAR", "Transfer", "", ""},
		{"DIVIDEND RECEIVED SASOL", "Dividend", "RECEIVED", ""},
		{"Withdrawal REQUESTED", "Withdrawal", "REQUESTED", ""},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			inf := InferDescription(tt.desc)
			assert.Equal(t, tt.wantType, inf.Type, "type")
			assert.Equal(t, tt.wantShare, inf.ShareName, "share name")
			if tt.wantQty == "" {
				assert.False(t, inf.Quantity.Valid, "no quantity expected, got %s", inf.Quantity.Decimal)
			} else {
				require.True(t, inf.Quantity.Valid, "quantity expected")
				assert.True(t, inf.Quantity.Decimal.Equal(decimal.RequireFromString(tt.wantQty)),
					"got %s", inf.Quantity.Decimal)
			}
		})
	}
}

func TestInferDescription_Empty(t *testing.T) {
	inf := InferDescription("   ")
	assert.Empty(t, inf.Type)
	assert.Empty(t, inf.ShareName)
	assert.False(t, inf.Quantity.Valid)
}

func TestInferDescription_RuleOrder(t *testing.T) {
	// "FOREIGN DIV" must win over the generic dividend prefix even though
	// both match.
	inf := InferDescription("FOREIGN DIV. 55 PROSUS")
	assert.Equal(t, "Foreign Dividend", inf.Type)
	assert.Equal(t, "PROSUS", inf.ShareName)

	// "DIV. TAX" must win over the dividend prefix.
	inf = InferDescription("DIV. TAX ON 100 SASOL")
	assert.Equal(t, "Dividend Tax", inf.Type)
	assert.Equal(t, "SASOL", inf.ShareName)
}

func TestIsAccountDescription(t *testing.T) {
	accountLike := []string{
		"QUARTERLY ADMIN FEE",
		"BROKERAGE CHARGED",
		"VAT ON FEES",
		"CAP.REDUC 500 SASOL",
		"INTER A/C TRF",
		"TRF FROM 10011910139",
		"INVESTEC BANK LTD",
		"BANK TRANSFER IN",
		"10011910139 - MC DIPPENAAR",
	}
	for _, desc := range accountLike {
		assert.True(t, IsAccountDescription(desc), "%q should be account-shaped", desc)
	}

	shareLike := []string{
		"",
		"Buy 400 SHP at 1,192 Cents",
		"DIV. 327 NINETY 1L",
		"Sell 179 NEDBANK",
	}
	for _, desc := range shareLike {
		assert.False(t, IsAccountDescription(desc), "%q should not be account-shaped", desc)
	}
}

func TestExtractValuePerShare(t *testing.T) {
	qty := decimal.NewFromInt(400)

	perShare, calculated := ExtractValuePerShare("Buy 400 SHP at 1,192 Cents", "Buy", qty)
	require.True(t, perShare.Valid)
	require.True(t, calculated.Valid)
	assert.True(t, perShare.Decimal.Equal(decimal.RequireFromString("11.92")), "got %s", perShare.Decimal)
	// Buy flips the sign: money leaves the account.
	assert.True(t, calculated.Decimal.Equal(decimal.RequireFromString("-4768")), "got %s", calculated.Decimal)

	perShare, calculated = ExtractValuePerShare("Sell 400 SHP at 1,192 Cents", "Sell", qty)
	require.True(t, perShare.Valid)
	assert.True(t, calculated.Decimal.Equal(decimal.RequireFromString("4768")), "got %s", calculated.Decimal)

	// No cents pattern.
	perShare, calculated = ExtractValuePerShare("Buy 400 SHP", "Buy", qty)
	assert.False(t, perShare.Valid)
	assert.False(t, calculated.Valid)

	// Not a trade type.
	perShare, _ = ExtractValuePerShare("DIV. 327 at 100 Cents", "Dividend", qty)
	assert.False(t, perShare.Valid)
}

func TestSplitInstrument(t *testing.T) {
	company, code := SplitInstrument("ABSA GROUP LIMITED (ABG)")
	assert.Equal(t, "ABSA GROUP LIMITED", company)
	assert.Equal(t, "ABG", code)

	company, code = SplitInstrument("SETTLEMENT ACCOUNT")
	assert.Equal(t, "SETTLEMENT ACCOUNT", company)
	assert.Empty(t, code)

	company, code = SplitInstrument("  NEDBANK GROUP LTD (NED)  ")
	assert.Equal(t, "NEDBANK GROUP LTD", company)
	assert.Equal(t, "NED", code)
}
