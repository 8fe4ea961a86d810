// Package investec parses the three Investec JSE spreadsheet report shapes:
// transaction history, portfolio holdings and the share-name mapping sheet.
package investec

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/username/shareledger/src/models"
)

// Inference is what the description heuristics recover from a free-text
// transaction description when the sheet has no usable column for the field.
type Inference struct {
	Type      string
	ShareName string
	// Quantity is only valid for dividend-family descriptions that embed the
	// share count ("DIV. 327 NINETY 1L" -> 327).
	Quantity decimal.NullDecimal
}

var (
	reAccountNumberDesc = regexp.MustCompile(`(?i)^\d+\s*-\s*[A-Z\s]+$`)

	reForeignDivQty    = regexp.MustCompile(`(?i)FOREIGN\s+DIV\.?\s*(\d+)`)
	reForeignDivSpaced = regexp.MustCompile(`(?i)FOREIGN\s+DIV\.?\s*\d+\s+((?:[A-Z]\s+)+[A-Z])`)
	reForeignDivShare  = regexp.MustCompile(`(?i)FOREIGN\s+DIV\.?\s*\d+\s+(\w+)`)

	reDivTaxQty   = regexp.MustCompile(`(?i)DIV\.?\s*TAX\s+ON\s+(\d+)`)
	reDivTaxShare = regexp.MustCompile(`(?i)DIV\.?\s*TAX\s+ON\s+\d+\s+(\w+)`)

	reSpecialDivQty   = regexp.MustCompile(`(?i)SPEC(?:IAL)?\.?\s*DIV(?:IDEND)?\.?\s*(\d+)`)
	reSpecialDivShare = regexp.MustCompile(`(?i)SPEC(?:IAL)?\.?\s*DIV(?:IDEND)?\.?\s*\d+\s+(\w+)`)

	reDivQty    = regexp.MustCompile(`(?i)DIV\.?\s*(\d+)`)
	reDivSpaced = regexp.MustCompile(`(?i)DIV\.?\s*\d+\s+((?:[A-Z]\s+)+[A-Z])`)
	reDivShare  = regexp.MustCompile(`(?i)DIV\.?\s*\d+\s+(\w+)`)

	// "Buy 400 SHP at 1,192 Cents" -> 1192 cents per share.
	rePerShareCents = regexp.MustCompile(`(?i)at\s+([\d,]+)\s+Cents`)
)

// Stop-words excluded when falling back to "first uppercase word" extraction
// on dividend descriptions.
var dividendStopWords = map[string]bool{
	"DIV": true, "DIVIDEND": true, "FOREIGN": true, "TAX": true, "ON": true,
}

// descriptionRule pairs a predicate with an extractor. Rules are evaluated in
// order; the first match wins, which makes the priority order testable on its
// own (see heuristics_test.go).
type descriptionRule struct {
	name    string
	match   func(desc, upper string) bool
	extract func(desc, upper string) Inference
}

func keywordRule(name, txType string, keywords ...string) descriptionRule {
	return descriptionRule{
		name: name,
		match: func(_, upper string) bool {
			for _, kw := range keywords {
				if strings.Contains(upper, kw) {
					return true
				}
			}
			return false
		},
		extract: func(desc, _ string) Inference {
			return Inference{Type: txType, ShareName: lastUpperToken(desc)}
		},
	}
}

var descriptionRules = []descriptionRule{
	// Account-level keyword table. These types are forced to an empty share
	// name by the record builder, so the extracted name is moot for them.
	keywordRule("fee", "Fee", "FEE"),
	keywordRule("broker-fee", "Broker Fee", "BROKER"),
	keywordRule("vat", "VAT", "VAT"),
	keywordRule("capital-reduction", "Capital Reduction", "CAP.REDUC", "CAPITAL REDUCTION"),
	keywordRule("inter-account-transfer", "Inter Account Transfer", "INTER A/C TRF", "INTER ACCOUNT TRANSFER"),
	{
		name: "trf-to-from",
		match: func(_, upper string) bool {
			return strings.Contains(upper, "TRF") &&
				(strings.Contains(upper, "TO") || strings.Contains(upper, "FROM"))
		},
		extract: func(_, _ string) Inference { return Inference{Type: "Transfer"} },
	},
	keywordRule("transfer", "Transfer", "TRANSFER FROM", "TRANSFER TO"),
	keywordRule("bank-transfer", "Bank Transfer", "INVESTEC BANK", "BANK TRANSFER"),
	keywordRule("interest", "Interest", "INTEREST"),
	{
		// "10011910139 - MC DIPPENAAR" is a counterparty account line.
		name: "account-number-line",
		match: func(desc, _ string) bool {
			return reAccountNumberDesc.MatchString(desc)
		},
		extract: func(_, _ string) Inference { return Inference{Type: "Transfer"} },
	},
	{
		name: "foreign-dividend",
		match: func(_, upper string) bool {
			return strings.Contains(upper, "FOREIGN DIV")
		},
		extract: func(desc, _ string) Inference {
			return Inference{
				Type:      "Foreign Dividend",
				ShareName: shareAfterQuantity(desc, reForeignDivSpaced, reForeignDivShare),
				Quantity:  quantityFrom(desc, reForeignDivQty),
			}
		},
	},
	{
		name: "dividend-tax",
		match: func(_, upper string) bool {
			return strings.Contains(upper, "DIV. TAX") || strings.Contains(upper, "DIVIDEND TAX")
		},
		extract: func(desc, _ string) Inference {
			share := ""
			if m := reDivTaxShare.FindStringSubmatch(desc); m != nil {
				share = truncate(strings.ToUpper(m[1]), models.MaxShareNameLen)
			} else {
				share = shareAfterQuantity(desc, reDivSpaced, nil)
			}
			return Inference{
				Type:      "Dividend Tax",
				ShareName: share,
				Quantity:  quantityFrom(desc, reDivTaxQty),
			}
		},
	},
	{
		name: "special-dividend",
		match: func(_, upper string) bool {
			return strings.Contains(upper, "SPEC.DIV") ||
				strings.Contains(upper, "SPECIAL DIV") ||
				strings.Contains(upper, "SPECIAL DIVIDEND")
		},
		extract: func(desc, _ string) Inference {
			return Inference{
				Type:      "Special Dividend",
				ShareName: shareAfterQuantity(desc, nil, reSpecialDivShare),
				Quantity:  quantityFrom(desc, reSpecialDivQty),
			}
		},
	},
	{
		name: "dividend-prefix",
		match: func(_, upper string) bool {
			return strings.HasPrefix(upper, "DIV")
		},
		extract: func(desc, _ string) Inference {
			share := shareAfterQuantity(desc, reDivSpaced, reDivShare)
			if share == "" {
				share = firstUpperTokenExcluding(desc, dividendStopWords)
			}
			return Inference{
				Type:      "Dividend",
				ShareName: share,
				Quantity:  quantityFrom(desc, reDivQty),
			}
		},
	},
	{
		name:  "buy",
		match: func(_, upper string) bool { return strings.HasPrefix(upper, "BUY") },
		extract: func(desc, _ string) Inference {
			return Inference{Type: "Buy", ShareName: lastUpperToken(desc)}
		},
	},
	{
		name:  "sell",
		match: func(_, upper string) bool { return strings.HasPrefix(upper, "SELL") },
		extract: func(desc, _ string) Inference {
			return Inference{Type: "Sell", ShareName: lastUpperToken(desc)}
		},
	},
	{
		name: "dividend-anywhere",
		match: func(_, upper string) bool {
			return strings.Contains(upper, "DIV") || strings.Contains(upper, "DIVIDEND")
		},
		extract: func(desc, _ string) Inference {
			return Inference{Type: "Dividend", ShareName: lastUpperToken(desc)}
		},
	},
}

// InferDescription recovers transaction type, share name and implied quantity
// from a free-text description. Pattern failures leave the affected field
// unset; this function never fails outright.
func InferDescription(description string) Inference {
	desc := strings.TrimSpace(description)
	if desc == "" {
		return Inference{}
	}
	upper := strings.ToUpper(desc)

	for _, rule := range descriptionRules {
		if rule.match(desc, upper) {
			return rule.extract(desc, upper)
		}
	}

	// Fallback: first whitespace-delimited token is the type, last uppercase
	// token the share name.
	inf := Inference{ShareName: lastUpperToken(desc)}
	if fields := strings.Fields(desc); len(fields) > 0 {
		inf.Type = truncate(fields[0], models.MaxTypeLen)
	}
	return inf
}

// IsAccountDescription reports whether the description is shaped like an
// account-level entry (fees, taxes, transfers). Rows matching this never keep
// a share name, regardless of what the heuristics extracted.
func IsAccountDescription(description string) bool {
	desc := strings.TrimSpace(description)
	if desc == "" {
		return false
	}
	upper := strings.ToUpper(desc)
	accountKeywords := []string{
		"FEE", "BROKER", "VAT", "CAP.REDUC", "CAPITAL REDUCTION",
		"BANK TRANSFER", "TRANSFER", "QUARTERLY ADMIN FEE",
		"INTER A/C TRF", "INTER ACCOUNT TRANSFER", "INVESTEC BANK",
		"TRF FROM", "TRF TO", "TRANSFER FROM", "TRANSFER TO",
	}
	for _, kw := range accountKeywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	if strings.Contains(upper, "TRF") &&
		(strings.Contains(upper, "TO") || strings.Contains(upper, "FROM")) {
		return true
	}
	return reAccountNumberDesc.MatchString(desc)
}

// ExtractValuePerShare pulls the per-share price out of a Buy/Sell
// description ("at 1,192 Cents" -> 11.92) and derives the calculated value,
// sign-flipped for Buy. Both results are null when the pattern is absent.
func ExtractValuePerShare(description, txType string, quantity decimal.Decimal) (valuePerShare, valueCalculated decimal.NullDecimal) {
	if txType != "Buy" && txType != "Sell" {
		return
	}
	m := rePerShareCents.FindStringSubmatch(description)
	if m == nil {
		return
	}
	cents, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return
	}
	perShare := cents.Div(decimal.NewFromInt(100))
	calculated := perShare.Mul(quantity)
	if txType == "Buy" {
		calculated = calculated.Neg()
	}
	valuePerShare = decimal.NullDecimal{Decimal: perShare, Valid: true}
	valueCalculated = decimal.NullDecimal{Decimal: calculated, Valid: true}
	return
}

func quantityFrom(desc string, re *regexp.Regexp) decimal.NullDecimal {
	m := re.FindStringSubmatch(desc)
	if m == nil {
		return decimal.NullDecimal{}
	}
	q, err := decimal.NewFromString(m[1])
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: q, Valid: true}
}

// shareAfterQuantity extracts the share name following an embedded quantity,
// preferring a run of single spaced letters ("A V I" -> "AVI"), then the next
// whole word, then the first uppercase word after any number.
func shareAfterQuantity(desc string, spacedRe, wordRe *regexp.Regexp) string {
	if spacedRe != nil {
		if m := spacedRe.FindStringSubmatch(desc); m != nil {
			collapsed := strings.ToUpper(strings.ReplaceAll(m[1], " ", ""))
			return truncate(collapsed, models.MaxShareNameLen)
		}
	}
	if wordRe != nil {
		if m := wordRe.FindStringSubmatch(desc); m != nil {
			return truncate(strings.ToUpper(m[1]), models.MaxShareNameLen)
		}
	}
	return upperTokenAfterNumber(desc)
}

// upperTokenAfterNumber finds the first all-uppercase token (len > 2)
// following a purely numeric token.
func upperTokenAfterNumber(desc string) string {
	foundNumber := false
	for _, word := range strings.Fields(desc) {
		if isDigits(word) {
			foundNumber = true
			continue
		}
		if foundNumber && isUpperWord(word) && len(word) > 2 {
			return truncate(word, models.MaxShareNameLen)
		}
	}
	return ""
}

func firstUpperTokenExcluding(desc string, stop map[string]bool) string {
	for _, word := range strings.Fields(desc) {
		if isUpperWord(word) && len(word) > 2 && !stop[word] {
			return truncate(word, models.MaxShareNameLen)
		}
	}
	return ""
}

// lastUpperToken scans from the end of the description for an all-uppercase
// token longer than two characters; the company usually trails ("Buy 179
// NEDBANK" -> "NEDBANK").
func lastUpperToken(desc string) string {
	words := strings.Fields(desc)
	for i := len(words) - 1; i >= 0; i-- {
		if isUpperWord(words[i]) && len(words[i]) > 2 {
			return truncate(words[i], models.MaxShareNameLen)
		}
	}
	return ""
}

// isUpperWord mirrors Python's str.isupper: at least one cased character and
// no lowercase ones. "1L" qualifies, "1l" and "123" do not.
func isUpperWord(s string) bool {
	hasUpper := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasUpper = true
		}
	}
	return hasUpper
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func truncate(s string, max int) string {
	if max > 0 && len(s) > max {
		return s[:max]
	}
	return s
}
