// Package pricing parses the operator-maintained price list and selects the
// tier a group is quoted at.
package pricing

import (
	"strings"
	"time"

	"github.com/wdesk/groupbroker/internal/money"
)

// Tier is one row of the price table: a human-entered period label and the
// payout in both currencies.
type Tier struct {
	Label    string
	PriceINR int64
	PriceUSD int64
}

// Parse reads tiers out of the free-form price list text. Expected row shape
// is "• <label>: ₹<inr>/$<usd>". Rows that do not carry the delimiter or a
// parseable price pair are skipped, never reported: the table is operator
// input and a bad row must not break the quote flow.
func Parse(text string) []Tier {
	var tiers []Tier
	for _, line := range strings.Split(text, "\n") {
		_, row, found := strings.Cut(line, "•")
		if !found {
			continue
		}
		label, prices, found := strings.Cut(row, ":")
		if !found {
			continue
		}
		_, prices, found = strings.Cut(prices, "₹")
		if !found {
			continue
		}
		inrText, usdText, found := strings.Cut(prices, "/")
		if !found {
			continue
		}
		usdText = strings.TrimPrefix(strings.TrimSpace(usdText), "$")
		inr, err := money.ParseDecimal(strings.TrimSpace(inrText))
		if err != nil {
			continue
		}
		usd, err := money.ParseDecimal(usdText)
		if err != nil {
			continue
		}
		tiers = append(tiers, Tier{
			Label:    strings.TrimSpace(label),
			PriceINR: inr,
			PriceUSD: usd,
		})
	}
	return tiers
}

// PeriodLabel renders the month-year label a group is matched under, derived
// from its earliest message date.
func PeriodLabel(earliest time.Time) string {
	return earliest.Format("Jan 2006")
}

// Match picks the tier for a period label: the first tier whose label
// mentions the same year wins. With no match the first tier applies, and an
// empty table quotes zero.
func Match(tiers []Tier, periodLabel string) Tier {
	year := yearToken(periodLabel)
	if year != "" {
		for _, t := range tiers {
			if strings.Contains(t.Label, year) {
				return t
			}
		}
	}
	if len(tiers) > 0 {
		return tiers[0]
	}
	return Tier{Label: "Default"}
}

func yearToken(label string) string {
	run := 0
	for i, r := range label {
		if r >= '0' && r <= '9' {
			run++
			if run == 4 {
				return label[i-3 : i+1]
			}
		} else {
			run = 0
		}
	}
	return ""
}
