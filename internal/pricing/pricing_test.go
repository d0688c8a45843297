package pricing

import (
	"testing"
	"time"
)

const sampleTable = "📦 Today's Price\n" +
	"• 2016-22:      ₹1035.00/$11.50\n" +
	"• 2023:         ₹810.00/$9.00\n" +
	"• Jan-Feb 2024: ₹360.00/$4.00\n" +
	"• Mar 2024:     ₹405.00/$4.50\n" +
	"• Apr 2024:     ₹315.00/$3.50"

func TestParseTable(t *testing.T) {
	tiers := Parse(sampleTable)
	if len(tiers) != 5 {
		t.Fatalf("expected 5 tiers, got %d", len(tiers))
	}
	if tiers[1].Label != "2023" || tiers[1].PriceINR != 81000 || tiers[1].PriceUSD != 900 {
		t.Fatalf("unexpected tier: %+v", tiers[1])
	}
	if tiers[0].PriceINR != 103500 || tiers[0].PriceUSD != 1150 {
		t.Fatalf("unexpected tier: %+v", tiers[0])
	}
}

func TestParseSkipsMalformedRows(t *testing.T) {
	text := "• 2023: ₹810.00/$9.00\n" +
		"• 2022 missing delimiter ₹100.00 $1.00\n" +
		"• Mar 2024: ₹405.00/$4.50"
	tiers := Parse(text)
	if len(tiers) != 2 {
		t.Fatalf("expected 2 tiers, got %d: %+v", len(tiers), tiers)
	}
	if tiers[0].Label != "2023" || tiers[1].Label != "Mar 2024" {
		t.Fatalf("order not preserved: %+v", tiers)
	}
}

func TestParseEmptyText(t *testing.T) {
	if tiers := Parse("no bullets here"); len(tiers) != 0 {
		t.Fatalf("expected no tiers, got %+v", tiers)
	}
}

func TestMatchFirstYearHit(t *testing.T) {
	tiers := Parse(sampleTable)

	got := Match(tiers, "Jun 2023")
	if got.Label != "2023" {
		t.Fatalf("expected 2023 tier, got %+v", got)
	}

	// Both 2024 rows mention the year; the first one wins.
	got = Match(tiers, "Mar 2024")
	if got.Label != "Jan-Feb 2024" {
		t.Fatalf("expected first 2024 tier, got %+v", got)
	}
}

func TestMatchFallsBackToFirstTier(t *testing.T) {
	tiers := Parse(sampleTable)
	got := Match(tiers, "May 2019")
	if got.Label != "2016-22" {
		t.Fatalf("expected first tier fallback, got %+v", got)
	}
}

func TestMatchEmptyTableQuotesZero(t *testing.T) {
	got := Match(nil, "Jun 2023")
	if got.PriceINR != 0 || got.PriceUSD != 0 {
		t.Fatalf("expected zero quote, got %+v", got)
	}
}

func TestPeriodLabel(t *testing.T) {
	earliest := time.Date(2023, time.June, 12, 0, 0, 0, 0, time.UTC)
	if got := PeriodLabel(earliest); got != "Jun 2023" {
		t.Fatalf("PeriodLabel = %q", got)
	}
}
