package formatters

import (
	"testing"
	"time"
)

func TestIndianCurrency(t *testing.T) {
	cases := []struct {
		amount float64
		opts   CurrencyOptions
		want   string
	}{
		{0, CurrencyOptions{}, "₹0"},
		{5070, CurrencyOptions{}, "₹5,070"},
		{52800, CurrencyOptions{Compact: true}, "₹52,800"},
		{105600, CurrencyOptions{Compact: true}, "₹1.1L"},
		{105600, CurrencyOptions{}, "₹1.06 L"},
		{25000000, CurrencyOptions{Compact: true}, "₹2.5Cr"},
		{1500000000, CurrencyOptions{Compact: true}, "₹150Cr"},
		{25000000, CurrencyOptions{}, "₹2.50 Cr"},
		{25000000, CurrencyOptions{SkipCrores: true}, "₹250.00 L"},
		{-182, CurrencyOptions{Compact: true}, "₹-182"},
		{1234.5, CurrencyOptions{ShowDecimals: true}, "₹1,234.50"},
	}

	for _, tc := range cases {
		if got := IndianCurrency(tc.amount, tc.opts); got != tc.want {
			t.Errorf("IndianCurrency(%v, %+v) = %q, want %q", tc.amount, tc.opts, got, tc.want)
		}
	}
}

func TestIndianNumber(t *testing.T) {
	cases := []struct {
		n        float64
		decimals bool
		want     string
	}{
		{0, false, "0"},
		{999, false, "999"},
		{1000, false, "1,000"},
		{123456, false, "1,23,456"},
		{12345678, false, "1,23,45,678"},
		{-1234567, false, "-12,34,567"},
		{2.5, false, "3"},
		{1234.567, true, "1,234.57"},
	}

	for _, tc := range cases {
		if got := IndianNumber(tc.n, tc.decimals); got != tc.want {
			t.Errorf("IndianNumber(%v, %v) = %q, want %q", tc.n, tc.decimals, got, tc.want)
		}
	}
}

func TestLocaleNumber(t *testing.T) {
	cases := map[float64]string{
		0:          "0",
		13:         "13",
		1250000:    "12,50,000",
		2.15:       "2.15",
		3.14159:    "3.142",
		-1.5:       "-1.5",
		11327.0001: "11,327",
	}
	for in, want := range cases {
		if got := LocaleNumber(in); got != want {
			t.Errorf("LocaleNumber(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestPercentageAndTimes(t *testing.T) {
	if got := Percentage(0, 1); got != "0%" {
		t.Errorf("Percentage(0) = %q", got)
	}
	if got := Percentage(8.54, 1); got != "8.5%" {
		t.Errorf("Percentage(8.54) = %q", got)
	}

	times := map[float64]string{
		0:      "0x",
		0.456:  "0.46x",
		2.54:   "2.5x",
		52.45:  "52x",
		178.5:  "179x",
		1000.4: "1000x",
	}
	for in, want := range times {
		if got := SubscriptionTimes(in); got != want {
			t.Errorf("SubscriptionTimes(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestDates(t *testing.T) {
	if got := IndianDateString("2024-11-08"); got != "08-Nov-2024" {
		t.Errorf("IndianDateString = %q", got)
	}
	if got := IndianDateString("not a date"); got != "not a date" {
		t.Errorf("unparseable input should pass through, got %q", got)
	}

	utc := time.Date(2024, 11, 8, 9, 15, 0, 0, time.UTC)
	if got := IndianTime(utc); got != "02:45 PM" {
		t.Errorf("IndianTime = %q, want 02:45 PM", got)
	}
	if got := IndianDateTime(utc); got != "08-Nov-2024 02:45 PM" {
		t.Errorf("IndianDateTime = %q", got)
	}
}

func TestCountdown(t *testing.T) {
	now := time.Date(2024, 11, 6, 10, 0, 0, 0, IST)
	cases := []struct {
		target time.Time
		want   string
	}{
		{now.Add(-time.Minute), "Closed"},
		{now, "Closed"},
		{now.Add(2*24*time.Hour + 5*time.Hour), "2d 5h"},
		{now.Add(3*time.Hour + 20*time.Minute), "3h 20m"},
		{now.Add(45 * time.Minute), "45m"},
	}
	for _, tc := range cases {
		if got := Countdown(tc.target, now); got != tc.want {
			t.Errorf("Countdown(%v) = %q, want %q", tc.target.Sub(now), got, tc.want)
		}
	}
}

func TestGMPColorClass(t *testing.T) {
	cases := map[float64]string{
		57.1: "gmp-very-high",
		50:   "gmp-very-high",
		35.7: "gmp-high",
		22.7: "gmp-medium",
		8.5:  "gmp-low",
		-1.5: "gmp-low",
	}
	for in, want := range cases {
		if got := GMPColorClass(in); got != want {
			t.Errorf("GMPColorClass(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestLotAndProfit(t *testing.T) {
	if got := LotSize(2000, 28); got != "2,000 @ ₹28" {
		t.Errorf("LotSize = %q", got)
	}
	if got := EstimatedProfit(150, 352, 80); got != "₹12,000" {
		t.Errorf("EstimatedProfit = %q", got)
	}
	if got := EstimatedProfit(2000, 28, 100); got != "₹2.0L" {
		t.Errorf("EstimatedProfit = %q", got)
	}
}
