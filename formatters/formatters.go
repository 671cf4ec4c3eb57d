// Package formatters renders amounts, multiples and dates the way Indian
// market dashboards display them: lakh/crore units, 3-2-2 digit grouping
// and IST clock times.
package formatters

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	crore = 10000000.0
	lakh  = 100000.0
)

// IST is the fixed +05:30 zone used for clock times
var IST = time.FixedZone("IST", 5*60*60+30*60)

// CurrencyOptions tune IndianCurrency. The zero value formats whole rupees
// and switches to crores above one crore.
type CurrencyOptions struct {
	ShowDecimals bool
	// SkipCrores keeps amounts above one crore in lakhs
	SkipCrores bool
	// Compact gives ₹1.2Cr / ₹3.4L instead of ₹1.20 Cr / ₹3.40 L
	Compact bool
}

// IndianCurrency formats a rupee amount
func IndianCurrency(amount float64, opts CurrencyOptions) string {
	if amount == 0 {
		return "₹0"
	}

	if !opts.SkipCrores && amount >= crore {
		return "₹" + scaled(amount/crore, "Cr", opts.Compact)
	}
	if amount >= lakh {
		return "₹" + scaled(amount/lakh, "L", opts.Compact)
	}
	return "₹" + IndianNumber(amount, opts.ShowDecimals)
}

func scaled(v float64, unit string, compact bool) string {
	if compact {
		places := 1
		if v >= 100 {
			places = 0
		}
		return strconv.FormatFloat(v, 'f', places, 64) + unit
	}
	return IndianNumber(v, true) + " " + unit
}

// IndianNumber groups digits as 12,34,56,789. Without decimals the value is
// rounded half up; with decimals two places are kept.
func IndianNumber(n float64, showDecimals bool) string {
	if n == 0 {
		return "0"
	}

	negative := n < 0
	abs := math.Abs(n)

	var formatted string
	if showDecimals {
		formatted = strconv.FormatFloat(abs, 'f', 2, 64)
	} else {
		formatted = strconv.FormatFloat(math.Floor(abs+0.5), 'f', 0, 64)
	}

	intPart, fracPart, hasFrac := strings.Cut(formatted, ".")
	result := groupIndian(intPart)
	if hasFrac {
		result += "." + fracPart
	}
	if negative {
		return "-" + result
	}
	return result
}

// groupIndian inserts a comma after the last three digits and then after
// every two
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return strings.Join(append(groups, tail), ",")
}

// LocaleNumber renders a plain number for table cells: Indian grouping with
// up to three fraction digits and no trailing zeros
func LocaleNumber(n float64) string {
	negative := n < 0
	formatted := strconv.FormatFloat(math.Abs(n), 'f', 3, 64)
	intPart, fracPart, _ := strings.Cut(formatted, ".")
	fracPart = strings.TrimRight(fracPart, "0")

	result := groupIndian(intPart)
	if fracPart != "" {
		result += "." + fracPart
	}
	if negative && result != "0" {
		return "-" + result
	}
	return result
}

// Percentage formats v with the given decimal places and a % suffix
func Percentage(v float64, places int) string {
	if v == 0 {
		return "0%"
	}
	return strconv.FormatFloat(v, 'f', places, 64) + "%"
}

// SubscriptionTimes formats a subscription multiple, e.g. 0.45x, 2.5x, 150x
func SubscriptionTimes(times float64) string {
	switch {
	case times == 0:
		return "0x"
	case times < 1:
		return strconv.FormatFloat(times, 'f', 2, 64) + "x"
	case times < 10:
		return strconv.FormatFloat(times, 'f', 1, 64) + "x"
	default:
		return strconv.FormatFloat(math.Floor(times+0.5), 'f', 0, 64) + "x"
	}
}

// ParseDate reads a YYYY-MM-DD milestone date as midnight IST
func ParseDate(date string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", date, IST)
}

// IndianDate formats t as DD-Mon-YYYY
func IndianDate(t time.Time) string {
	return t.Format("02-Jan-2006")
}

// IndianDateString formats a YYYY-MM-DD date, returning the input unchanged
// when it does not parse
func IndianDateString(date string) string {
	t, err := ParseDate(date)
	if err != nil {
		return date
	}
	return IndianDate(t)
}

// IndianTime formats the IST wall clock as hh:mm AM
func IndianTime(t time.Time) string {
	return t.In(IST).Format("03:04 PM")
}

func IndianDateTime(t time.Time) string {
	return IndianDate(t.In(IST)) + " " + IndianTime(t)
}

// Countdown describes the time left until target
func Countdown(target, now time.Time) string {
	diff := target.Sub(now)
	if diff <= 0 {
		return "Closed"
	}

	days := int(diff / (24 * time.Hour))
	hours := int(diff % (24 * time.Hour) / time.Hour)
	minutes := int(diff % time.Hour / time.Minute)

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// GMPColorClass buckets a GMP percentage for styling
func GMPColorClass(gmpPercent float64) string {
	switch {
	case gmpPercent >= 50:
		return "gmp-very-high"
	case gmpPercent >= 30:
		return "gmp-high"
	case gmpPercent >= 15:
		return "gmp-medium"
	default:
		return "gmp-low"
	}
}

// LotSize renders "N @ ₹P"
func LotSize(shares int, pricePerShare float64) string {
	return IndianNumber(float64(shares), false) + " @ ₹" + IndianNumber(pricePerShare, false)
}

// EstimatedProfit is the grey-market gain on one lot, in compact rupees
func EstimatedProfit(lotSize int, ipoPrice, gmpPrice float64) string {
	investment := float64(lotSize) * ipoPrice
	expected := float64(lotSize) * (ipoPrice + gmpPrice)
	return IndianCurrency(expected-investment, CurrencyOptions{Compact: true})
}
