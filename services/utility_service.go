package services

import (
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-dalal/models"
	"github.com/fenilmodi00/ipo-dalal/shared"
	"github.com/shopspring/decimal"
)

var (
	nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespaceRegex      = regexp.MustCompile(`\s+`)
	currencySymbolRegex  = regexp.MustCompile(`[₹$€£¥]`)
	signedNumberRegex    = regexp.MustCompile(`[-+]?\d+\.?\d*`)
)

const batchIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// UtilityService provides text normalization, number parsing, status
// derivation and the money arithmetic shared by the mutation services
type UtilityService struct {
	serviceMetrics *shared.ServiceMetrics
}

// NewUtilityService creates a new utility service instance
func NewUtilityService() *UtilityService {
	return &UtilityService{
		serviceMetrics: shared.NewServiceMetrics("Utility_Service"),
	}
}

// NormalizeIPOName normalizes an IPO name for matching
// Removes common suffixes, special characters, converts to lowercase, and trims whitespace
func (s *UtilityService) NormalizeIPOName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))

	suffixes := []string{" ipo", " ltd.", " ltd", " limited", " pvt.", " pvt", " private"}
	for _, suffix := range suffixes {
		normalized = strings.TrimSuffix(normalized, suffix)
	}

	normalized = nonAlphanumericRegex.ReplaceAllString(normalized, "")
	normalized = whitespaceRegex.ReplaceAllString(normalized, " ")

	return strings.TrimSpace(normalized)
}

// NormalizeTextContent cleans and standardizes text content for consistent processing
func (s *UtilityService) NormalizeTextContent(text string) string {
	if text == "" {
		return ""
	}

	text = whitespaceRegex.ReplaceAllString(strings.TrimSpace(text), " ")

	text = strings.ReplaceAll(text, "₹", "")
	text = strings.ReplaceAll(text, "Rs.", "")
	text = strings.ReplaceAll(text, "Rs ", "")

	return strings.TrimSpace(text)
}

// ParseSignedNumber extracts the first signed number from a feed cell such
// as "₹1,250", "-3.5%" or "+12". Placeholders yield nil.
func (s *UtilityService) ParseSignedNumber(text string) *float64 {
	text = strings.TrimSpace(text)
	if s.IsNotAvailable(text) {
		return nil
	}

	text = currencySymbolRegex.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, ",", "")
	text = strings.ReplaceAll(text, " ", "")
	text = strings.ReplaceAll(text, "%", "")

	match := signedNumberRegex.FindString(text)
	if match == "" {
		return nil
	}

	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil
	}
	return &value
}

// IsNotAvailable checks if a value indicates "not available"
// Detects placeholders like "TBA", "To Be Announced", "N/A", etc.
func (s *UtilityService) IsNotAvailable(text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))

	notAvailableValues := []string{
		"", "-", "--", "tba", "tbd", "n/a", "na", "nil", "null",
		"to be announced", "not available", "awaited", "pending",
	}

	for _, na := range notAvailableValues {
		if text == na {
			return true
		}
	}
	return false
}

// CalculateIPOStatus derives the lifecycle state of an IPO from its
// milestone dates. All dates are YYYY-MM-DD, so they compare lexically:
//   - today >= listing: listed
//   - today > closing: closed
//   - today >= opening: open
//   - otherwise upcoming
func (s *UtilityService) CalculateIPOStatus(openingDate, closingDate, listingDate, today string) string {
	switch {
	case today >= listingDate:
		return models.StatusListed
	case today > closingDate:
		return models.StatusClosed
	case today >= openingDate:
		return models.StatusOpen
	default:
		return models.StatusUpcoming
	}
}

// Today returns the calendar date at t in loc, formatted YYYY-MM-DD
func (s *UtilityService) Today(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(models.DateLayout)
}

// GenerateBatchID builds "<source>_<unix ms>_<9 base36 chars>"
func (s *UtilityService) GenerateBatchID(source string, now time.Time, rng *rand.Rand) string {
	suffix := make([]byte, 9)
	for i := range suffix {
		if rng != nil {
			suffix[i] = batchIDAlphabet[rng.Intn(len(batchIDAlphabet))]
		} else {
			suffix[i] = batchIDAlphabet[rand.Intn(len(batchIDAlphabet))]
		}
	}
	return strings.ToLower(source) + "_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + string(suffix)
}

// PremiumFromPercent converts a GMP percentage into rupees per share,
// rounded to paise
func (s *UtilityService) PremiumFromPercent(gmpPercent, pricePerShare float64) float64 {
	return decimal.NewFromFloat(gmpPercent).
		Div(decimal.NewFromInt(100)).
		Mul(decimal.NewFromFloat(pricePerShare)).
		Round(2).
		InexactFloat64()
}

// Add returns a+b rounded to paise
func (s *UtilityService) Add(a, b float64) float64 {
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).Round(2).InexactFloat64()
}

// Amount returns price × quantity rounded to paise
func (s *UtilityService) Amount(price float64, quantity int) float64 {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(quantity))).Round(2).InexactFloat64()
}

// Mean returns the arithmetic mean of values, or 0 for none
func (s *UtilityService) Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	return sum.Div(decimal.NewFromInt(int64(len(values)))).InexactFloat64()
}

// Scale multiplies v by factor without rounding
func (s *UtilityService) Scale(v, factor float64) float64 {
	return decimal.NewFromFloat(v).Mul(decimal.NewFromFloat(factor)).InexactFloat64()
}

// GetServiceMetrics returns the current service metrics
func (s *UtilityService) GetServiceMetrics() *shared.ServiceMetrics {
	return s.serviceMetrics
}
