// Package presentation turns enriched IPO records into the flat display
// shape used by dashboard tables, sorts them and builds table view models
// and exports.
package presentation

import (
	"time"

	"github.com/fenilmodi00/ipo-dalal/models"
)

type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type CategoryPair struct {
	Retail float64 `json:"retail"`
	SHNI   float64 `json:"shni"`
}

type DisplayGMP struct {
	Percentage      float64      `json:"percentage"`
	Price           float64      `json:"price"`
	EstListingPrice float64      `json:"estListingPrice"`
	EstProfit       CategoryPair `json:"estProfit"`
}

type DisplaySubscription struct {
	QIB               float64  `json:"qib"`
	BHNI              float64  `json:"bhni"`
	SHNI              float64  `json:"shni"`
	Retail            float64  `json:"retail"`
	Employee          float64  `json:"employee"`
	Shareholder       float64  `json:"shareholder"`
	Total             float64  `json:"total"`
	TotalAmount       float64  `json:"totalAmount"`
	TotalBidAmount    *float64 `json:"totalBidAmount,omitempty"`
	TotalApplications *int64   `json:"totalApplications,omitempty"`
}

// DisplayDates holds the milestones as YYYY-MM-DD, which sort correctly as
// strings
type DisplayDates struct {
	Opening   string `json:"opening"`
	Closing   string `json:"closing"`
	Allotment string `json:"allotment"`
	Refund    string `json:"refund"`
	Listing   string `json:"listing"`
}

// DisplayIPO is the flat record rendered by the dashboard tables
type DisplayIPO struct {
	ID           string              `json:"id"`
	Type         string              `json:"type"`
	Company      string              `json:"company"`
	Symbol       *string             `json:"symbol,omitempty"`
	IPOSize      float64             `json:"ipoSize"`
	Lot          int                 `json:"lot"`
	Price        PriceRange          `json:"price"`
	Amount       CategoryPair        `json:"amount"`
	GMP          DisplayGMP          `json:"gmp"`
	Subscription DisplaySubscription `json:"subscription"`
	Dates        DisplayDates        `json:"dates"`
	Status       string              `json:"status"`
	// KostakRates carries the sauda rates, as the dashboard always has
	KostakRates    CategoryPair  `json:"kostakRates"`
	SubjectToSauda CategoryPair  `json:"subjectToSauda"`
	Exchange       string        `json:"exchange"`
	Sector         string        `json:"sector"`
	Industry       string        `json:"industry"`
	LeadManagers   []string      `json:"leadManagers"`
	ListingPrice   *float64      `json:"listingPrice,omitempty"`
	ActualProfit   *CategoryPair `json:"actualProfit,omitempty"`
	ListingGains   *float64      `json:"listingGains,omitempty"`
	ListingDate    string        `json:"listingDate,omitempty"`
	LastUpdated    time.Time     `json:"lastUpdated"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// ToDisplay flattens one enriched IPO. Missing snapshots show as zeros and
// the estimated listing price falls back to the issue price.
func ToDisplay(e models.EnrichedIPO) DisplayIPO {
	d := DisplayIPO{
		ID:           e.ID.String(),
		Type:         e.Type,
		Company:      e.CompanyName,
		Symbol:       e.Symbol,
		IPOSize:      e.IPOSizeCr,
		Lot:          e.LotSize,
		Price:        PriceRange{Min: e.PriceMin, Max: e.PriceMax},
		Amount:       CategoryPair{Retail: e.RetailAmount, SHNI: e.SHNIAmount},
		GMP:          DisplayGMP{EstListingPrice: e.PricePerShare},
		Status:       e.Status,
		Exchange:     e.Exchange,
		Sector:       e.Sector,
		Industry:     e.Industry,
		LeadManagers: e.LeadManagers,
		ListingPrice: e.ListingPrice,
		ListingGains: e.ListingGains,
		ListingDate:  e.ListingDate,
		LastUpdated:  e.LastModified,
		CreatedAt:    e.CreatedAt,
		Dates: DisplayDates{
			Opening:   e.OpeningDate,
			Closing:   e.ClosingDate,
			Allotment: e.AllotmentDate,
			Refund:    e.RefundDate,
			Listing:   e.ListingDate,
		},
	}
	if d.LeadManagers == nil {
		d.LeadManagers = []string{}
	}

	if g := e.CurrentGMP; g != nil {
		d.GMP.Percentage = g.GMPPercent
		d.GMP.Price = g.GMPPrice
		if g.EstListingPrice != 0 {
			d.GMP.EstListingPrice = g.EstListingPrice
		}
		d.GMP.EstProfit = CategoryPair{Retail: g.EstRetailProfit, SHNI: deref(g.EstSHNIProfit)}

		sauda := CategoryPair{Retail: g.RetailSaudaRates, SHNI: deref(g.SHNISaudaRates)}
		d.KostakRates = sauda
		d.SubjectToSauda = sauda
	}

	if s := e.CurrentSubscription; s != nil {
		d.Subscription = DisplaySubscription{
			QIB:               s.QIBSub,
			BHNI:              s.BHNISub,
			SHNI:              s.SHNISub,
			Retail:            s.RetailSub,
			Employee:          s.EmpSub,
			Shareholder:       s.SHSub,
			Total:             s.TotalSub,
			TotalAmount:       s.TotalAmountApplied,
			TotalBidAmount:    s.TotalBidAmount,
			TotalApplications: s.TotalApplications,
		}
	}

	if e.ActualProfitRetail != nil {
		d.ActualProfit = &CategoryPair{Retail: *e.ActualProfitRetail, SHNI: deref(e.ActualProfitSHNI)}
	}
	return d
}

// ToDisplayList maps ToDisplay over records, keeping order
func ToDisplayList(records []models.EnrichedIPO) []DisplayIPO {
	out := make([]DisplayIPO, 0, len(records))
	for _, r := range records {
		out = append(out, ToDisplay(r))
	}
	return out
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// ChartPoint is one point of a history chart
type ChartPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
	Label string  `json:"label"`
}
