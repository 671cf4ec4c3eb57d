package models

import (
	"time"

	"github.com/google/uuid"
)

// Listing-board categories
const (
	TypeMainline = "Mainline"
	TypeBSESME   = "BSE SME"
	TypeNSESME   = "NSE SME"
)

// IPO lifecycle states
const (
	StatusUpcoming = "upcoming"
	StatusOpen     = "open"
	StatusClosed   = "closed"
	StatusListed   = "listed"
)

// Exchanges an IPO can list on
const (
	ExchangeNSE  = "NSE"
	ExchangeBSE  = "BSE"
	ExchangeBoth = "Both"
)

// DateLayout is the ISO layout milestone dates are stored in
const DateLayout = "2006-01-02"

type IPO struct {
	ID          uuid.UUID `json:"id"`
	CompanyName string    `json:"company_name"`
	Type        string    `json:"type"`
	Symbol      *string   `json:"symbol,omitempty"`
	IPOSizeCr   float64   `json:"ipo_size_cr"`

	// Pricing
	PricePerShare float64 `json:"price_per_share"`
	PriceMin      float64 `json:"price_min"`
	PriceMax      float64 `json:"price_max"`

	// Lots and the investment they translate to
	LotSize          int     `json:"lot_size"`
	RetailMinLotSize int     `json:"retail_min_lot_size"`
	SHNIMinLotSize   int     `json:"shni_min_lot_size"`
	BHNIMinLotSize   int     `json:"bhni_min_lot_size"`
	RetailAmount     float64 `json:"retail_amount"`
	SHNIAmount       float64 `json:"shni_amount"`

	// Milestones, YYYY-MM-DD
	OpeningDate   string `json:"opening_date"`
	ClosingDate   string `json:"closing_date"`
	AllotmentDate string `json:"allotment_date"`
	RefundDate    string `json:"refund_date"`
	ListingDate   string `json:"listing_date"`

	Status string `json:"status"`
	// StatusAuto is set when Status was derived from the milestone dates and
	// may be refreshed as days pass
	StatusAuto bool `json:"status_auto"`

	Exchange     string   `json:"exchange"`
	Sector       string   `json:"sector"`
	Industry     string   `json:"industry"`
	LeadManagers []string `json:"lead_managers"`

	// Populated once the IPO lists
	ListingPrice       *float64 `json:"listing_price,omitempty"`
	ListingGains       *float64 `json:"listing_gains,omitempty"`
	ActualProfitRetail *float64 `json:"actual_profit_retail,omitempty"`
	ActualProfitSHNI   *float64 `json:"actual_profit_shni,omitempty"`

	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	LastModified time.Time `json:"last_modified"`
}

// IPOInput is the full description accepted by create-or-update, keyed by
// company name
type IPOInput struct {
	CompanyName      string   `json:"company_name" validate:"required,max=255"`
	Type             string   `json:"type" validate:"required,oneof='BSE SME' 'NSE SME' Mainline"`
	IPOSizeCr        float64  `json:"ipo_size_cr" validate:"gte=0"`
	PricePerShare    float64  `json:"price_per_share" validate:"gt=0"`
	PriceMin         float64  `json:"price_min" validate:"gte=0"`
	PriceMax         float64  `json:"price_max" validate:"gtefield=PriceMin"`
	LotSize          int      `json:"lot_size" validate:"gt=0"`
	RetailMinLotSize int      `json:"retail_min_lot_size" validate:"gte=0"`
	SHNIMinLotSize   int      `json:"shni_min_lot_size" validate:"gte=0"`
	BHNIMinLotSize   int      `json:"bhni_min_lot_size" validate:"gte=0"`
	OpeningDate      string   `json:"opening_date" validate:"required,datetime=2006-01-02"`
	ClosingDate      string   `json:"closing_date" validate:"required,datetime=2006-01-02"`
	AllotmentDate    string   `json:"allotment_date" validate:"required,datetime=2006-01-02"`
	RefundDate       string   `json:"refund_date" validate:"required,datetime=2006-01-02"`
	ListingDate      string   `json:"listing_date" validate:"required,datetime=2006-01-02"`
	Exchange         string   `json:"exchange" validate:"required,oneof=NSE BSE Both"`
	Sector           string   `json:"sector"`
	Industry         string   `json:"industry"`
	LeadManagers     []string `json:"lead_managers"`
	Symbol           *string  `json:"symbol,omitempty" validate:"omitempty,max=50"`
	Status           *string  `json:"status,omitempty" validate:"omitempty,oneof=upcoming open closed listed"`
}

// ListingDetails carries the post-listing outcome of an IPO
type ListingDetails struct {
	ListingPrice       float64 `json:"listing_price" validate:"gt=0"`
	ListingGains       float64 `json:"listing_gains"`
	ActualProfitRetail float64 `json:"actual_profit_retail"`
	ActualProfitSHNI   float64 `json:"actual_profit_shni"`
}

// UpsertResult reports what create-or-update did
type UpsertResult struct {
	Success bool      `json:"success"`
	IPOID   uuid.UUID `json:"ipo_id"`
	Action  string    `json:"action"`
}

// Upsert actions
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
)

// IsSME reports whether the IPO trades on an SME board
func (i *IPO) IsSME() bool {
	return i.Type == TypeBSESME || i.Type == TypeNSESME
}
