package models

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionRecord is one observation submitted in a subscription batch.
// Category multiples are validated as non-negative by the service.
type SubscriptionRecord struct {
	IPOID              uuid.UUID `json:"ipo_id" validate:"required"`
	QIBSub             float64   `json:"qib_sub"`
	BHNISub            float64   `json:"bhni_sub"`
	SHNISub            float64   `json:"shni_sub"`
	RetailSub          float64   `json:"retail_sub"`
	EmpSub             float64   `json:"emp_sub"`
	SHSub              float64   `json:"sh_sub"`
	TotalAmountApplied float64   `json:"total_amount_applied" validate:"gte=0"`
	TotalBidAmount     *float64  `json:"total_bid_amount,omitempty" validate:"omitempty,gte=0"`
	TotalApplications  *int64    `json:"total_applications,omitempty" validate:"omitempty,gte=0"`
}

// Categories returns the six category multiples in a fixed order
func (r SubscriptionRecord) Categories() []float64 {
	return []float64{r.QIBSub, r.BHNISub, r.SHNISub, r.RetailSub, r.EmpSub, r.SHSub}
}

// SubscriptionHistory is an immutable subscription observation
type SubscriptionHistory struct {
	ID                 uuid.UUID `json:"id"`
	IPOID              uuid.UUID `json:"ipo_id"`
	QIBSub             float64   `json:"qib_sub"`
	BHNISub            float64   `json:"bhni_sub"`
	SHNISub            float64   `json:"shni_sub"`
	RetailSub          float64   `json:"retail_sub"`
	EmpSub             float64   `json:"emp_sub"`
	SHSub              float64   `json:"sh_sub"`
	TotalSub           float64   `json:"total_sub"`
	TotalAmountApplied float64   `json:"total_amount_applied"`
	TotalBidAmount     *float64  `json:"total_bid_amount,omitempty"`
	TotalApplications  *int64    `json:"total_applications,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
	Source             string    `json:"source"`
	ScrapeBatchID      string    `json:"scrape_batch_id"`
}

// CurrentSubscription is the latest subscription snapshot of an IPO, one row per IPO
type CurrentSubscription struct {
	ID                 uuid.UUID `json:"id"`
	IPOID              uuid.UUID `json:"ipo_id"`
	QIBSub             float64   `json:"qib_sub"`
	BHNISub            float64   `json:"bhni_sub"`
	SHNISub            float64   `json:"shni_sub"`
	RetailSub          float64   `json:"retail_sub"`
	EmpSub             float64   `json:"emp_sub"`
	SHSub              float64   `json:"sh_sub"`
	TotalSub           float64   `json:"total_sub"`
	TotalAmountApplied float64   `json:"total_amount_applied"`
	TotalBidAmount     *float64  `json:"total_bid_amount,omitempty"`
	TotalApplications  *int64    `json:"total_applications,omitempty"`
	Source             string    `json:"source"`
	LastUpdated        time.Time `json:"last_updated"`
}
