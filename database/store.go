package database

import (
	"context"

	"github.com/fenilmodi00/ipo-dalal/models"
	"github.com/google/uuid"
)

// IPOFilter narrows ListIPOs. Empty slices match everything.
type IPOFilter struct {
	Statuses []string
	Types    []string
}

// Store is the persistence contract shared by the Postgres and in-memory
// backends. Single-row reads return nil, nil when nothing matches.
type Store interface {
	GetIPO(ctx context.Context, id uuid.UUID) (*models.IPO, error)
	GetIPOByCompany(ctx context.Context, companyName string) (*models.IPO, error)
	InsertIPO(ctx context.Context, ipo *models.IPO) error
	UpdateIPO(ctx context.Context, ipo *models.IPO) error
	ListIPOs(ctx context.Context, filter IPOFilter) ([]models.IPO, error)

	InsertGMPHistory(ctx context.Context, row *models.GMPHistory) error
	ListGMPHistory(ctx context.Context, ipoID uuid.UUID) ([]models.GMPHistory, error)
	GetCurrentGMP(ctx context.Context, ipoID uuid.UUID) (*models.CurrentGMP, error)
	// SaveCurrentGMP overwrites the IPO's current row or inserts one. row.ID
	// is set to the id of the stored row.
	SaveCurrentGMP(ctx context.Context, row *models.CurrentGMP) (created bool, err error)

	InsertSubscriptionHistory(ctx context.Context, row *models.SubscriptionHistory) error
	ListSubscriptionHistory(ctx context.Context, ipoID uuid.UUID) ([]models.SubscriptionHistory, error)
	GetCurrentSubscription(ctx context.Context, ipoID uuid.UUID) (*models.CurrentSubscription, error)
	SaveCurrentSubscription(ctx context.Context, row *models.CurrentSubscription) (created bool, err error)

	InsertSystemLog(ctx context.Context, entry *models.SystemLog) error
	// ListSystemLogs returns the newest entries first. An empty action matches all.
	ListSystemLogs(ctx context.Context, limit int, action string) ([]models.SystemLog, error)

	// ClearIPOData removes IPOs and both current tables. History survives.
	ClearIPOData(ctx context.Context) error
	// ClearAll removes every IPO-related table. System logs survive.
	ClearAll(ctx context.Context) error

	// RunInTx runs fn against a transactional view of the store. Nothing fn
	// wrote is kept when it returns an error.
	RunInTx(ctx context.Context, fn func(Store) error) error
	Ping(ctx context.Context) error
}
