package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-dalal/models"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// PostgresStore implements Store on lib/pq
type PostgresStore struct {
	db         *sql.DB
	q          queryer
	inTx       bool
	maxRetries int
}

// NewPostgresStore wraps an open connection pool. maxRetries bounds how often
// a transaction is replayed after a conflict with a concurrent one.
func NewPostgresStore(db *sql.DB, maxRetries int) *PostgresStore {
	return &PostgresStore{db: db, q: db, maxRetries: maxRetries}
}

const ipoColumns = `id, company_name, type, symbol, ipo_size_cr, price_per_share, price_min, price_max,
	lot_size, retail_min_lot_size, shni_min_lot_size, bhni_min_lot_size, retail_amount, shni_amount,
	opening_date, closing_date, allotment_date, refund_date, listing_date, status, status_auto,
	exchange, sector, industry, lead_managers, listing_price, listing_gains,
	actual_profit_retail, actual_profit_shni, created_by, created_at, last_modified`

func scanIPO(row rowScanner) (*models.IPO, error) {
	var ipo models.IPO
	var opening, closing, allotment, refund, listing time.Time
	var leadManagers pq.StringArray

	err := row.Scan(
		&ipo.ID, &ipo.CompanyName, &ipo.Type, &ipo.Symbol, &ipo.IPOSizeCr,
		&ipo.PricePerShare, &ipo.PriceMin, &ipo.PriceMax,
		&ipo.LotSize, &ipo.RetailMinLotSize, &ipo.SHNIMinLotSize, &ipo.BHNIMinLotSize,
		&ipo.RetailAmount, &ipo.SHNIAmount,
		&opening, &closing, &allotment, &refund, &listing,
		&ipo.Status, &ipo.StatusAuto,
		&ipo.Exchange, &ipo.Sector, &ipo.Industry, &leadManagers,
		&ipo.ListingPrice, &ipo.ListingGains, &ipo.ActualProfitRetail, &ipo.ActualProfitSHNI,
		&ipo.CreatedBy, &ipo.CreatedAt, &ipo.LastModified,
	)
	if err != nil {
		return nil, err
	}

	ipo.OpeningDate = opening.Format(models.DateLayout)
	ipo.ClosingDate = closing.Format(models.DateLayout)
	ipo.AllotmentDate = allotment.Format(models.DateLayout)
	ipo.RefundDate = refund.Format(models.DateLayout)
	ipo.ListingDate = listing.Format(models.DateLayout)
	ipo.LeadManagers = []string(leadManagers)
	if ipo.LeadManagers == nil {
		ipo.LeadManagers = []string{}
	}
	return &ipo, nil
}

func (s *PostgresStore) GetIPO(ctx context.Context, id uuid.UUID) (*models.IPO, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+ipoColumns+` FROM ipos WHERE id = $1`, id)
	ipo, err := scanIPO(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get IPO %s: %w", id, err)
	}
	return ipo, nil
}

func (s *PostgresStore) GetIPOByCompany(ctx context.Context, companyName string) (*models.IPO, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+ipoColumns+` FROM ipos WHERE company_name = $1`, companyName)
	ipo, err := scanIPO(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get IPO by company %q: %w", companyName, err)
	}
	return ipo, nil
}

func ipoArgs(ipo *models.IPO) []interface{} {
	return []interface{}{
		ipo.ID, ipo.CompanyName, ipo.Type, ipo.Symbol, ipo.IPOSizeCr,
		ipo.PricePerShare, ipo.PriceMin, ipo.PriceMax,
		ipo.LotSize, ipo.RetailMinLotSize, ipo.SHNIMinLotSize, ipo.BHNIMinLotSize,
		ipo.RetailAmount, ipo.SHNIAmount,
		ipo.OpeningDate, ipo.ClosingDate, ipo.AllotmentDate, ipo.RefundDate, ipo.ListingDate,
		ipo.Status, ipo.StatusAuto,
		ipo.Exchange, ipo.Sector, ipo.Industry, pq.Array(ipo.LeadManagers),
		ipo.ListingPrice, ipo.ListingGains, ipo.ActualProfitRetail, ipo.ActualProfitSHNI,
		ipo.CreatedBy, ipo.CreatedAt, ipo.LastModified,
	}
}

func (s *PostgresStore) InsertIPO(ctx context.Context, ipo *models.IPO) error {
	query := `INSERT INTO ipos (` + ipoColumns + `) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32)`

	if _, err := s.q.ExecContext(ctx, query, ipoArgs(ipo)...); err != nil {
		return fmt.Errorf("failed to insert IPO %q: %w", ipo.CompanyName, err)
	}
	return nil
}

func (s *PostgresStore) UpdateIPO(ctx context.Context, ipo *models.IPO) error {
	query := `
		UPDATE ipos SET
			company_name = $2, type = $3, symbol = $4, ipo_size_cr = $5,
			price_per_share = $6, price_min = $7, price_max = $8,
			lot_size = $9, retail_min_lot_size = $10, shni_min_lot_size = $11, bhni_min_lot_size = $12,
			retail_amount = $13, shni_amount = $14,
			opening_date = $15, closing_date = $16, allotment_date = $17, refund_date = $18, listing_date = $19,
			status = $20, status_auto = $21,
			exchange = $22, sector = $23, industry = $24, lead_managers = $25,
			listing_price = $26, listing_gains = $27, actual_profit_retail = $28, actual_profit_shni = $29,
			created_by = $30, created_at = $31, last_modified = $32
		WHERE id = $1`

	result, err := s.q.ExecContext(ctx, query, ipoArgs(ipo)...)
	if err != nil {
		return fmt.Errorf("failed to update IPO %s: %w", ipo.ID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update IPO %s: %w", ipo.ID, sql.ErrNoRows)
	}
	return nil
}

func (s *PostgresStore) ListIPOs(ctx context.Context, filter IPOFilter) ([]models.IPO, error) {
	var conditions []string
	var args []interface{}

	if len(filter.Statuses) > 0 {
		args = append(args, pq.Array(filter.Statuses))
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if len(filter.Types) > 0 {
		args = append(args, pq.Array(filter.Types))
		conditions = append(conditions, fmt.Sprintf("type = ANY($%d)", len(args)))
	}

	query := `SELECT ` + ipoColumns + ` FROM ipos`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at ASC, company_name ASC"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list IPOs: %w", err)
	}
	defer rows.Close()

	ipos := []models.IPO{}
	for rows.Next() {
		ipo, err := scanIPO(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan IPO: %w", err)
		}
		ipos = append(ipos, *ipo)
	}
	return ipos, rows.Err()
}

func (s *PostgresStore) InsertGMPHistory(ctx context.Context, row *models.GMPHistory) error {
	query := `
		INSERT INTO gmp_history (
			id, ipo_id, gmp_percent, gmp_price, kostak_rates, retail_sauda_rates,
			shni_sauda_rates, observed_at, observed_date, source, scrape_batch_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.q.ExecContext(ctx, query,
		row.ID, row.IPOID, row.GMPPercent, row.GMPPrice, row.KostakRates, row.RetailSaudaRates,
		row.SHNISaudaRates, row.Timestamp, row.Date, row.Source, row.ScrapeBatchID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert GMP history for IPO %s: %w", row.IPOID, err)
	}
	return nil
}

func (s *PostgresStore) ListGMPHistory(ctx context.Context, ipoID uuid.UUID) ([]models.GMPHistory, error) {
	query := `
		SELECT id, ipo_id, gmp_percent, gmp_price, kostak_rates, retail_sauda_rates,
			shni_sauda_rates, observed_at, observed_date, source, scrape_batch_id
		FROM gmp_history
		WHERE ipo_id = $1
		ORDER BY observed_at ASC`

	rows, err := s.q.QueryContext(ctx, query, ipoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list GMP history: %w", err)
	}
	defer rows.Close()

	history := []models.GMPHistory{}
	for rows.Next() {
		var h models.GMPHistory
		var date time.Time
		if err := rows.Scan(
			&h.ID, &h.IPOID, &h.GMPPercent, &h.GMPPrice, &h.KostakRates, &h.RetailSaudaRates,
			&h.SHNISaudaRates, &h.Timestamp, &date, &h.Source, &h.ScrapeBatchID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan GMP history: %w", err)
		}
		h.Date = date.Format(models.DateLayout)
		history = append(history, h)
	}
	return history, rows.Err()
}

func (s *PostgresStore) GetCurrentGMP(ctx context.Context, ipoID uuid.UUID) (*models.CurrentGMP, error) {
	query := `
		SELECT id, ipo_id, gmp_percent, gmp_price, kostak_rates, retail_sauda_rates, shni_sauda_rates,
			est_listing_price, est_retail_profit, est_shni_profit, data_freshness, source, last_updated
		FROM current_gmp
		WHERE ipo_id = $1`

	var c models.CurrentGMP
	err := s.q.QueryRowContext(ctx, query, ipoID).Scan(
		&c.ID, &c.IPOID, &c.GMPPercent, &c.GMPPrice, &c.KostakRates, &c.RetailSaudaRates, &c.SHNISaudaRates,
		&c.EstListingPrice, &c.EstRetailProfit, &c.EstSHNIProfit, &c.DataFreshness, &c.Source, &c.LastUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current GMP for IPO %s: %w", ipoID, err)
	}
	return &c, nil
}

func (s *PostgresStore) SaveCurrentGMP(ctx context.Context, row *models.CurrentGMP) (bool, error) {
	query := `
		INSERT INTO current_gmp (
			id, ipo_id, gmp_percent, gmp_price, kostak_rates, retail_sauda_rates, shni_sauda_rates,
			est_listing_price, est_retail_profit, est_shni_profit, data_freshness, source, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (ipo_id) DO UPDATE SET
			gmp_percent = EXCLUDED.gmp_percent,
			gmp_price = EXCLUDED.gmp_price,
			kostak_rates = EXCLUDED.kostak_rates,
			retail_sauda_rates = EXCLUDED.retail_sauda_rates,
			shni_sauda_rates = EXCLUDED.shni_sauda_rates,
			est_listing_price = EXCLUDED.est_listing_price,
			est_retail_profit = EXCLUDED.est_retail_profit,
			est_shni_profit = EXCLUDED.est_shni_profit,
			data_freshness = EXCLUDED.data_freshness,
			source = EXCLUDED.source,
			last_updated = EXCLUDED.last_updated
		RETURNING id, (xmax = 0) AS inserted`

	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}

	var inserted bool
	err := s.q.QueryRowContext(ctx, query,
		row.ID, row.IPOID, row.GMPPercent, row.GMPPrice, row.KostakRates, row.RetailSaudaRates, row.SHNISaudaRates,
		row.EstListingPrice, row.EstRetailProfit, row.EstSHNIProfit, row.DataFreshness, row.Source, row.LastUpdated,
	).Scan(&row.ID, &inserted)
	if err != nil {
		return false, fmt.Errorf("failed to save current GMP for IPO %s: %w", row.IPOID, err)
	}
	return inserted, nil
}

func (s *PostgresStore) InsertSubscriptionHistory(ctx context.Context, row *models.SubscriptionHistory) error {
	query := `
		INSERT INTO subscription_history (
			id, ipo_id, qib_sub, bhni_sub, shni_sub, retail_sub, emp_sub, sh_sub, total_sub,
			total_amount_applied, total_bid_amount, total_applications, observed_at, source, scrape_batch_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := s.q.ExecContext(ctx, query,
		row.ID, row.IPOID, row.QIBSub, row.BHNISub, row.SHNISub, row.RetailSub, row.EmpSub, row.SHSub, row.TotalSub,
		row.TotalAmountApplied, row.TotalBidAmount, row.TotalApplications, row.Timestamp, row.Source, row.ScrapeBatchID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert subscription history for IPO %s: %w", row.IPOID, err)
	}
	return nil
}

func (s *PostgresStore) ListSubscriptionHistory(ctx context.Context, ipoID uuid.UUID) ([]models.SubscriptionHistory, error) {
	query := `
		SELECT id, ipo_id, qib_sub, bhni_sub, shni_sub, retail_sub, emp_sub, sh_sub, total_sub,
			total_amount_applied, total_bid_amount, total_applications, observed_at, source, scrape_batch_id
		FROM subscription_history
		WHERE ipo_id = $1
		ORDER BY observed_at ASC`

	rows, err := s.q.QueryContext(ctx, query, ipoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscription history: %w", err)
	}
	defer rows.Close()

	history := []models.SubscriptionHistory{}
	for rows.Next() {
		var h models.SubscriptionHistory
		if err := rows.Scan(
			&h.ID, &h.IPOID, &h.QIBSub, &h.BHNISub, &h.SHNISub, &h.RetailSub, &h.EmpSub, &h.SHSub, &h.TotalSub,
			&h.TotalAmountApplied, &h.TotalBidAmount, &h.TotalApplications, &h.Timestamp, &h.Source, &h.ScrapeBatchID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan subscription history: %w", err)
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

func (s *PostgresStore) GetCurrentSubscription(ctx context.Context, ipoID uuid.UUID) (*models.CurrentSubscription, error) {
	query := `
		SELECT id, ipo_id, qib_sub, bhni_sub, shni_sub, retail_sub, emp_sub, sh_sub, total_sub,
			total_amount_applied, total_bid_amount, total_applications, source, last_updated
		FROM current_subscription
		WHERE ipo_id = $1`

	var c models.CurrentSubscription
	err := s.q.QueryRowContext(ctx, query, ipoID).Scan(
		&c.ID, &c.IPOID, &c.QIBSub, &c.BHNISub, &c.SHNISub, &c.RetailSub, &c.EmpSub, &c.SHSub, &c.TotalSub,
		&c.TotalAmountApplied, &c.TotalBidAmount, &c.TotalApplications, &c.Source, &c.LastUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current subscription for IPO %s: %w", ipoID, err)
	}
	return &c, nil
}

func (s *PostgresStore) SaveCurrentSubscription(ctx context.Context, row *models.CurrentSubscription) (bool, error) {
	query := `
		INSERT INTO current_subscription (
			id, ipo_id, qib_sub, bhni_sub, shni_sub, retail_sub, emp_sub, sh_sub, total_sub,
			total_amount_applied, total_bid_amount, total_applications, source, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (ipo_id) DO UPDATE SET
			qib_sub = EXCLUDED.qib_sub,
			bhni_sub = EXCLUDED.bhni_sub,
			shni_sub = EXCLUDED.shni_sub,
			retail_sub = EXCLUDED.retail_sub,
			emp_sub = EXCLUDED.emp_sub,
			sh_sub = EXCLUDED.sh_sub,
			total_sub = EXCLUDED.total_sub,
			total_amount_applied = EXCLUDED.total_amount_applied,
			total_bid_amount = EXCLUDED.total_bid_amount,
			total_applications = EXCLUDED.total_applications,
			source = EXCLUDED.source,
			last_updated = EXCLUDED.last_updated
		RETURNING id, (xmax = 0) AS inserted`

	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}

	var inserted bool
	err := s.q.QueryRowContext(ctx, query,
		row.ID, row.IPOID, row.QIBSub, row.BHNISub, row.SHNISub, row.RetailSub, row.EmpSub, row.SHSub, row.TotalSub,
		row.TotalAmountApplied, row.TotalBidAmount, row.TotalApplications, row.Source, row.LastUpdated,
	).Scan(&row.ID, &inserted)
	if err != nil {
		return false, fmt.Errorf("failed to save current subscription for IPO %s: %w", row.IPOID, err)
	}
	return inserted, nil
}

func (s *PostgresStore) InsertSystemLog(ctx context.Context, entry *models.SystemLog) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal log details: %w", err)
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO system_logs (id, action, entity_type, entity_id, details, logged_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.Action, entry.EntityType, entry.EntityID, string(details), entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert system log %q: %w", entry.Action, err)
	}
	return nil
}

func (s *PostgresStore) ListSystemLogs(ctx context.Context, limit int, action string) ([]models.SystemLog, error) {
	query := `SELECT id, action, entity_type, entity_id, details, logged_at FROM system_logs`
	args := []interface{}{}
	if action != "" {
		args = append(args, action)
		query += " WHERE action = $1"
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY logged_at DESC LIMIT $%d", len(args))

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list system logs: %w", err)
	}
	defer rows.Close()

	logs := []models.SystemLog{}
	for rows.Next() {
		var entry models.SystemLog
		var details []byte
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.EntityType, &entry.EntityID, &details, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan system log: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				logrus.WithError(err).WithField("log_id", entry.ID).Warn("Failed to decode system log details")
			}
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func (s *PostgresStore) ClearIPOData(ctx context.Context) error {
	return s.deleteAll(ctx, "current_gmp", "current_subscription", "ipos")
}

func (s *PostgresStore) ClearAll(ctx context.Context) error {
	return s.deleteAll(ctx, "current_gmp", "current_subscription", "gmp_history", "subscription_history", "ipos")
}

func (s *PostgresStore) deleteAll(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		if _, err := s.q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

func (s *PostgresStore) RunInTx(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}

	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<uint(attempt-1)) * 50 * time.Millisecond
			logrus.WithFields(logrus.Fields{
				"attempt": attempt + 1,
				"delay":   delay,
			}).Warn("Retrying transaction after conflict")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err = s.runTx(ctx, fn)
		if err == nil || !isTxConflict(err) {
			return err
		}
	}
	return err
}

func (s *PostgresStore) runTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&PostgresStore{db: s.db, q: tx, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// isTxConflict reports serialization failures, deadlocks and unique
// violations, which are safe to replay from the start. A unique violation
// means a concurrent transaction committed the same key first; the replay
// sees that row and takes the update path.
func isTxConflict(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01", "23505":
			return true
		}
	}
	return false
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
