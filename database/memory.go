package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fenilmodi00/ipo-dalal/models"
	"github.com/google/uuid"
)

type memoryData struct {
	ipos       []models.IPO
	gmpHistory []models.GMPHistory
	currentGMP map[uuid.UUID]models.CurrentGMP
	subHistory []models.SubscriptionHistory
	currentSub map[uuid.UUID]models.CurrentSubscription
	systemLogs []models.SystemLog
}

func newMemoryData() memoryData {
	return memoryData{
		ipos:       []models.IPO{},
		currentGMP: make(map[uuid.UUID]models.CurrentGMP),
		currentSub: make(map[uuid.UUID]models.CurrentSubscription),
	}
}

func (d memoryData) clone() memoryData {
	c := memoryData{
		ipos:       make([]models.IPO, len(d.ipos)),
		gmpHistory: make([]models.GMPHistory, len(d.gmpHistory)),
		currentGMP: make(map[uuid.UUID]models.CurrentGMP, len(d.currentGMP)),
		subHistory: make([]models.SubscriptionHistory, len(d.subHistory)),
		currentSub: make(map[uuid.UUID]models.CurrentSubscription, len(d.currentSub)),
		systemLogs: make([]models.SystemLog, len(d.systemLogs)),
	}
	copy(c.ipos, d.ipos)
	copy(c.gmpHistory, d.gmpHistory)
	copy(c.subHistory, d.subHistory)
	copy(c.systemLogs, d.systemLogs)
	for k, v := range d.currentGMP {
		c.currentGMP[k] = v
	}
	for k, v := range d.currentSub {
		c.currentSub[k] = v
	}
	return c
}

// MemoryStore keeps everything in process. It backs local development and
// tests when no DATABASE_URL is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data memoryData
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemoryData()}
}

// mutate applies a write to the committed data. It waits for a running
// transaction so the commit swap cannot drop the write.
func (s *MemoryStore) mutate(fn func(d *memoryData) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.data)
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyIPO(ipo models.IPO) models.IPO {
	ipo.LeadManagers = append([]string{}, ipo.LeadManagers...)
	if ipo.Symbol != nil {
		sym := *ipo.Symbol
		ipo.Symbol = &sym
	}
	ipo.ListingPrice = copyFloat(ipo.ListingPrice)
	ipo.ListingGains = copyFloat(ipo.ListingGains)
	ipo.ActualProfitRetail = copyFloat(ipo.ActualProfitRetail)
	ipo.ActualProfitSHNI = copyFloat(ipo.ActualProfitSHNI)
	return ipo
}

func copyGMPHistory(h models.GMPHistory) models.GMPHistory {
	h.SHNISaudaRates = copyFloat(h.SHNISaudaRates)
	return h
}

func copyCurrentGMP(c models.CurrentGMP) models.CurrentGMP {
	c.SHNISaudaRates = copyFloat(c.SHNISaudaRates)
	c.EstSHNIProfit = copyFloat(c.EstSHNIProfit)
	return c
}

func copySubHistory(h models.SubscriptionHistory) models.SubscriptionHistory {
	h.TotalBidAmount = copyFloat(h.TotalBidAmount)
	h.TotalApplications = copyInt64(h.TotalApplications)
	return h
}

func copyCurrentSub(c models.CurrentSubscription) models.CurrentSubscription {
	c.TotalBidAmount = copyFloat(c.TotalBidAmount)
	c.TotalApplications = copyInt64(c.TotalApplications)
	return c
}

func (s *MemoryStore) GetIPO(_ context.Context, id uuid.UUID) (*models.IPO, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ipo := range s.data.ipos {
		if ipo.ID == id {
			c := copyIPO(ipo)
			return &c, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) GetIPOByCompany(_ context.Context, companyName string) (*models.IPO, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ipo := range s.data.ipos {
		if ipo.CompanyName == companyName {
			c := copyIPO(ipo)
			return &c, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) InsertIPO(_ context.Context, ipo *models.IPO) error {
	return s.mutate(func(d *memoryData) error {
		for _, existing := range d.ipos {
			if existing.ID == ipo.ID {
				return fmt.Errorf("failed to insert IPO %q: duplicate id %s", ipo.CompanyName, ipo.ID)
			}
			if existing.CompanyName == ipo.CompanyName {
				return fmt.Errorf("failed to insert IPO %q: company already exists", ipo.CompanyName)
			}
		}
		d.ipos = append(d.ipos, copyIPO(*ipo))
		return nil
	})
}

func (s *MemoryStore) UpdateIPO(_ context.Context, ipo *models.IPO) error {
	return s.mutate(func(d *memoryData) error {
		for i := range d.ipos {
			if d.ipos[i].ID == ipo.ID {
				d.ipos[i] = copyIPO(*ipo)
				return nil
			}
		}
		return fmt.Errorf("failed to update IPO %s: not found", ipo.ID)
	})
}

func (s *MemoryStore) ListIPOs(_ context.Context, filter IPOFilter) ([]models.IPO, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ipos := []models.IPO{}
	for _, ipo := range s.data.ipos {
		if len(filter.Statuses) > 0 && !contains(filter.Statuses, ipo.Status) {
			continue
		}
		if len(filter.Types) > 0 && !contains(filter.Types, ipo.Type) {
			continue
		}
		ipos = append(ipos, copyIPO(ipo))
	}
	return ipos, nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func (s *MemoryStore) InsertGMPHistory(_ context.Context, row *models.GMPHistory) error {
	if row.GMPPercent < models.MinGMPPercent || row.GMPPercent > models.MaxGMPPercent {
		return fmt.Errorf("failed to insert GMP history for IPO %s: gmp_percent %.2f out of range", row.IPOID, row.GMPPercent)
	}
	return s.mutate(func(d *memoryData) error {
		d.gmpHistory = append(d.gmpHistory, copyGMPHistory(*row))
		return nil
	})
}

func (s *MemoryStore) ListGMPHistory(_ context.Context, ipoID uuid.UUID) ([]models.GMPHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := []models.GMPHistory{}
	for _, h := range s.data.gmpHistory {
		if h.IPOID == ipoID {
			history = append(history, copyGMPHistory(h))
		}
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Timestamp.Before(history[j].Timestamp)
	})
	return history, nil
}

func (s *MemoryStore) GetCurrentGMP(_ context.Context, ipoID uuid.UUID) (*models.CurrentGMP, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.data.currentGMP[ipoID]
	if !ok {
		return nil, nil
	}
	c = copyCurrentGMP(c)
	return &c, nil
}

func (s *MemoryStore) SaveCurrentGMP(_ context.Context, row *models.CurrentGMP) (bool, error) {
	created := false
	err := s.mutate(func(d *memoryData) error {
		if !d.hasIPO(row.IPOID) {
			return fmt.Errorf("failed to save current GMP: IPO %s does not exist", row.IPOID)
		}

		existing, ok := d.currentGMP[row.IPOID]
		if ok {
			row.ID = existing.ID
		} else if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		d.currentGMP[row.IPOID] = copyCurrentGMP(*row)
		created = !ok
		return nil
	})
	return created, err
}

func (s *MemoryStore) InsertSubscriptionHistory(_ context.Context, row *models.SubscriptionHistory) error {
	for _, v := range []float64{row.QIBSub, row.BHNISub, row.SHNISub, row.RetailSub, row.EmpSub, row.SHSub} {
		if v < 0 {
			return fmt.Errorf("failed to insert subscription history for IPO %s: negative subscription multiple", row.IPOID)
		}
	}
	return s.mutate(func(d *memoryData) error {
		d.subHistory = append(d.subHistory, copySubHistory(*row))
		return nil
	})
}

func (s *MemoryStore) ListSubscriptionHistory(_ context.Context, ipoID uuid.UUID) ([]models.SubscriptionHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := []models.SubscriptionHistory{}
	for _, h := range s.data.subHistory {
		if h.IPOID == ipoID {
			history = append(history, copySubHistory(h))
		}
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Timestamp.Before(history[j].Timestamp)
	})
	return history, nil
}

func (s *MemoryStore) GetCurrentSubscription(_ context.Context, ipoID uuid.UUID) (*models.CurrentSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.data.currentSub[ipoID]
	if !ok {
		return nil, nil
	}
	c = copyCurrentSub(c)
	return &c, nil
}

func (s *MemoryStore) SaveCurrentSubscription(_ context.Context, row *models.CurrentSubscription) (bool, error) {
	created := false
	err := s.mutate(func(d *memoryData) error {
		if !d.hasIPO(row.IPOID) {
			return fmt.Errorf("failed to save current subscription: IPO %s does not exist", row.IPOID)
		}

		existing, ok := d.currentSub[row.IPOID]
		if ok {
			row.ID = existing.ID
		} else if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		d.currentSub[row.IPOID] = copyCurrentSub(*row)
		created = !ok
		return nil
	})
	return created, err
}

func (d *memoryData) hasIPO(id uuid.UUID) bool {
	for _, ipo := range d.ipos {
		if ipo.ID == id {
			return true
		}
	}
	return false
}

func (s *MemoryStore) InsertSystemLog(_ context.Context, entry *models.SystemLog) error {
	return s.mutate(func(d *memoryData) error {
		d.systemLogs = append(d.systemLogs, *entry)
		return nil
	})
}

func (s *MemoryStore) ListSystemLogs(_ context.Context, limit int, action string) ([]models.SystemLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := []models.SystemLog{}
	for i := len(s.data.systemLogs) - 1; i >= 0; i-- {
		entry := s.data.systemLogs[i]
		if action != "" && entry.Action != action {
			continue
		}
		logs = append(logs, entry)
	}
	// newest first; ties keep reverse insertion order
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp.After(logs[j].Timestamp)
	})
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (d *memoryData) clearIPOData() {
	d.ipos = []models.IPO{}
	d.currentGMP = make(map[uuid.UUID]models.CurrentGMP)
	d.currentSub = make(map[uuid.UUID]models.CurrentSubscription)
}

func (s *MemoryStore) ClearIPOData(_ context.Context) error {
	return s.mutate(func(d *memoryData) error {
		d.clearIPOData()
		return nil
	})
}

func (s *MemoryStore) ClearAll(_ context.Context) error {
	return s.mutate(func(d *memoryData) error {
		d.clearIPOData()
		d.gmpHistory = nil
		d.subHistory = nil
		return nil
	})
}

// RunInTx stages fn's writes on a private copy and swaps it in only when fn
// succeeds. Transactions run one at a time; writes outside a transaction
// wait for the running one, and reads see committed data only.
func (s *MemoryStore) RunInTx(_ context.Context, fn func(Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	staged := &MemoryStore{data: s.data.clone()}
	s.mu.RUnlock()

	if err := fn(memoryTx{staged}); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = staged.data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// memoryTx is the store handed to RunInTx callbacks; nested calls join the
// running transaction
type memoryTx struct {
	*MemoryStore
}

func (t memoryTx) RunInTx(_ context.Context, fn func(Store) error) error {
	return fn(t)
}
