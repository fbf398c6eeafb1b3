package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"faucetScope/internal/model"
)

type balanceKey struct {
	wallet string
	token  model.TokenType
}

// MemoryStore is an in-process Store used by tests. It enforces the same
// conditional-write semantics as the Postgres store: the cooldown check
// and the claim insert happen under one lock.
type MemoryStore struct {
	mu        sync.Mutex
	nextID    int64
	claims    []model.ClaimRecord
	transfers map[string]model.TransferEvent
	balances  map[balanceKey]model.TokenBalanceEntry
	alerts    map[uuid.UUID]model.Alert
	cursors   map[string]uint64

	now func() time.Time

	// Fail makes every call return ErrUnavailable, for fail-closed tests.
	Fail bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transfers: make(map[string]model.TransferEvent),
		balances:  make(map[balanceKey]model.TokenBalanceEntry),
		alerts:    make(map[uuid.UUID]model.Alert),
		cursors:   make(map[string]uint64),
		now:       time.Now,
	}
}

// SetClock overrides the store clock, for cooldown tests.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *MemoryStore) LatestClaim(_ context.Context, wallet string) (model.ClaimRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return model.ClaimRecord{}, false, ErrUnavailable
	}

	var latest model.ClaimRecord
	found := false
	for _, claim := range s.claims {
		if claim.WalletAddress != wallet {
			continue
		}
		if !found || claim.LastClaimAt.After(latest.LastClaimAt) {
			latest = claim
			found = true
		}
	}
	return latest, found, nil
}

func (s *MemoryStore) InsertClaimIfEligible(_ context.Context, wallet string, amount decimal.Decimal, cooldown time.Duration) (model.ClaimRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return model.ClaimRecord{}, false, ErrUnavailable
	}

	now := s.now()
	for _, claim := range s.claims {
		if claim.WalletAddress == wallet && now.Sub(claim.LastClaimAt) < cooldown {
			return model.ClaimRecord{}, false, nil
		}
	}

	s.nextID++
	record := model.ClaimRecord{
		ID:            s.nextID,
		WalletAddress: wallet,
		AmountClaimed: amount,
		LastClaimAt:   now,
		CreatedAt:     now,
	}
	s.claims = append(s.claims, record)
	return record, true, nil
}

func (s *MemoryStore) ListClaims(_ context.Context, wallet string) ([]model.ClaimRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return nil, ErrUnavailable
	}

	out := make([]model.ClaimRecord, 0)
	for _, claim := range s.claims {
		if claim.WalletAddress == wallet {
			out = append(out, claim)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastClaimAt.After(out[j].LastClaimAt)
	})
	return out, nil
}

func (s *MemoryStore) UpsertTransfers(_ context.Context, transfers []model.TransferEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return ErrUnavailable
	}

	for _, transfer := range transfers {
		existing, ok := s.transfers[transfer.TxHash]
		if !ok {
			s.transfers[transfer.TxHash] = transfer
			continue
		}
		existing.Status = model.MergeStatus(existing.Status, transfer.Status)
		s.transfers[transfer.TxHash] = existing
	}
	return nil
}

func (s *MemoryStore) UpsertBalances(_ context.Context, balances []model.TokenBalanceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return ErrUnavailable
	}

	for _, entry := range balances {
		key := balanceKey{wallet: entry.WalletAddress, token: entry.TokenType}
		existing, ok := s.balances[key]
		if ok && existing.UpdatedAt.After(entry.UpdatedAt) {
			continue
		}
		s.balances[key] = entry
	}
	return nil
}

func (s *MemoryStore) TransferCount(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return 0, ErrUnavailable
	}
	return int64(len(s.transfers)), nil
}

// TransferByHash exposes a stored transfer for assertions.
func (s *MemoryStore) TransferByHash(hash string) (model.TransferEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	transfer, ok := s.transfers[hash]
	return transfer, ok
}

// Balance exposes a stored balance entry for assertions.
func (s *MemoryStore) Balance(wallet string, token model.TokenType) (model.TokenBalanceEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.balances[balanceKey{wallet: wallet, token: token}]
	return entry, ok
}

func (s *MemoryStore) ActiveAlerts(_ context.Context, chainID uint64) ([]model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return nil, ErrUnavailable
	}

	out := make([]model.Alert, 0)
	for _, alert := range s.alerts {
		if alert.Resolved {
			continue
		}
		if chainID != 0 && alert.ChainID != chainID {
			continue
		}
		out = append(out, alert)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) InsertAlert(_ context.Context, alert model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return ErrUnavailable
	}
	s.alerts[alert.ID] = alert
	return nil
}

func (s *MemoryStore) ResolveAlert(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return ErrUnavailable
	}

	alert, ok := s.alerts[id]
	if !ok || alert.Resolved {
		return nil
	}
	resolvedAt := s.now()
	alert.Resolved = true
	alert.ResolvedAt = &resolvedAt
	s.alerts[id] = alert
	return nil
}

// AlertByID exposes a stored alert for assertions.
func (s *MemoryStore) AlertByID(id uuid.UUID) (model.Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.alerts[id]
	return alert, ok
}

func (s *MemoryStore) LoadCursor(_ context.Context, name string) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return 0, false, ErrUnavailable
	}
	block, ok := s.cursors[name]
	return block, ok, nil
}

func (s *MemoryStore) SaveCursor(_ context.Context, name string, block uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return ErrUnavailable
	}
	s.cursors[name] = block
	return nil
}
