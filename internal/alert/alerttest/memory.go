// Package alerttest provides an in-memory event store for tests.
package alerttest

import (
	"context"
	"strings"
	"sync"

	"github.com/ovaphlow/pitchfork/service-ids-console/internal/alert/entity"
	alertrepo "github.com/ovaphlow/pitchfork/service-ids-console/internal/alert/repo"
)

// MemoryRepo satisfies alert.Repository with the same filter and condition
// semantics as the DynamoDB repo.
type MemoryRepo struct {
	mu    sync.Mutex
	order []entity.Key
	rows  map[entity.Key]entity.Record
	Calls int
	Err   error
	// FailOwner makes SetOwner fail for specific keys.
	FailOwner map[entity.Key]error
}

func NewMemoryRepo(recs ...entity.Record) *MemoryRepo {
	m := &MemoryRepo{rows: make(map[entity.Key]entity.Record), FailOwner: make(map[entity.Key]error)}
	for _, r := range recs {
		m.Put(r)
	}
	return m
}

// Put inserts or replaces r without counting as a call.
func (m *MemoryRepo) Put(r entity.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := r.Key()
	if _, ok := m.rows[k]; !ok {
		m.order = append(m.order, k)
	}
	m.rows[k] = r
}

// Record returns a copy of the stored record for k.
func (m *MemoryRepo) Record(k entity.Key) (entity.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[k]
	return r, ok
}

func (m *MemoryRepo) begin() error {
	m.Calls++
	return m.Err
}

func (m *MemoryRepo) filter(keep func(*entity.Record) bool) []entity.Record {
	out := []entity.Record{}
	for _, k := range m.order {
		r := m.rows[k]
		if keep(&r) {
			out = append(out, r)
		}
	}
	return out
}

func (m *MemoryRepo) ScanLogs(_ context.Context, f entity.LogFilter) ([]entity.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return nil, err
	}
	return m.filter(func(r *entity.Record) bool {
		if f.SourceIP != "" && !strings.Contains(r.SrcIP, f.SourceIP) {
			return false
		}
		if f.DestinationIP != "" && r.DstIP != f.DestinationIP {
			return false
		}
		return f.Protocol == "" || r.ProtocolType == f.Protocol
	}), nil
}

func (m *MemoryRepo) ScanAlerts(_ context.Context, label string) ([]entity.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return nil, err
	}
	return m.filter(func(r *entity.Record) bool {
		if label == "" {
			return r.IsAlert()
		}
		return r.Label == label
	}), nil
}

func (m *MemoryRepo) Get(_ context.Context, key entity.Key) (*entity.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return nil, err
	}
	r, ok := m.rows[key]
	if !ok {
		return nil, alertrepo.ErrNotFound
	}
	return &r, nil
}

func (m *MemoryRepo) SetOwner(_ context.Context, key entity.Key, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return err
	}
	if err := m.FailOwner[key]; err != nil {
		return err
	}
	r, ok := m.rows[key]
	if !ok {
		return alertrepo.ErrNotFound
	}
	r.Owner = &owner
	m.rows[key] = r
	return nil
}

func (m *MemoryRepo) SetStatus(_ context.Context, key entity.Key, status, actor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return err
	}
	r, ok := m.rows[key]
	if !ok || r.Owner == nil || *r.Owner != actor {
		return alertrepo.ErrConditionFailed
	}
	r.Status = status
	r.LastUpdatedBy = &actor
	m.rows[key] = r
	return nil
}
