// Package usertest provides an in-memory credential store for tests.
package usertest

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ovaphlow/pitchfork/service-ids-console/internal/user/entity"
)

// MemoryRepo satisfies user.Repository. Calls counts every method call so
// tests can assert that a rejected request never reached the store.
type MemoryRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]entity.Account
	Calls  int
	// Err, when set, is returned by every call.
	Err error
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{nextID: 1, rows: make(map[int64]entity.Account)}
}

func (m *MemoryRepo) begin() error {
	m.Calls++
	return m.Err
}

func (m *MemoryRepo) Create(_ context.Context, a *entity.Account) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return 0, err
	}
	for _, r := range m.rows {
		if r.Username == a.Username || r.Email == a.Email {
			return 0, errors.New("duplicate key")
		}
	}
	a.ID = m.nextID
	a.CreatedAt = time.Now().UTC()
	m.nextID++
	m.rows[a.ID] = *a
	return a.ID, nil
}

func (m *MemoryRepo) GetByUsername(_ context.Context, username string) (*entity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return nil, err
	}
	for _, r := range m.rows {
		if r.Username == username {
			cp := r
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *MemoryRepo) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return false, err
	}
	for _, r := range m.rows {
		if r.Username == username || r.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryRepo) UsernameTaken(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return false, err
	}
	for _, r := range m.rows {
		if r.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryRepo) EmailTakenByOther(_ context.Context, email string, exceptID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return false, err
	}
	for id, r := range m.rows {
		if id != exceptID && r.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryRepo) List(_ context.Context) ([]entity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return nil, err
	}
	out := make([]entity.Account, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepo) Update(_ context.Context, a *entity.Account) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return 0, err
	}
	cur, ok := m.rows[a.ID]
	if !ok {
		return 0, nil
	}
	cur.FullName, cur.Email, cur.Username, cur.PasswordHash = a.FullName, a.Email, a.Username, a.PasswordHash
	m.rows[a.ID] = cur
	return 1, nil
}

func (m *MemoryRepo) DeleteByIDs(_ context.Context, ids []int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(); err != nil {
		return 0, err
	}
	var n int64
	for _, id := range ids {
		if _, ok := m.rows[id]; ok {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

// Usernames returns the stored usernames in id order.
func (m *MemoryRepo) Usernames() []string {
	rows, _ := (&MemoryRepo{rows: m.snapshot()}).List(context.Background())
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Username)
	}
	return out
}

func (m *MemoryRepo) snapshot() map[int64]entity.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[int64]entity.Account, len(m.rows))
	for k, v := range m.rows {
		cp[k] = v
	}
	return cp
}
