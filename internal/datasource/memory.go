package datasource

import (
	"context"
	"io"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type memRecord struct {
	id        string
	version   int64
	createdAt time.Time
	updatedAt time.Time
	deleted   bool
	data      Record
}

// Memory — документное хранилище в памяти: collection -> id -> запись.
// Удаление мягкое (запись помечается и перестаёт отдаваться), id — ULID.
type Memory struct {
	mu      sync.RWMutex
	data    map[string]map[string]*memRecord
	entropy io.Reader
}

func NewMemory() *Memory {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Memory{
		data:    make(map[string]map[string]*memRecord),
		entropy: ulid.Monotonic(src, 0),
	}
}

func (m *Memory) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), m.entropy).String()
}

func (m *Memory) Get(_ context.Context, collection, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec := m.data[collection][id]
	if rec == nil || rec.deleted {
		return nil, ErrNotFound
	}
	return cloneRecord(rec.data), nil
}

func (m *Memory) Set(_ context.Context, collection, id string, rec Record) (string, error) {
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data[collection] == nil {
		m.data[collection] = make(map[string]*memRecord)
	}
	if id == "" {
		id = m.newID()
	}

	cur := m.data[collection][id]
	if cur == nil {
		m.data[collection][id] = &memRecord{
			id:        id,
			version:   1,
			createdAt: now,
			updatedAt: now,
			data:      cloneRecord(rec),
		}
		return id, nil
	}
	// воскрешение под тем же id продолжает счётчик версий (как pg-upsert)
	cur.data = cloneRecord(rec)
	cur.version++
	cur.deleted = false
	cur.updatedAt = now
	return id, nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.data[collection][id]
	if rec == nil || rec.deleted {
		return ErrNotFound
	}
	rec.deleted = true
	rec.version++
	rec.updatedAt = time.Now().UTC()
	return nil
}

// List возвращает живые записи коллекции, отсортированные по id.
func (m *Memory) List(_ context.Context, collection string) ([]*Stored, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := m.data[collection]
	out := make([]*Stored, 0, len(recs))
	for _, r := range recs {
		if r.deleted {
			continue
		}
		out = append(out, storedOf(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetStored(_ context.Context, collection, id string) (*Stored, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec := m.data[collection][id]
	if rec == nil || rec.deleted {
		return nil, ErrNotFound
	}
	return storedOf(rec), nil
}

func storedOf(r *memRecord) *Stored {
	return &Stored{
		ID:        r.id,
		Version:   r.version,
		CreatedAt: r.createdAt,
		UpdatedAt: r.updatedAt,
		Data:      cloneRecord(r.data),
	}
}

func cloneRecord(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
