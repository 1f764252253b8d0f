package roomstore

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pomowave/pomowave/go/internal/models"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// Memory is the in-process backend. Rooms are stored encoded so callers never
// share state with the store.
type Memory struct {
	mu    sync.Mutex
	clock clockwork.Clock
	ttl   time.Duration
	rooms map[string]memoryEntry
}

// NewMemory creates an empty in-process store.
func NewMemory(clock clockwork.Clock, ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		clock: clock,
		ttl:   ttl,
		rooms: make(map[string]memoryEntry),
	}
}

func (m *Memory) Create(ctx context.Context, room *models.Room) error {
	data, err := encodeRoom(room)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.live(room.ID); ok {
		return ErrExists
	}
	m.rooms[room.ID] = memoryEntry{data: data, expiresAt: m.clock.Now().Add(m.ttl)}
	return nil
}

func (m *Memory) Get(ctx context.Context, id string) (*models.Room, error) {
	m.mu.Lock()
	entry, ok := m.live(id)
	m.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}
	return decodeRoom(entry.data)
}

func (m *Memory) Update(ctx context.Context, id string, fn func(*models.Room) error) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.live(id)
	if !ok {
		return nil, ErrNotFound
	}
	room, err := decodeRoom(entry.data)
	if err != nil {
		return nil, err
	}
	if err := fn(room); err != nil {
		return nil, err
	}
	data, err := encodeRoom(room)
	if err != nil {
		return nil, err
	}
	m.rooms[id] = memoryEntry{data: data, expiresAt: m.clock.Now().Add(m.ttl)}
	return decodeRoom(data)
}

func (m *Memory) ListActive(ctx context.Context) ([]*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var active []*models.Room
	for id := range m.rooms {
		entry, ok := m.live(id)
		if !ok {
			continue
		}
		room, err := decodeRoom(entry.data)
		if err != nil {
			return nil, err
		}
		if room.Timer != nil {
			active = append(active, room)
		}
	}
	return active, nil
}

func (m *Memory) Close() error {
	return nil
}

// live returns the entry for id, evicting it if expired. Caller holds mu.
func (m *Memory) live(id string) (memoryEntry, bool) {
	entry, ok := m.rooms[id]
	if !ok {
		return memoryEntry{}, false
	}
	if !m.clock.Now().Before(entry.expiresAt) {
		delete(m.rooms, id)
		return memoryEntry{}, false
	}
	return entry, true
}
