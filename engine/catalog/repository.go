package catalog

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Repository persists catalog entities. List returns entities in catalog order.
// Add assigns an id when Entity.ID is zero and fails with ErrConflict when an
// explicit id is taken. Upsert writes an entity with an explicit id whether or
// not it exists; seeding relies on it.
type Repository interface {
	Add(ctx context.Context, e *Entity) (int64, error)
	Upsert(ctx context.Context, e *Entity) error
	Update(ctx context.Context, e *Entity) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*Entity, error)
	List(ctx context.Context) ([]Entity, error)
	Close() error
}

// MemoryRepository keeps entities in process memory.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]Entity
	order  []int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextID: 1, byID: make(map[int64]Entity)}
}

func (r *MemoryRepository) Add(_ context.Context, e *Entity) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := cloneEntity(*e)
	if stored.ID == 0 {
		stored.ID = r.nextID
	}
	if _, exists := r.byID[stored.ID]; exists {
		return 0, fmt.Errorf("%w: id %d", ErrConflict, stored.ID)
	}
	r.put(stored)
	e.ID = stored.ID
	return stored.ID, nil
}

func (r *MemoryRepository) Upsert(_ context.Context, e *Entity) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID <= 0 {
		return fmt.Errorf("%w: upsert requires an id", ErrInvalidEntity)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(cloneEntity(*e))
	return nil
}

func (r *MemoryRepository) put(e Entity) {
	if e.ID >= r.nextID {
		r.nextID = e.ID + 1
	}
	if _, exists := r.byID[e.ID]; !exists {
		r.order = append(r.order, e.ID)
	}
	r.byID[e.ID] = e
}

func (r *MemoryRepository) Update(_ context.Context, e *Entity) error {
	if err := e.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[e.ID]; !ok {
		return ErrNotFound
	}
	r.byID[e.ID] = cloneEntity(*e)
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	r.order = slices.DeleteFunc(r.order, func(v int64) bool { return v == id })
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id int64) (*Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneEntity(e)
	return &out, nil
}

func (r *MemoryRepository) List(context.Context) ([]Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := slices.Clone(r.order)
	slices.Sort(ids)
	out := make([]Entity, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneEntity(r.byID[id]))
	}
	return out, nil
}

func (r *MemoryRepository) Close() error {
	return nil
}

func cloneEntity(e Entity) Entity {
	e.Tags = slices.Clone(e.Tags)
	return e
}
