package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fieldsnap/internal/model"
)

// MemoryStore keeps leads in process memory. Returned leads are copies.
type MemoryStore struct {
	mu    sync.Mutex
	leads map[string][]byte
	now   func() time.Time
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{leads: make(map[string][]byte), now: time.Now}
}

func (s *MemoryStore) CreateLead(_ context.Context, in model.NewLead) (*model.Lead, error) {
	l := newLead(in, s.now())
	data, err := encodeLead(l)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.leads[l.ID] = data
	s.mu.Unlock()
	return decodeLead(data)
}

func (s *MemoryStore) GetLead(_ context.Context, id string) (*model.Lead, error) {
	s.mu.Lock()
	data, ok := s.leads[id]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return decodeLead(data)
}

func (s *MemoryStore) UpdateLead(_ context.Context, id string, u model.LeadUpdate) (*model.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.leads[id]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "memory: update lead %s", id)
	}
	l, err := decodeLead(data)
	if err != nil {
		return nil, err
	}
	if err := u.Apply(l, s.now()); err != nil {
		return nil, eris.Wrapf(err, "memory: update lead %s", id)
	}
	if data, err = encodeLead(l); err != nil {
		return nil, err
	}
	s.leads[id] = data
	return decodeLead(data)
}

func (s *MemoryStore) ListLeads(_ context.Context, f model.LeadFilter) ([]model.Lead, error) {
	s.mu.Lock()
	all := make([]*model.Lead, 0, len(s.leads))
	for _, data := range s.leads {
		l, err := decodeLead(data)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		all = append(all, l)
	}
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	out := []model.Lead{}
	skipped := 0
	for _, l := range all {
		if f.Status != "" && l.ProcessingStatus != f.Status {
			continue
		}
		if f.Qualification != "" && l.QualificationStatus != f.Qualification {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		out = append(out, *l)
		if len(out) == listLimit(f) {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
