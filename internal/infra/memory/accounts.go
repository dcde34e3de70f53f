package memory

import (
	"context"
	"sort"
	"time"

	"github.com/naijastore/naijastore-api/internal/domain"

	"github.com/google/uuid"
)

// timeOffset spreads creation times of rows inserted within one clock tick.
func timeOffset(n int) time.Duration { return time.Duration(n) * time.Microsecond }

// ============================================================
// Addresses
// ============================================================

func (s *Store) ListAddresses(_ context.Context, userID string) ([]domain.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addressesOf(userID), nil
}

// addressesOf returns the user's addresses, default first. Callers hold
// the lock.
func (s *Store) addressesOf(userID string) []domain.Address {
	out := []domain.Address{}
	for _, a := range s.addresses {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *Store) GetAddress(_ context.Context, userID, addressID string) (*domain.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.addresses[addressID]
	if !ok || a.UserID != userID {
		return nil, &domain.ErrNotFound{Resource: "address", ID: addressID}
	}
	return &a, nil
}

func (s *Store) CreateAddress(_ context.Context, in *domain.Address) (*domain.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := *in
	a.ID = uuid.NewString()
	a.CreatedAt = s.now().Add(timeOffset(len(s.addresses)))
	a.UpdatedAt = a.CreatedAt
	if len(s.addressesOf(a.UserID)) == 0 {
		a.IsDefault = true
	}
	if a.IsDefault {
		s.clearDefaults(a.UserID, "")
	}
	s.addresses[a.ID] = a
	return &a, nil
}

func (s *Store) UpdateAddress(_ context.Context, in *domain.Address) (*domain.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.addresses[in.ID]
	if !ok || existing.UserID != in.UserID {
		return nil, &domain.ErrNotFound{Resource: "address", ID: in.ID}
	}
	a := *in
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = s.now()
	a.IsDefault = existing.IsDefault || in.IsDefault
	if a.IsDefault {
		s.clearDefaults(a.UserID, a.ID)
	}
	s.addresses[a.ID] = a
	return &a, nil
}

func (s *Store) DeleteAddress(_ context.Context, userID, addressID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.addresses[addressID]
	if !ok || a.UserID != userID {
		return &domain.ErrNotFound{Resource: "address", ID: addressID}
	}
	delete(s.addresses, addressID)
	if a.IsDefault {
		if rest := s.addressesOf(userID); len(rest) > 0 {
			next := rest[0]
			next.IsDefault = true
			s.addresses[next.ID] = next
		}
	}
	return nil
}

func (s *Store) SetDefaultAddress(_ context.Context, userID, addressID string) (*domain.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.addresses[addressID]
	if !ok || a.UserID != userID {
		return nil, &domain.ErrNotFound{Resource: "address", ID: addressID}
	}
	s.clearDefaults(userID, addressID)
	a.IsDefault = true
	a.UpdatedAt = s.now()
	s.addresses[addressID] = a
	return &a, nil
}

func (s *Store) clearDefaults(userID, keepID string) {
	for id, a := range s.addresses {
		if a.UserID == userID && id != keepID && a.IsDefault {
			a.IsDefault = false
			s.addresses[id] = a
		}
	}
}

// ============================================================
// Profiles
// ============================================================

func (s *Store) GetProfile(_ context.Context, userID string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: userID}
	}
	return &p, nil
}

func (s *Store) UpsertProfile(_ context.Context, in *domain.Profile) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[in.ID]
	if !ok {
		p = domain.Profile{ID: in.ID, Role: in.Role, CreatedAt: s.now()}
		if p.Role == "" {
			p.Role = domain.RoleCustomer
		}
	}
	p.Email = in.Email
	if in.FullName != "" {
		p.FullName = in.FullName
	}
	if in.Phone != "" {
		p.Phone = in.Phone
	}
	p.UpdatedAt = s.now()
	s.profiles[p.ID] = p
	return &p, nil
}

func (s *Store) UpdateProfile(_ context.Context, userID string, updates map[string]any) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: userID}
	}
	if v, ok := updates["full_name"].(string); ok {
		p.FullName = v
	}
	if v, ok := updates["phone"].(string); ok {
		p.Phone = v
	}
	if v, ok := updates["avatar_url"].(string); ok {
		p.AvatarURL = v
	}
	p.UpdatedAt = s.now()
	s.profiles[userID] = p
	return &p, nil
}
