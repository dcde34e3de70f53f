package service

import (
	"context"
	"errors"
	"strings"

	"github.com/naijastore/naijastore-api/internal/domain"
	"github.com/naijastore/naijastore-api/internal/port"

	"go.uber.org/zap"
)

// ============================================================
// Addresses
// ============================================================

// AddressService manages saved addresses; the store keeps the single
// default per user.
type AddressService struct {
	store  port.AddressStore
	logger *zap.Logger
}

func NewAddressService(store port.AddressStore, logger *zap.Logger) *AddressService {
	return &AddressService{store: store, logger: logger}
}

func (s *AddressService) List(ctx context.Context, userID string) ([]domain.Address, error) {
	ctx, span := tracer.Start(ctx, "AddressService.List")
	defer span.End()

	return s.store.ListAddresses(ctx, userID)
}

func (s *AddressService) Create(ctx context.Context, userID string, req *domain.AddressRequest) (*domain.Address, error) {
	ctx, span := tracer.Start(ctx, "AddressService.Create")
	defer span.End()

	a, err := s.store.CreateAddress(ctx, req.ToAddress(userID))
	if err != nil {
		return nil, err
	}
	s.logger.Info("address created",
		zap.String("user_id", userID),
		zap.String("address_id", a.ID),
		zap.Bool("default", a.IsDefault),
	)
	return a, nil
}

// Update replaces the address fields. A default address stays the
// default; clearing it is done by making another address default.
func (s *AddressService) Update(ctx context.Context, userID, addressID string, req *domain.AddressRequest) (*domain.Address, error) {
	ctx, span := tracer.Start(ctx, "AddressService.Update")
	defer span.End()

	existing, err := s.store.GetAddress(ctx, userID, addressID)
	if err != nil {
		return nil, err
	}
	a := req.ToAddress(userID)
	a.ID = addressID
	a.IsDefault = a.IsDefault || existing.IsDefault
	return s.store.UpdateAddress(ctx, a)
}

func (s *AddressService) Delete(ctx context.Context, userID, addressID string) error {
	ctx, span := tracer.Start(ctx, "AddressService.Delete")
	defer span.End()

	return s.store.DeleteAddress(ctx, userID, addressID)
}

func (s *AddressService) SetDefault(ctx context.Context, userID, addressID string) (*domain.Address, error) {
	ctx, span := tracer.Start(ctx, "AddressService.SetDefault")
	defer span.End()

	return s.store.SetDefaultAddress(ctx, userID, addressID)
}

// ============================================================
// Profiles
// ============================================================

// ProfileService reads and updates rows of the users table.
type ProfileService struct {
	store  port.ProfileStore
	cache  port.Cache[any]
	logger *zap.Logger
}

func NewProfileService(store port.ProfileStore, cache port.Cache[any], logger *zap.Logger) *ProfileService {
	return &ProfileService{store: store, cache: cache, logger: logger}
}

// Get returns the caller's profile, creating the users row on first use
// for accounts created outside the signup endpoint.
func (s *ProfileService) Get(ctx context.Context, id domain.Identity) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "ProfileService.Get")
	defer span.End()

	p, err := s.store.GetProfile(ctx, id.UserID)
	var nf *domain.ErrNotFound
	if errors.As(err, &nf) {
		s.logger.Info("provisioning missing profile", zap.String("user_id", id.UserID))
		return s.store.UpsertProfile(ctx, &domain.Profile{ID: id.UserID, Email: id.Email})
	}
	return p, err
}

func (s *ProfileService) Update(ctx context.Context, id domain.Identity, req *domain.UpdateProfileRequest) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "ProfileService.Update")
	defer span.End()

	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if req.FullName != nil {
		updates["full_name"] = strings.TrimSpace(*req.FullName)
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.AvatarURL != nil {
		updates["avatar_url"] = *req.AvatarURL
	}
	p, err := s.store.UpdateProfile(ctx, id.UserID, updates)
	if err != nil {
		return nil, err
	}
	s.cache.Delete("role:" + id.UserID)
	return p, nil
}

// IsAdmin reports whether the user has the admin role.
func (s *ProfileService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	key := "role:" + userID
	if v, ok := s.cache.Get(key); ok {
		if role, ok := v.(string); ok {
			return role == domain.RoleAdmin, nil
		}
	}
	p, err := s.store.GetProfile(ctx, userID)
	var nf *domain.ErrNotFound
	if errors.As(err, &nf) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.cache.Set(key, p.Role)
	return p.IsAdmin(), nil
}
