package service

import (
	"context"
	"strings"

	"github.com/naijastore/naijastore-api/internal/domain"
	"github.com/naijastore/naijastore-api/internal/port"

	"go.uber.org/zap"
)

// AuthService proxies credentials to the identity provider and reconciles
// the guest session with the signed-in user.
type AuthService struct {
	provider port.AuthProvider
	profiles port.ProfileStore
	carts    *CartService
	logger   *zap.Logger
}

func NewAuthService(provider port.AuthProvider, profiles port.ProfileStore, carts *CartService, logger *zap.Logger) *AuthService {
	return &AuthService{provider: provider, profiles: profiles, carts: carts, logger: logger}
}

// SignUp registers the account, creates its profile row and, when the
// provider returns a session, merges the caller's guest cart.
func (s *AuthService) SignUp(ctx context.Context, id domain.Identity, req *domain.SignupRequest) (*domain.AuthSession, error) {
	ctx, span := tracer.Start(ctx, "AuthService.SignUp")
	defer span.End()

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	sess, err := s.provider.SignUp(ctx, req)
	if err != nil {
		return nil, err
	}

	if sess.User != nil && sess.User.ID != "" {
		if _, err := s.profiles.UpsertProfile(ctx, &domain.Profile{
			ID:       sess.User.ID,
			Email:    req.Email,
			FullName: strings.TrimSpace(req.FullName),
			Phone:    req.Phone,
		}); err != nil {
			s.logger.Warn("failed to create profile after signup",
				zap.String("user_id", sess.User.ID),
				zap.Error(err),
			)
		}
	}
	s.mergeGuestCart(ctx, id, sess)
	return sess, nil
}

func (s *AuthService) Login(ctx context.Context, id domain.Identity, req *domain.LoginRequest) (*domain.AuthSession, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Login")
	defer span.End()

	sess, err := s.provider.SignIn(ctx, strings.ToLower(strings.TrimSpace(req.Email)), req.Password)
	if err != nil {
		return nil, err
	}
	s.mergeGuestCart(ctx, id, sess)
	return sess, nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.AuthSession, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Refresh")
	defer span.End()

	return s.provider.Refresh(ctx, refreshToken)
}

func (s *AuthService) Logout(ctx context.Context, id domain.Identity) error {
	ctx, span := tracer.Start(ctx, "AuthService.Logout")
	defer span.End()

	if id.Token == "" {
		return &domain.ErrUnauthorized{Message: "not signed in"}
	}
	return s.provider.SignOut(ctx, id.Token)
}

// CurrentUser asks the provider who the bearer token belongs to, so a
// revoked session is caught even while its JWT is unexpired.
func (s *AuthService) CurrentUser(ctx context.Context, id domain.Identity) (*domain.AuthUser, error) {
	ctx, span := tracer.Start(ctx, "AuthService.CurrentUser")
	defer span.End()

	if id.Token == "" {
		return nil, &domain.ErrUnauthorized{Message: "not signed in"}
	}
	return s.provider.GetUser(ctx, id.Token)
}

// mergeGuestCart folds the guest cart into the new session's user. A
// failed merge does not fail the sign-in.
func (s *AuthService) mergeGuestCart(ctx context.Context, id domain.Identity, sess *domain.AuthSession) {
	if id.SessionID == "" || sess.AccessToken == "" || sess.User == nil {
		return
	}
	n, err := s.carts.Merge(ctx, sess.User.ID, id.SessionID)
	if err != nil {
		s.logger.Warn("guest cart merge failed",
			zap.String("user_id", sess.User.ID),
			zap.Error(err),
		)
	}
	sess.MergedCartItems = n
}
