package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/naijastore/naijastore-api/internal/domain"
)

// ============================================================
// GoTrue: /auth/v1
// ============================================================

// gotrueReply covers both token responses and the bare user object
// GoTrue returns from signup when email confirmation is required.
type gotrueReply struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	TokenType    string           `json:"token_type"`
	ExpiresIn    int              `json:"expires_in"`
	User         *domain.AuthUser `json:"user"`

	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (r *gotrueReply) session() *domain.AuthSession {
	s := &domain.AuthSession{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		ExpiresIn:    r.ExpiresIn,
		User:         r.User,
	}
	if s.User == nil && r.ID != "" {
		s.User = &domain.AuthUser{ID: r.ID, Email: r.Email, UserMetadata: r.UserMetadata}
	}
	return s
}

func (c *Client) authCall(ctx context.Context, op string, rq call) (*domain.AuthSession, error) {
	if rq.bearer == "" {
		rq.bearer = c.apiKey
	}
	resp, err := c.execute(ctx, op, rq)
	if err != nil {
		return nil, err
	}
	var reply gotrueReply
	if err := json.Unmarshal(resp.body, &reply); err != nil {
		return nil, fmt.Errorf("decode %s reply: %w", op, err)
	}
	return reply.session(), nil
}

func (c *Client) SignUp(ctx context.Context, req *domain.SignupRequest) (*domain.AuthSession, error) {
	meta := map[string]any{}
	if req.FullName != "" {
		meta["full_name"] = req.FullName
	}
	if req.Phone != "" {
		meta["phone"] = req.Phone
	}
	return c.authCall(ctx, "AuthSignUp", call{
		method: http.MethodPost,
		path:   "auth/v1/signup",
		body: map[string]any{
			"email":    req.Email,
			"password": req.Password,
			"data":     meta,
		},
	})
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.AuthSession, error) {
	return c.authCall(ctx, "AuthSignIn", call{
		method: http.MethodPost,
		path:   "auth/v1/token?grant_type=password",
		body:   map[string]string{"email": email, "password": password},
	})
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*domain.AuthSession, error) {
	return c.authCall(ctx, "AuthRefresh", call{
		method: http.MethodPost,
		path:   "auth/v1/token?grant_type=refresh_token",
		body:   map[string]string{"refresh_token": refreshToken},
	})
}

// SignOut revokes the refresh tokens of the session behind accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	_, err := c.execute(ctx, "AuthSignOut", call{
		method: http.MethodPost,
		path:   "auth/v1/logout",
		bearer: accessToken,
	})
	return err
}

// GetUser returns the GoTrue user for accessToken.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*domain.AuthUser, error) {
	resp, err := c.execute(ctx, "AuthGetUser", call{
		method: http.MethodGet,
		path:   "auth/v1/user",
		bearer: accessToken,
	})
	if err != nil {
		return nil, err
	}
	var u domain.AuthUser
	if err := json.Unmarshal(resp.body, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &u, nil
}
