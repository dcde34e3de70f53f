package domain

// ============================================================
// Auth: requests/responses proxied to Supabase GoTrue
// ============================================================

// SignupRequest is the body of POST /api/auth/signup.
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"max=100"`
	Phone    string `json:"phone" validate:"omitempty,ngphone"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest is the body of POST /api/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthUser is the subset of a GoTrue user the API exposes.
type AuthUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// AuthSession is a GoTrue token response.
type AuthSession struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	User         *AuthUser `json:"user,omitempty"`
	// MergedCartItems counts guest cart lines moved into the user's cart.
	MergedCartItems int `json:"merged_cart_items,omitempty"`
}

// Identity is who a request is acting as.
type Identity struct {
	UserID    string `json:"user_id,omitempty"`
	Email     string `json:"email,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Token     string `json:"-"`
}

// Authenticated reports whether the identity is a signed-in user.
func (i Identity) Authenticated() bool {
	return i.UserID != ""
}

// Owner returns the cart owner for the identity; users win over guests.
func (i Identity) Owner() CartOwner {
	if i.UserID != "" {
		return CartOwner{UserID: i.UserID}
	}
	return CartOwner{SessionID: i.SessionID}
}

// GuestSession is returned by POST /api/session.
type GuestSession struct {
	SessionID string `json:"session_id"`
	Header    string `json:"header"`
}

// Fingerprint is the browser signal set a guest session is derived from.
type Fingerprint struct {
	UserAgent      string `json:"user_agent"`
	AcceptLanguage string `json:"accept_language"`
	Platform       string `json:"platform"`
	Timezone       string `json:"timezone"`
	Screen         string `json:"screen"`
	ColorDepth     int    `json:"color_depth"`

	// User-agent client hints (Sec-CH-UA, Sec-CH-UA-Platform, Sec-CH-UA-Mobile).
	UABrands   string `json:"ua_brands,omitempty"`
	UAPlatform string `json:"ua_platform,omitempty"`
	UAMobile   string `json:"ua_mobile,omitempty"`
}
