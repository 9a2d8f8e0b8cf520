package apiclient

import (
	"context"
	"net/http"

	"github.com/cafe-delivery/storefront/internal/domain"
)

// Credentials is the login payload.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Tokens is the JWT pair returned by login.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Registration is the sign-up payload.
type Registration struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Password2   string `json:"password2"`
	PhoneNumber string `json:"phone_number,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
}

// ProfileUpdate is the editable part of the profile.
type ProfileUpdate struct {
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Address     string `json:"address"`
}

// PasswordChange is the password change payload.
type PasswordChange struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, creds Credentials) (Tokens, error) {
	var tokens Tokens
	if err := c.do(ctx, http.MethodPost, "/auth/login/", nil, creds, &tokens); err != nil {
		return Tokens{}, err
	}
	return tokens, nil
}

// Register creates a customer account.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	return c.do(ctx, http.MethodPost, "/auth/register/", nil, reg, nil)
}

// RefreshToken exchanges a refresh token for a new access token.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	var resp struct {
		Access string `json:"access"`
	}
	body := map[string]string{"refresh": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/auth/token/refresh/", nil, body, &resp); err != nil {
		return "", err
	}
	return resp.Access, nil
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (domain.User, error) {
	var user domain.User
	if err := c.do(ctx, http.MethodGet, "/auth/me/", nil, nil, &user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// UpdateProfile saves the profile and returns the stored user.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (domain.User, error) {
	var user domain.User
	if err := c.do(ctx, http.MethodPut, "/auth/update/", nil, update, &user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// ChangePassword changes the signed-in user's password.
func (c *Client) ChangePassword(ctx context.Context, change PasswordChange) error {
	return c.do(ctx, http.MethodPost, "/auth/password/change/", nil, change, nil)
}
