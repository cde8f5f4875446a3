package api

import (
	"context"
)

// AuthService wraps the /api/auth endpoints.
type AuthService struct {
	c *Client
}

// Credentials is the payload returned by login and signup.
type Credentials struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates with email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Credentials, error) {
	resp, err := s.c.post(ctx, "/api/auth/login", loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	var creds Credentials
	if err := decode(resp, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// Signup creates an account and authenticates in one step.
func (s *AuthService) Signup(ctx context.Context, name, email, password string) (*Credentials, error) {
	resp, err := s.c.post(ctx, "/api/auth/signup", signupRequest{Name: name, Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	var creds Credentials
	if err := decode(resp, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// Logout invalidates the server-side session.
func (s *AuthService) Logout(ctx context.Context) error {
	resp, err := s.c.post(ctx, "/api/auth/logout", nil)
	if err != nil {
		return err
	}
	return decode(resp, nil)
}

// Me resolves the identity behind the current token.
func (s *AuthService) Me(ctx context.Context) (*User, error) {
	resp, err := s.c.get(ctx, "/api/auth/me")
	if err != nil {
		return nil, err
	}
	var data struct {
		User User `json:"user"`
	}
	if err := decode(resp, &data); err != nil {
		return nil, err
	}
	return &data.User, nil
}
