package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/UkralStul/echonymous/internal/auth"
	"github.com/UkralStul/echonymous/internal/domain"
	"github.com/UkralStul/echonymous/internal/validation"
)

type SignupInput struct {
	Email    string `json:"email" validate:"notblank,email"`
	Username string `json:"username" validate:"notblank"`
	Password string `json:"password" validate:"min=8"`
}

type LoginInput struct {
	Username string `json:"username" validate:"notblank"`
	Password string `json:"password" validate:"required"`
}

var signupMessages = validation.Messages{
	"Email.notblank":    "Email cannot be blank.",
	"Email.email":       "Email should be valid.",
	"Username.notblank": "Username cannot be blank.",
	"Password.min":      "Password must be at least 8 characters.",
}

// Session is a signed-in user and the token that authenticates them.
type Session struct {
	Token string
	User  *domain.User
}

// Signup creates an account and signs the new user in.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	if err := validation.Struct(in, signupMessages); err != nil {
		return nil, err
	}

	if _, err := s.store.GetUserByUsername(ctx, in.Username); err == nil {
		return nil, domain.Validation("Username already exists.")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if _, err := s.store.GetUserByEmail(ctx, in.Email); err == nil {
		return nil, domain.Validation("Email already exists.")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash password")
	}

	user, err := s.store.CreateUser(ctx, &domain.User{
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("userId", user.ID).Str("username", user.Username).Msg("user signed up")

	return s.session(user)
}

// Login checks the password of an existing user.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	if err := validation.Struct(in, nil); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(user.PasswordHash, in.Password) {
		log.Warn().Str("username", in.Username).Msg("login failed")
		return nil, domain.Unauthorized("Invalid username or password.")
	}
	log.Info().Str("userId", user.ID).Msg("user logged in")

	return s.session(user)
}

func (s *Service) session(user *domain.User) (*Session, error) {
	token, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: user}, nil
}
