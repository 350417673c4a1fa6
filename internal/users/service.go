// Package users registers storefront accounts and logs them in. Both
// operations answer with a signed bearer token carrying the user's id,
// email and role.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/roastdirect/internal/auth"
	"github.com/joao-fontenele/roastdirect/internal/domain"
	"github.com/joao-fontenele/roastdirect/internal/store"
)

var (
	tracer = otel.Tracer("users/service")
	meter  = otel.Meter("users/service")
)

type Hasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

type Service struct {
	users       store.UserStore
	hasher      Hasher
	signer      *auth.Signer
	tokenTTL    time.Duration
	adminSignup bool
	logger      *slog.Logger
	now         func() time.Time

	registered   metric.Int64Counter
	loginsFailed metric.Int64Counter
}

type Option func(*Service)

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.tokenTTL = ttl
	}
}

// WithAdminSignup lets callers register themselves with the admin role.
func WithAdminSignup(enabled bool) Option {
	return func(s *Service) {
		s.adminSignup = enabled
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(users store.UserStore, hasher Hasher, signer *auth.Signer, logger *slog.Logger, opts ...Option) (*Service, error) {
	s := &Service{
		users:    users,
		hasher:   hasher,
		signer:   signer,
		tokenTTL: 7 * 24 * time.Hour,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.registered, err = meter.Int64Counter("users.registered",
		metric.WithDescription("Accounts created")); err != nil {
		return nil, err
	}
	if s.loginsFailed, err = meter.Int64Counter("users.logins_failed",
		metric.WithDescription("Login attempts rejected for bad credentials")); err != nil {
		return nil, err
	}

	return s, nil
}

type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

func (in *RegisterInput) validate(adminSignup bool) error {
	required := []struct {
		field string
		value string
	}{
		{"email", in.Email},
		{"password", in.Password},
		{"first_name", in.FirstName},
		{"last_name", in.LastName},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return domain.Validation("%s is required", r.field)
		}
	}

	email := strings.TrimSpace(in.Email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return domain.Validation("invalid email format")
	}
	if len(in.Password) > MaxPasswordBytes {
		return domain.Validation("password must be at most %d bytes", MaxPasswordBytes)
	}

	if in.Role == "" {
		in.Role = string(auth.RoleCustomer)
	}
	switch auth.Role(in.Role) {
	case auth.RoleCustomer:
	case auth.RoleAdmin:
		if !adminSignup {
			return domain.Forbidden("admin accounts cannot be self-registered")
		}
	default:
		return domain.Validation("Invalid role specified")
	}
	return nil
}

// Session is what a successful register or login hands back.
type Session struct {
	Token string
	User  *domain.User
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	ctx, span := tracer.Start(ctx, "users.register")
	defer span.End()

	if err := in.validate(s.adminSignup); err != nil {
		return nil, s.fail(span, err)
	}
	email := domain.NormalizeEmail(in.Email)

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("look up user: %w", err))
	}
	if existing != nil {
		return nil, s.fail(span, domain.Conflict("User already exists with this email"))
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("hash password: %w", err))
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// a concurrent signup for the same email surfaces here as a conflict
	if err := s.users.Create(ctx, user); err != nil {
		return nil, s.fail(span, err)
	}
	span.SetAttributes(attribute.String("user.id", user.ID), attribute.String("user.role", user.Role))
	s.registered.Add(ctx, 1, metric.WithAttributes(attribute.String("role", user.Role)))

	return s.session(user)
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	ctx, span := tracer.Start(ctx, "users.login")
	defer span.End()

	if strings.TrimSpace(email) == "" || password == "" {
		return nil, s.fail(span, domain.Validation("Email and password are required"))
	}

	user, err := s.users.FindByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("look up user: %w", err))
	}
	if user == nil || !s.hasher.Compare(user.PasswordHash, password) {
		s.loginsFailed.Add(ctx, 1)
		return nil, s.fail(span, domain.Unauthorized("Invalid email or password"))
	}
	span.SetAttributes(attribute.String("user.id", user.ID))

	return s.session(user)
}

func (s *Service) session(user *domain.User) (*Session, error) {
	token, err := s.signer.Sign(auth.Identity{
		UserID: user.ID,
		Email:  user.Email,
		Role:   auth.Role(user.Role),
	}, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{Token: token, User: user}, nil
}

// fail records err on the span. Classified errors are expected outcomes and
// do not mark the span as failed.
func (s *Service) fail(span trace.Span, err error) error {
	var classified *domain.Error
	if !errors.As(err, &classified) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.String("user.rejection", classified.Message))
	}
	return err
}
