package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/supratours/virements/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo    Repository
	auditor shared.Auditor
	now     func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, auditor: shared.NopAuditor{}, now: time.Now}
}

// SetAuditor records logins and account creations.
func (s *Service) SetAuditor(a shared.Auditor) {
	if a != nil {
		s.auditor = a
	}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	now := s.now().UTC()
	_ = s.repo.TouchLogin(ctx, user.ID, now)
	s.audit(ctx, shared.Actor{ID: user.ID, Email: user.Email, Name: user.Name}, "login", user.ID, now)
	return user, nil
}

// Email returns the address of a user. Inactive users count as unknown.
func (s *Service) Email(ctx context.Context, id int64) (string, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if !user.IsActive {
		return "", shared.ErrNotFound
	}
	return user.Email, nil
}

// User loads a user by id.
func (s *Service) User(ctx context.Context, id int64) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

// CreateUser hashes the password and stores the account.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := shared.ValidateStruct(in); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.repo.Create(ctx, User{Email: in.Email, Name: in.Name, PasswordHash: string(hash), IsSuperuser: in.Superuser})
	var dup *shared.DuplicateError
	if errors.As(err, &dup) {
		return nil, shared.NewValidationError("email", "is already registered")
	}
	if err != nil {
		return nil, err
	}
	actor, _ := shared.ActorFromContext(ctx)
	s.audit(ctx, actor, "user.create", user.ID, s.now().UTC())
	return user, nil
}

// audit failures never block authentication.
func (s *Service) audit(ctx context.Context, actor shared.Actor, action string, userID int64, at time.Time) {
	_ = s.auditor.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		At:       at,
	})
}
