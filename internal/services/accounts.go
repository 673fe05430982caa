package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-api/internal/apperr"
	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/store"
	"github.com/harentsoaR/clinic-api/internal/utils"
)

type AccountService struct {
	store  store.Users
	tokens *utils.TokenIssuer
	log    *logrus.Logger
}

func NewAccountService(st store.Users, tokens *utils.TokenIssuer, log *logrus.Logger) *AccountService {
	return &AccountService{store: st, tokens: tokens, log: log}
}

type Registration struct {
	FullName string
	Email    string
	Password string
	Phone    string
}

// Register creates a patient account. Doctors and admins are created by an
// admin, never through self-registration.
func (s *AccountService) Register(ctx context.Context, r Registration) (*models.User, error) {
	hash, err := utils.HashPassword(r.Password)
	if err != nil {
		return nil, apperr.Persistence("failed to hash password", err)
	}
	u := &models.User{
		ID:        primitive.NewObjectID(),
		FullName:  strings.TrimSpace(r.FullName),
		Email:     strings.ToLower(strings.TrimSpace(r.Email)),
		Password:  hash,
		Role:      models.RolePatient,
		Phone:     r.Phone,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, apperr.Conflict("an account with this email already exists", nil)
		}
		return nil, storeFailure(s.log, err, "user")
	}
	s.log.WithField("userId", u.ID.Hex()).Info("patient registered")
	return u, nil
}

// Login checks credentials and returns a signed token with the user.
func (s *AccountService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	u, err := s.store.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, apperr.Unauthorized("invalid credentials")
		}
		return "", nil, storeFailure(s.log, err, "user")
	}
	if !utils.CheckPasswordHash(password, u.Password) {
		return "", nil, apperr.Unauthorized("invalid credentials")
	}
	u.Role = models.NormalizeRole(u.Role)
	token, err := s.tokens.Generate(u.ID.Hex(), u.Role)
	if err != nil {
		s.log.WithError(err).Error("could not sign token")
		return "", nil, apperr.Persistence("could not generate token", err)
	}
	return token, u, nil
}

func (s *AccountService) Me(ctx context.Context, p Principal) (*models.User, error) {
	u, err := s.store.FindUserByID(ctx, p.UserID)
	if err != nil {
		return nil, storeFailure(s.log, err, "user")
	}
	return u, nil
}

func (s *AccountService) Rename(ctx context.Context, p Principal, fullName string) error {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return apperr.Validation("no update fields provided")
	}
	if err := s.store.UpdateUserName(ctx, p.UserID, fullName); err != nil {
		return storeFailure(s.log, err, "user")
	}
	return nil
}

// EnsureAdmin creates the bootstrap admin account if no account uses email.
func (s *AccountService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := s.store.FindUserByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return storeFailure(s.log, err, "user")
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return apperr.Persistence("failed to hash password", err)
	}
	u := &models.User{
		ID:        primitive.NewObjectID(),
		FullName:  "Administrator",
		Email:     email,
		Password:  hash,
		Role:      models.RoleAdmin,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil && !errors.Is(err, store.ErrDuplicateKey) {
		return storeFailure(s.log, err, "user")
	}
	s.log.WithField("email", email).Info("bootstrap admin ensured")
	return nil
}
