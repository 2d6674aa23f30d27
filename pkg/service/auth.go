package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"virtualcard_back/models"
	"virtualcard_back/pkg/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

const (
	purposeSession = "session"
	purposeVerify  = "verify"

	verifyTokenTTL = 48 * time.Hour
)

type tokenClaims struct {
	jwt.RegisteredClaims
	UserID  int64  `json:"id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	Purpose string `json:"purpose"`
}

type AuthService struct {
	repos    repository.Authorization
	provider CardProvider
	notifier Notifier
	secret   []byte
	ttl      time.Duration
	log      logrus.FieldLogger
}

func NewAuthService(repos repository.Authorization, p CardProvider, n Notifier, secret string,
	ttl time.Duration, log logrus.FieldLogger) *AuthService {
	return &AuthService{
		repos:    repos,
		provider: p,
		notifier: n,
		secret:   []byte(secret),
		ttl:      ttl,
		log:      log,
	}
}

// Register stores the user, then tries to create the provider cardholder and sends the
// verification mail. Neither of the last two can fail the registration.
func (s *AuthService) Register(ctx context.Context, input models.RegisterInput) (int64, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.FirstName == "" || input.LastName == "" || input.Email == "" || input.Password == "" {
		return 0, &ValidationError{Message: "First name, last name, email, and password are required"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return 0, err
	}
	user := models.User{
		FirstName:    input.FirstName,
		MidName:      input.MidName,
		LastName:     input.LastName,
		Gender:       input.Gender,
		DateOfBirth:  input.DateOfBirth,
		Email:        input.Email,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
	}
	id, err := s.repos.CreateUser(ctx, user)
	if errors.Is(err, repository.ErrDuplicateUser) {
		return 0, &ValidationError{Message: "User already exists"}
	}
	if err != nil {
		return 0, err
	}
	user.ID = id
	log := s.log.WithField("user_id", id)

	if s.provider != nil {
		holderID, err := s.provider.CreateCardholder(ctx, cardholderRequest(user, defaultCardPurpose), uuid.NewString())
		if err != nil {
			log.WithError(err).Warn("cardholder creation failed")
		} else if err := s.repos.SetCardholderID(ctx, id, holderID); err != nil {
			log.WithError(err).Warn("failed to store cardholder id")
		}
	}

	if s.notifier != nil {
		token, err := s.issueToken(models.Identity{ID: id, Email: user.Email, Role: user.Role}, purposeVerify, verifyTokenTTL)
		if err != nil {
			log.WithError(err).Warn("failed to issue verification token")
		} else {
			s.notifier.SendVerification(user.Email, token)
		}
	}
	return id, nil
}

func (s *AuthService) Login(ctx context.Context, input models.LoginInput) (string, error) {
	user, err := s.repos.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(input.Email)))
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.issueToken(models.Identity{ID: user.ID, Email: user.Email, Role: user.Role}, purposeSession, s.ttl)
}

func (s *AuthService) issueToken(who models.Identity, purpose string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(who.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:  who.ID,
		Email:   who.Email,
		Role:    who.Role,
		Purpose: purpose,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseToken resolves a session bearer token to the identity it was issued for.
func (s *AuthService) ParseToken(token string) (models.Identity, error) {
	return s.parseToken(token, purposeSession)
}

// parseToken accepts only tokens issued for purpose, so a login token cannot verify an
// email and a verification link cannot be used as a session.
func (s *AuthService) parseToken(token, purpose string) (models.Identity, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return models.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Purpose != purpose {
		return models.Identity{}, fmt.Errorf("%w: issued for %q", ErrInvalidToken, claims.Purpose)
	}
	role := claims.Role
	if role == "" {
		role = models.RoleUser
	}
	return models.Identity{ID: claims.UserID, Email: claims.Email, Role: role}, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	who, err := s.parseToken(token, purposeVerify)
	if err != nil {
		return err
	}
	return s.repos.SetVerified(ctx, who.ID)
}

func (s *AuthService) Me(ctx context.Context, userID int64) (models.User, error) {
	return s.repos.GetUserByID(ctx, userID)
}
