package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"travelsync/internal/domain"
	"travelsync/internal/redis"
	"travelsync/internal/repository"
)

// AuthService implements phone + one-time-code login. Verified logins
// get a signed JWT; accounts are created implicitly on first login.
type AuthService struct {
	users    repository.UserRepository
	otps     redis.OTPStoreInterface
	notifier *SMSNotifier

	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewAuthService creates a new AuthService.
func NewAuthService(users repository.UserRepository, otps redis.OTPStoreInterface, notifier *SMSNotifier, jwtSecret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		users:     users,
		otps:      otps,
		notifier:  notifier,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

// ErrInvalidToken is returned when a bearer token fails validation.
var ErrInvalidToken = errors.New("invalid token")

// RequestOTP generates a one-time code for the phone number and hands
// it to the SMS channel. The code lives in the OTP store until it
// expires or is consumed.
func (s *AuthService) RequestOTP(ctx context.Context, phone string) error {
	if phone == "" {
		return ErrInvalidPhone
	}

	code, err := generateOTP()
	if err != nil {
		return err
	}

	if err := s.otps.Put(ctx, phone, code); err != nil {
		return err
	}

	return s.notifier.SendOTP(ctx, phone, code)
}

// VerifyOTP checks the submitted code and, on success, returns a
// signed token for the (possibly just created) user.
func (s *AuthService) VerifyOTP(ctx context.Context, phone, code string) (string, *domain.User, error) {
	if phone == "" {
		return "", nil, ErrInvalidPhone
	}

	ok, err := s.otps.Verify(ctx, phone, code)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "", nil, ErrInvalidOTP
	}

	user, err := s.users.GetByPhone(ctx, phone)
	if errors.Is(err, repository.ErrNotFound) {
		user = &domain.User{
			ID:        uuid.New().String(),
			Phone:     phone,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.users.Create(ctx, user); err != nil {
			return "", nil, err
		}
	} else if err != nil {
		return "", nil, err
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return "", nil, err
	}

	return token, user, nil
}

// ValidateToken parses a bearer token and returns the user ID it was
// issued for.
func (s *AuthService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", ErrInvalidToken
	}

	return subject, nil
}

func (s *AuthService) issueToken(userID string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// generateOTP returns a 6-digit numeric code.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
