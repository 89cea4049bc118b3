package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-manager/internal/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	OTPLength      = 6
	MaxOTPAttempts = 5
)

var (
	ErrChallengeNotFound = errors.New("otp challenge not found or expired")
	ErrInvalidOTP        = errors.New("invalid otp code")
	ErrTooManyAttempts   = errors.New("too many otp attempts")
	ErrNoOTPDestination  = errors.New("user has no phone number for otp delivery")
)

// Challenge is a pending second-factor check. Only the bcrypt hash of the
// code is kept.
type Challenge struct {
	ID        string
	UserID    string
	CodeHash  string
	Attempts  int
	ExpiresAt time.Time
}

// OTPStore keeps challenges until they are verified or expire.
type OTPStore interface {
	Save(ctx context.Context, c Challenge, ttl time.Duration) error
	Get(ctx context.Context, id string) (*Challenge, error)
	IncrementAttempts(ctx context.Context, id string) (int, error)
	Delete(ctx context.Context, id string) error
}

// OTPSender delivers a code to the user.
type OTPSender interface {
	SendOTP(ctx context.Context, destination, code string) error
}

// LogSender writes codes to the log instead of sending them. It is the
// sender used when no SMS gateway is configured.
type LogSender struct{}

func (LogSender) SendOTP(_ context.Context, destination, code string) error {
	log.WithFields(log.Fields{"destination": maskPhone(destination), "code": code}).Info("OTP issued")
	return nil
}

// OTPService runs the login second factor.
type OTPService struct {
	store    OTPStore
	sender   OTPSender
	ttl      time.Duration
	now      func() time.Time
	generate func() (string, error)
}

// NewOTPService creates an OTPService whose codes live for ttl.
func NewOTPService(store OTPStore, sender OTPSender, ttl time.Duration) *OTPService {
	if sender == nil {
		sender = LogSender{}
	}
	return &OTPService{
		store:    store,
		sender:   sender,
		ttl:      ttl,
		now:      time.Now,
		generate: generateCode,
	}
}

// Start issues a new code for user and returns the challenge to verify it against.
func (s *OTPService) Start(ctx context.Context, user *models.User) (*models.LoginChallenge, error) {
	if user.Phone == "" {
		return nil, ErrNoOTPDestination
	}
	code, err := s.generate()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash otp: %w", err)
	}

	c := Challenge{
		ID:        uuid.NewString(),
		UserID:    user.ID.Hex(),
		CodeHash:  string(hash),
		ExpiresAt: s.now().Add(s.ttl).UTC(),
	}
	if err := s.store.Save(ctx, c, s.ttl); err != nil {
		return nil, fmt.Errorf("save otp challenge: %w", err)
	}
	if err := s.sender.SendOTP(ctx, user.Phone, code); err != nil {
		_ = s.store.Delete(ctx, c.ID)
		return nil, fmt.Errorf("send otp: %w", err)
	}

	return &models.LoginChallenge{
		ChallengeID: c.ID,
		ExpiresAt:   c.ExpiresAt,
		Destination: maskPhone(user.Phone),
	}, nil
}

// Verify checks code against the challenge and returns the user id it was
// issued for. A challenge is consumed by a correct code, by expiry or by
// MaxOTPAttempts wrong codes.
func (s *OTPService) Verify(ctx context.Context, challengeID, code string) (string, error) {
	c, err := s.store.Get(ctx, challengeID)
	if err != nil {
		return "", err
	}
	if !s.now().Before(c.ExpiresAt) {
		_ = s.store.Delete(ctx, challengeID)
		return "", ErrChallengeNotFound
	}
	if c.Attempts >= MaxOTPAttempts {
		_ = s.store.Delete(ctx, challengeID)
		return "", ErrTooManyAttempts
	}

	if bcrypt.CompareHashAndPassword([]byte(c.CodeHash), []byte(code)) != nil {
		attempts, err := s.store.IncrementAttempts(ctx, challengeID)
		if err != nil {
			return "", fmt.Errorf("record otp attempt: %w", err)
		}
		if attempts >= MaxOTPAttempts {
			_ = s.store.Delete(ctx, challengeID)
			return "", ErrTooManyAttempts
		}
		return "", ErrInvalidOTP
	}

	if err := s.store.Delete(ctx, challengeID); err != nil {
		return "", fmt.Errorf("consume otp challenge: %w", err)
	}
	return c.UserID, nil
}

func generateCode() (string, error) {
	max := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", OTPLength, n.Int64()), nil
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	masked := make([]byte, len(phone))
	for i := range phone {
		if i < len(phone)-4 {
			masked[i] = '*'
		} else {
			masked[i] = phone[i]
		}
	}
	return string(masked)
}
