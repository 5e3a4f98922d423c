package service

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/nobcorp/nobids/internal/ids/domain"
	"github.com/nobcorp/nobids/internal/ids/store"
	"github.com/nobcorp/nobids/pkg/cryptox"
	"github.com/nobcorp/nobids/pkg/idx"
	"github.com/nobcorp/nobids/pkg/jwtx"
	"github.com/nobcorp/nobids/pkg/slogx"
	"github.com/pquerna/otp/totp"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")

	// ErrOTPRequired means the password checked out but the user enrolled
	// a second factor and no code was supplied.
	ErrOTPRequired = errors.New("otp_required")

	ErrTOTPNotEnrolled = errors.New("totp not enrolled")
	ErrInvalidOTPCode  = errors.New("invalid otp code")
)

// UserService is the bundled credential store. TOTP secrets are sealed with
// the master key before they reach the database.
type UserService struct {
	Store  store.Store
	Sealer *cryptox.Sealer

	// TOTPIssuer names this server in enrolment URLs.
	TOTPIssuer string
}

// Authenticate verifies a username/password pair and, when the user has a
// second factor enrolled, the TOTP code. It returns the authentication
// methods used so callers can stamp them into the AMR claim.
//
// Failures deliberately collapse into ErrInvalidCredentials; only a correct
// password with a missing code reports ErrOTPRequired so the login form can
// prompt for it.
func (s *UserService) Authenticate(ctx context.Context, username, password, otpCode string) (domain.User, []string, error) {
	l := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, nil, ErrInvalidCredentials
		}
		return domain.User{}, nil, err
	}

	if user.Disabled {
		l.Warn("login attempt on disabled account", "user_id", user.ID)
		return domain.User{}, nil, ErrInvalidCredentials
	}

	if cryptox.VerifyPassword(password, user.PasswordHash) != nil {
		return domain.User{}, nil, ErrInvalidCredentials
	}

	amr := []string{jwtx.AMRPassword}

	if user.TOTPEnabled != nil {
		if otpCode == "" {
			return domain.User{}, nil, ErrOTPRequired
		}
		secret, err := s.unsealTOTPSecret(user)
		if err != nil {
			l.Error("failed to unseal totp secret", "error", err, "user_id", user.ID)
			return domain.User{}, nil, err
		}
		if !totp.Validate(otpCode, secret) {
			return domain.User{}, nil, ErrInvalidCredentials
		}
		amr = append(amr, jwtx.AMROTP)
	}

	return user, amr, nil
}

// CreateUser registers a new end user.
func (s *UserService) CreateUser(ctx context.Context, username, preferredName, password string) (string, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return "", err
	}
	id := idx.New().String()
	err = s.Store.Users().CreateUser(ctx, domain.User{
		ID:            id,
		Username:      username,
		PreferredName: preferredName,
		PasswordHash:  hash,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetUserByID fetches a user by id.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, userID)
}

// ChangePassword verifies the current password before storing a new hash.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if cryptox.VerifyPassword(current, user.PasswordHash) != nil {
		return ErrInvalidCredentials
	}
	hash, err := cryptox.HashPassword(next)
	if err != nil {
		return err
	}
	return s.Store.Users().UpdatePasswordHash(ctx, userID, hash)
}

// BeginTOTPEnrollment generates a fresh TOTP secret for the user. Nothing is
// persisted until ActivateTOTP proves the authenticator has the secret.
func (s *UserService) BeginTOTPEnrollment(ctx context.Context, userID string) (secret, url string, err error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return "", "", err
	}

	issuer := s.TOTPIssuer
	if issuer == "" {
		issuer = "nobids"
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: user.Username,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// ActivateTOTP enrolls the second factor once the user proves possession of
// the secret with a valid code.
func (s *UserService) ActivateTOTP(ctx context.Context, userID, secret, code string) error {
	if !totp.Validate(code, secret) {
		return ErrInvalidOTPCode
	}
	sealed, err := s.Sealer.Seal([]byte(secret))
	if err != nil {
		return err
	}
	encoded := base64.StdEncoding.EncodeToString(sealed)
	return s.Store.Users().SetTOTP(ctx, userID, encoded, time.Now().UTC())
}

// DisableTOTP removes the second factor.
func (s *UserService) DisableTOTP(ctx context.Context, userID string) error {
	return s.Store.Users().ClearTOTP(ctx, userID)
}

func (s *UserService) unsealTOTPSecret(user domain.User) (string, error) {
	if user.TOTPSecret == nil || *user.TOTPSecret == "" {
		return "", ErrTOTPNotEnrolled
	}
	sealed, err := base64.StdEncoding.DecodeString(*user.TOTPSecret)
	if err != nil {
		return "", err
	}
	plain, err := s.Sealer.Open(sealed)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
