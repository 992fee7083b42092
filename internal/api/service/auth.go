package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/agrolink/agrolink/internal/api/domain"
	"github.com/agrolink/agrolink/internal/api/notify"
	"github.com/agrolink/agrolink/internal/api/store"
	"github.com/agrolink/agrolink/pkg/cryptox"
	"github.com/agrolink/agrolink/pkg/idx"
	"github.com/agrolink/agrolink/pkg/jwtx"
)

const (
	// MinPasswordLength applies to registration, reset, and change.
	MinPasswordLength = 6

	// MinPhoneLength is the registration floor for phone numbers.
	MinPhoneLength = 6

	// ResetTokenTTL bounds how long a password-reset link stays redeemable.
	ResetTokenTTL = 10 * time.Minute
)

// AuthService implements registration, login, email verification, and the
// password lifecycle. Tokens handed to users are opaque random strings; only
// the reset token's SHA-256 fingerprint is stored.
type AuthService struct {
	users  store.Users
	tokens *jwtx.HS256
	mailer notify.Sender
	log    *slog.Logger

	// AppURL prefixes links embedded in outgoing mail.
	appURL string

	now func() time.Time
}

func NewAuthService(users store.Users, tokens *jwtx.HS256, mailer notify.Sender, appURL string, log *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		mailer: mailer,
		appURL: strings.TrimRight(appURL, "/"),
		log:    log,
		now:    time.Now,
	}
}

// RegisterInput carries a registration request. Role may be empty (defaults
// to farmer) or one of farmer/expert; admin accounts are never self-service.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Location  string
	Password  string
	Role      string
}

// Register creates an unverified account, emails a verification link, and
// returns a session token so the user is signed in immediately.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (domain.User, string, error) {
	if in.FirstName == "" || in.LastName == "" || in.Email == "" || in.Password == "" {
		return domain.User{}, "", fmt.Errorf("%w: please provide all required fields", ErrInvalidInput)
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("%w: please provide a valid email address", ErrInvalidInput)
	}
	if len(in.Password) < MinPasswordLength {
		return domain.User{}, "", fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	if len(strings.TrimSpace(in.Phone)) < MinPhoneLength {
		return domain.User{}, "", fmt.Errorf("%w: phone number must be at least %d characters", ErrInvalidInput, MinPhoneLength)
	}

	role := domain.RoleFarmer
	if in.Role != "" {
		role, err = domain.ParseRole(in.Role)
		if err != nil || role == domain.RoleAdmin {
			return domain.User{}, "", fmt.Errorf("%w: role must be farmer or expert", ErrInvalidInput)
		}
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}

	verifyToken, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("generate verification token: %w", err)
	}

	now := s.now().UTC()
	user := domain.User{
		ID:                idx.New().String(),
		FirstName:         strings.TrimSpace(in.FirstName),
		LastName:          strings.TrimSpace(in.LastName),
		Email:             email,
		Phone:             strings.TrimSpace(in.Phone),
		Location:          strings.TrimSpace(in.Location),
		PasswordHash:      hash,
		Role:              role,
		VerificationToken: verifyToken,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, "", ErrEmailTaken
		}
		return domain.User{}, "", fmt.Errorf("create user: %w", err)
	}

	s.sendMail(ctx, notify.Message{
		To:      user.Email,
		Subject: "Verify your email",
		Body: fmt.Sprintf("Hi %s,\n\nWelcome! Please verify your email address by visiting:\n\n%s/verify-email?token=%s\n",
			user.FirstName, s.appURL, verifyToken),
	})

	token, err := s.tokens.Issue(user.ID, string(user.Role))
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session token: %w", err)
	}

	return user, token, nil
}

// Login checks credentials and returns the user with a fresh session token.
// All failures surface as ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	if email == "" || password == "" {
		return domain.User{}, "", fmt.Errorf("%w: please provide email and password", ErrInvalidInput)
	}

	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn comparable time so a missing account is not
			// distinguishable by response latency.
			_ = cryptox.VerifyPassword(password, dummyHash)
			return domain.User{}, "", ErrInvalidCredentials
		}
		return domain.User{}, "", fmt.Errorf("lookup user: %w", err)
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		return domain.User{}, "", ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.log.WarnContext(ctx, "failed to record last login",
			slog.String("user_id", user.ID), slog.Any("error", err))
	}
	user.LastLoginAt = &now

	token, err := s.tokens.Issue(user.ID, string(user.Role))
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session token: %w", err)
	}

	return user, token, nil
}

// VerifyEmail consumes a verification token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%w: verification token is required", ErrInvalidInput)
	}

	user, err := s.users.GetUserByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("lookup verification token: %w", err)
	}

	if err := s.users.MarkVerified(ctx, user.ID); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return nil
}

// ForgotPassword issues a short-lived reset token and emails it. An unknown
// email is not an error: the response never reveals whether an account
// exists.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	if email == "" {
		return fmt.Errorf("%w: please provide an email address", ErrInvalidInput)
	}

	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	expiresAt := s.now().UTC().Add(ResetTokenTTL)
	if err := s.users.SetResetToken(ctx, user.ID, cryptox.FingerprintToken(token), expiresAt); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	s.sendMail(ctx, notify.Message{
		To:      user.Email,
		Subject: "Password reset request",
		Body: fmt.Sprintf("Hi %s,\n\nUse the link below to reset your password. It expires in %d minutes.\n\n%s/reset-password?token=%s\n\nIf you did not request this, you can ignore this email.\n",
			user.FirstName, int(ResetTokenTTL.Minutes()), s.appURL, token),
	})

	return nil
}

// ResetPassword redeems a reset token. The token is single-use: the stored
// fingerprint is cleared in the same write that sets the new hash.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return fmt.Errorf("%w: reset token is required", ErrInvalidInput)
	}
	if len(newPassword) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}

	user, err := s.users.GetUserByResetTokenHash(ctx, cryptox.FingerprintToken(token), s.now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("lookup reset token: %w", err)
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePasswordAndClearReset(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// ChangePassword rotates the password of a signed-in user after verifying
// the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, newPassword string) error {
	if current == "" || newPassword == "" {
		return fmt.Errorf("%w: please provide current and new passwords", ErrInvalidInput)
	}
	if len(newPassword) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	if err := cryptox.VerifyPassword(current, user.PasswordHash); err != nil {
		return fmt.Errorf("%w: current password is incorrect", ErrInvalidInput)
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *AuthService) sendMail(ctx context.Context, msg notify.Message) {
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.WarnContext(ctx, "email delivery failed",
			slog.String("to", msg.To),
			slog.String("subject", msg.Subject),
			slog.Any("error", err),
		)
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("malformed email address")
	}
	return email, nil
}

// dummyHash is a valid argon2id hash of a random throwaway password, used to
// equalise login timing when the account does not exist.
var dummyHash = func() string {
	h, err := cryptox.HashPassword("not-a-real-password")
	if err != nil {
		panic(err)
	}
	return h
}()
