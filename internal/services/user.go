package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rideshare-app/apiserver/internal/observability"
	"github.com/rideshare-app/apiserver/internal/store"
	"github.com/rideshare-app/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByMobile(ctx context.Context, mobile string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	SetCode(ctx context.Context, id, code string, expiresAt time.Time) error
	SetRole(ctx context.Context, id string, role types.Role) error
	ConsumeCode(ctx context.Context, id, code string, now time.Time, passwordHash string) error
}

// Session is the result of a successful sign-in.
type Session struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      types.User `json:"user"`
}

// UserService encapsulates the sign-in and password use-cases.
type UserService struct {
	repo   UserRepository
	tokens *TokenIssuer
	runtime
}

func NewUserService(repo UserRepository, tokens *TokenIssuer, opts ...Option) *UserService {
	return &UserService{repo: repo, tokens: tokens, runtime: newRuntime(opts)}
}

// RequestCode issues a sign-in code for mobile, creating the account on
// first contact. An empty role means passenger.
func (s *UserService) RequestCode(ctx context.Context, mobile string, role types.Role) error {
	if mobile == "" {
		return invalid("Mobile number is required")
	}
	mobile, err := normalizeMobile(mobile)
	if err != nil {
		return err
	}
	if role != "" && !role.Valid() {
		return ErrInvalidRole
	}
	if role == "" {
		role = types.RolePassenger
	}
	if err := s.allow(ctx, mobile); err != nil {
		return err
	}

	code, err := GenerateCode()
	if err != nil {
		return internalError("request code", err)
	}
	expiresAt := s.now().Add(CodeTTL)

	user, err := s.repo.GetByMobile(ctx, mobile)
	if errors.Is(err, store.ErrNotFound) {
		user, err = s.repo.Create(ctx, types.User{
			Mobile:       mobile,
			Role:         role,
			OTP:          code,
			OTPExpiresAt: &expiresAt,
		})
		if err == nil {
			return s.deliver(ctx, user, code, expiresAt, types.PurposeSignIn)
		}
		if errors.Is(err, store.ErrDuplicate) {
			// Lost a first-contact race; fall through to the existing account.
			user, err = s.repo.GetByMobile(ctx, mobile)
		}
	}
	if err != nil {
		return internalError("request code", err)
	}

	if user, err = s.normalizeRole(ctx, user, role); err != nil {
		return err
	}
	if err := s.repo.SetCode(ctx, user.ID, code, expiresAt); err != nil {
		return internalError("request code", err)
	}
	return s.deliver(ctx, user, code, expiresAt, types.PurposeSignIn)
}

// VerifyCode consumes a sign-in code and starts a session.
func (s *UserService) VerifyCode(ctx context.Context, mobile, code string) (Session, error) {
	if mobile == "" || code == "" {
		return Session{}, invalid("Mobile and OTP are required")
	}
	mobile, err := normalizeMobile(mobile)
	if err != nil {
		return Session{}, err
	}

	user, err := s.loadByMobile(ctx, mobile)
	if err != nil {
		return Session{}, err
	}
	if err := s.consume(ctx, user.ID, code, "", types.PurposeSignIn); err != nil {
		return Session{}, err
	}
	user.OTP = ""
	user.OTPExpiresAt = nil

	s.logger.InfoContext(ctx, "user signed in", slog.String("user_id", user.ID), slog.String("method", "otp"))
	return s.session(user)
}

// Login checks a password and starts a session.
func (s *UserService) Login(ctx context.Context, mobile, password string) (Session, error) {
	if mobile == "" || password == "" {
		return Session{}, invalid("Mobile and password are required")
	}
	mobile, err := normalizeMobile(mobile)
	if err != nil {
		return Session{}, err
	}

	user, err := s.loadByMobile(ctx, mobile)
	if errors.Is(err, ErrUserNotFound) {
		observability.LoginsTotal.WithLabelValues("unknown_user").Inc()
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if !user.HasPassword() {
		observability.LoginsTotal.WithLabelValues("no_password").Inc()
		return Session{}, ErrPasswordNotSet
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		observability.LoginsTotal.WithLabelValues("bad_password").Inc()
		return Session{}, ErrInvalidCredentials
	}

	observability.LoginsTotal.WithLabelValues("ok").Inc()
	s.logger.InfoContext(ctx, "user signed in", slog.String("user_id", user.ID), slog.String("method", "password"))
	return s.session(user)
}

// RequestPasswordReset issues a reset code for an existing account.
func (s *UserService) RequestPasswordReset(ctx context.Context, mobile string) error {
	if mobile == "" {
		return invalid("Mobile number is required")
	}
	mobile, err := normalizeMobile(mobile)
	if err != nil {
		return err
	}

	user, err := s.loadByMobile(ctx, mobile)
	if err != nil {
		return err
	}
	if err := s.allow(ctx, mobile); err != nil {
		return err
	}

	code, err := GenerateCode()
	if err != nil {
		return internalError("request password reset", err)
	}
	expiresAt := s.now().Add(CodeTTL)
	if err := s.repo.SetCode(ctx, user.ID, code, expiresAt); err != nil {
		return internalError("request password reset", err)
	}
	return s.deliver(ctx, user, code, expiresAt, types.PurposePasswordReset)
}

// ResetPassword consumes a reset code and stores a new password.
func (s *UserService) ResetPassword(ctx context.Context, mobile, code, newPassword string) error {
	if mobile == "" || code == "" || newPassword == "" {
		return invalid("Mobile, OTP and new password are required")
	}
	mobile, err := normalizeMobile(mobile)
	if err != nil {
		return err
	}
	if len(newPassword) < minPasswordLength {
		return ErrPasswordTooShort
	}

	user, err := s.loadByMobile(ctx, mobile)
	if err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return ErrPasswordTooLong
	}
	if err != nil {
		return internalError("reset password", err)
	}

	if err := s.consume(ctx, user.ID, code, string(hashed), types.PurposePasswordReset); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "password reset", slog.String("user_id", user.ID))
	return nil
}

// Profile returns the account behind a session.
func (s *UserService) Profile(ctx context.Context, userID string) (types.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, ErrUserNotFound
	}
	if err != nil {
		return types.User{}, internalError("load profile", err)
	}
	return s.normalizeRole(ctx, user, types.RolePassenger)
}

// Authenticate resolves a bearer token to the caller identity.
func (s *UserService) Authenticate(token string) (Identity, error) {
	identity, err := s.tokens.Parse(token)
	if err != nil {
		return Identity{}, ErrUnauthenticated
	}
	return identity, nil
}

func (s *UserService) loadByMobile(ctx context.Context, mobile string) (types.User, error) {
	user, err := s.repo.GetByMobile(ctx, mobile)
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, ErrUserNotFound
	}
	if err != nil {
		return types.User{}, internalError("load user", err)
	}
	return s.normalizeRole(ctx, user, types.RolePassenger)
}

// normalizeRole backfills the role of accounts stored without one. Every
// path that loads a user goes through here.
func (s *UserService) normalizeRole(ctx context.Context, user types.User, fallback types.Role) (types.User, error) {
	if user.Role.Valid() {
		return user, nil
	}
	if err := s.repo.SetRole(ctx, user.ID, fallback); err != nil {
		return types.User{}, internalError("backfill role", err)
	}
	s.logger.InfoContext(ctx, "backfilled user role", slog.String("user_id", user.ID), slog.String("role", string(fallback)))
	user.Role = fallback
	return user, nil
}

func (s *UserService) consume(ctx context.Context, userID, code, passwordHash string, purpose types.CodePurpose) error {
	err := s.repo.ConsumeCode(ctx, userID, code, s.now(), passwordHash)
	if errors.Is(err, store.ErrNotFound) {
		observability.CodeChecksTotal.WithLabelValues(string(purpose), "rejected").Inc()
		return ErrInvalidOrExpiredCode
	}
	if err != nil {
		return internalError("consume code", err)
	}
	observability.CodeChecksTotal.WithLabelValues(string(purpose), "ok").Inc()
	return nil
}

func (s *UserService) allow(ctx context.Context, mobile string) error {
	if s.throttle == nil {
		return nil
	}
	ok, err := s.throttle.Allow(ctx, mobile)
	if err != nil {
		// The throttle is best effort; an outage must not block sign-in.
		s.logger.WarnContext(ctx, "code throttle unavailable", slog.Any("error", err))
		return nil
	}
	if !ok {
		observability.CodeThrottledTotal.Inc()
		return ErrTooManyCodeRequests
	}
	return nil
}

func (s *UserService) deliver(ctx context.Context, user types.User, code string, expiresAt time.Time, purpose types.CodePurpose) error {
	err := s.notifier.DeliverCode(ctx, types.CodeDelivery{
		Mobile:    user.Mobile,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return internalError("deliver code", err)
	}
	observability.CodesIssuedTotal.WithLabelValues(string(purpose)).Inc()
	s.logger.InfoContext(ctx, "code issued", slog.String("user_id", user.ID), slog.String("purpose", string(purpose)))
	return nil
}

func (s *UserService) session(user types.User) (Session, error) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return Session{}, internalError("issue token", err)
	}
	return Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}
