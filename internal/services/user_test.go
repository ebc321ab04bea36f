package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rideshare-app/apiserver/internal/services"
	"github.com/rideshare-app/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubThrottle struct {
	allow bool
	err   error
	keys  []string
}

func (s *stubThrottle) Allow(_ context.Context, key string) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allow, s.err
}

func TestRequestCodeCreatesPassenger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.users.RequestCode(ctx, "9876543210", ""))

	user, err := f.mem.Users().GetByMobile(ctx, "9876543210")
	require.NoError(t, err)
	assert.Equal(t, types.RolePassenger, user.Role)

	delivery := f.notifier.lastCode(t, "9876543210")
	assert.Regexp(t, `^[1-9]\d{5}$`, delivery.Code)
	assert.Equal(t, delivery.Code, user.OTP)
	assert.Equal(t, types.PurposeSignIn, delivery.Purpose)
	assert.Equal(t, f.clock.Now().Add(services.CodeTTL), delivery.ExpiresAt)
}

func TestRequestCodeValidation(t *testing.T) {
	tests := []struct {
		name   string
		mobile string
		role   types.Role
		want   error
	}{
		{name: "too short", mobile: "98765", want: services.ErrInvalidMobile},
		{name: "bad prefix", mobile: "5876543210", want: services.ErrInvalidMobile},
		{name: "too long", mobile: "98765432101", want: services.ErrInvalidMobile},
		{name: "letters", mobile: "98765abc10", want: services.ErrInvalidMobile},
		{name: "leading space", mobile: " 9876543210", want: services.ErrInvalidMobile},
		{name: "trailing newline", mobile: "9876543210\n", want: services.ErrInvalidMobile},
		{name: "padded with tab and space", mobile: "\t9876543210 ", want: services.ErrInvalidMobile},
		{name: "blank", mobile: "  ", want: services.ErrInvalidMobile},
		{name: "bad role", mobile: "9876543210", role: "pilot", want: services.ErrInvalidRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			err := f.users.RequestCode(context.Background(), tt.mobile, tt.role)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, services.KindValidation, services.KindOf(err))
		})
	}

	f := newFixture(t)
	err := f.users.RequestCode(context.Background(), "", "")
	assert.Equal(t, services.KindValidation, services.KindOf(err))
	_, err = f.mem.Users().GetByMobile(context.Background(), "9876543210")
	assert.Error(t, err, "no account is created for a rejected number")
}

func TestPaddedMobileRejectedEverywhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.seedUser(t, types.RolePassenger)
	padded := " " + user.Mobile

	_, err := f.users.VerifyCode(ctx, padded, "123456")
	assert.ErrorIs(t, err, services.ErrInvalidMobile)
	_, err = f.users.Login(ctx, padded, "secret1")
	assert.ErrorIs(t, err, services.ErrInvalidMobile)
	assert.ErrorIs(t, f.users.RequestPasswordReset(ctx, padded), services.ErrInvalidMobile)
	assert.ErrorIs(t, f.users.ResetPassword(ctx, padded, "123456", "secret1"), services.ErrInvalidMobile)
}

func TestRequestCodeReissueInvalidatesPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mobile := f.mobile()

	require.NoError(t, f.users.RequestCode(ctx, mobile, ""))
	first := f.notifier.lastCode(t, mobile).Code
	require.NoError(t, f.users.RequestCode(ctx, mobile, ""))
	second := f.notifier.lastCode(t, mobile).Code

	if first != second {
		_, err := f.users.VerifyCode(ctx, mobile, first)
		assert.ErrorIs(t, err, services.ErrInvalidOrExpiredCode)
	}
	_, err := f.users.VerifyCode(ctx, mobile, second)
	require.NoError(t, err)

	require.NoError(t, f.users.RequestPasswordReset(ctx, mobile))
	firstReset := f.notifier.lastCode(t, mobile).Code
	require.NoError(t, f.users.RequestPasswordReset(ctx, mobile))
	secondReset := f.notifier.lastCode(t, mobile).Code

	if firstReset != secondReset {
		err = f.users.ResetPassword(ctx, mobile, firstReset, "secret1")
		assert.ErrorIs(t, err, services.ErrInvalidOrExpiredCode)
	}
	require.NoError(t, f.users.ResetPassword(ctx, mobile, secondReset, "secret1"))
	_, err = f.users.Login(ctx, mobile, "secret1")
	assert.NoError(t, err)
}

func TestSubmittedCodeIsComparedAsIs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mobile := f.mobile()

	require.NoError(t, f.users.RequestCode(ctx, mobile, ""))
	code := f.notifier.lastCode(t, mobile).Code

	_, err := f.users.VerifyCode(ctx, mobile, " "+code)
	assert.ErrorIs(t, err, services.ErrInvalidOrExpiredCode)
	_, err = f.users.VerifyCode(ctx, mobile, code+"\n")
	assert.ErrorIs(t, err, services.ErrInvalidOrExpiredCode)

	_, err = f.users.VerifyCode(ctx, mobile, code)
	assert.NoError(t, err, "a rejected attempt does not consume the code")
}

func TestRequestCodeRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	driver := f.seedUser(t, types.RoleDriver)
	require.NoError(t, f.users.RequestCode(ctx, driver.Mobile, types.RolePassenger))
	got, err := f.mem.Users().GetByID(ctx, driver.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RoleDriver, got.Role, "existing role is kept")

	legacy := f.seedUser(t, "")
	require.NoError(t, f.users.RequestCode(ctx, legacy.Mobile, types.RoleDriver))
	got, err = f.mem.Users().GetByID(ctx, legacy.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RoleDriver, got.Role, "missing role is backfilled from the request")
}

func TestVerifyCodeIsSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mobile := "9123456780"

	require.NoError(t, f.users.RequestCode(ctx, mobile, types.RoleDriver))
	code := f.notifier.lastCode(t, mobile).Code

	session, err := f.users.VerifyCode(ctx, mobile, code)
	require.NoError(t, err)
	assert.Equal(t, mobile, session.User.Mobile)
	assert.Equal(t, types.RoleDriver, session.User.Role)

	identity, err := f.tokens.Parse(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, identity.ID)
	assert.Equal(t, types.RoleDriver, identity.Role)

	stored, err := f.mem.Users().GetByMobile(ctx, mobile)
	require.NoError(t, err)
	assert.Empty(t, stored.OTP)
	assert.Nil(t, stored.OTPExpiresAt)

	_, err = f.users.VerifyCode(ctx, mobile, code)
	assert.ErrorIs(t, err, services.ErrInvalidOrExpiredCode)
}

func TestVerifyCodeExpiry(t *testing.T) {
	tests := []struct {
		name    string
		advance bool
		extra   int
		wantErr error
	}{
		{name: "at expiry", advance: true},
		{name: "after expiry", advance: true, extra: 1, wantErr: services.ErrInvalidOrExpiredCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			mobile := "7000000001"
			require.NoError(t, f.users.RequestCode(ctx, mobile, ""))
			code := f.notifier.lastCode(t, mobile).Code

			f.clock.Advance(services.CodeTTL)
			if tt.extra > 0 {
				f.clock.Advance(1)
			}

			_, err := f.users.VerifyCode(ctx, mobile, code)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestVerifyCodeFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.users.RequestCode(ctx, "8000000001", ""))
	code := f.notifier.lastCode(t, "8000000001").Code
	wrong := "100000"
	if code == wrong {
		wrong = "100001"
	}

	_, err := f.users.VerifyCode(ctx, "8000000001", wrong)
	assert.ErrorIs(t, err, services.ErrInvalidOrExpiredCode)

	_, err = f.users.VerifyCode(ctx, "8000000002", code)
	assert.ErrorIs(t, err, services.ErrUserNotFound)

	_, err = f.users.VerifyCode(ctx, "8000000001", "")
	assert.Equal(t, services.KindValidation, services.KindOf(err))

	_, err = f.users.VerifyCode(ctx, "800000000", code)
	assert.ErrorIs(t, err, services.ErrInvalidMobile)
}

func TestPasswordResetAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mobile := "6000000001"

	require.NoError(t, f.users.RequestCode(ctx, mobile, ""))
	_, err := f.users.Login(ctx, mobile, "secret1")
	assert.ErrorIs(t, err, services.ErrPasswordNotSet)

	require.NoError(t, f.users.RequestPasswordReset(ctx, mobile))
	delivery := f.notifier.lastCode(t, mobile)
	assert.Equal(t, types.PurposePasswordReset, delivery.Purpose)

	err = f.users.ResetPassword(ctx, mobile, delivery.Code, "12345")
	assert.ErrorIs(t, err, services.ErrPasswordTooShort)

	require.NoError(t, f.users.ResetPassword(ctx, mobile, delivery.Code, "secret1"))
	err = f.users.ResetPassword(ctx, mobile, delivery.Code, "secret2")
	assert.ErrorIs(t, err, services.ErrInvalidOrExpiredCode)

	session, err := f.users.Login(ctx, mobile, "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)

	_, err = f.users.Login(ctx, mobile, "wrong-password")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	_, err = f.users.Login(ctx, "6000000002", "secret1")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
}

func TestRequestPasswordResetUnknownUser(t *testing.T) {
	f := newFixture(t)
	err := f.users.RequestPasswordReset(context.Background(), "9999999999")
	assert.ErrorIs(t, err, services.ErrUserNotFound)
	assert.Equal(t, services.KindNotFound, services.KindOf(err))
}

func TestLoginBackfillsRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	legacy := f.seedUser(t, "")

	_, err := f.users.Login(ctx, legacy.Mobile, "whatever")
	assert.ErrorIs(t, err, services.ErrPasswordNotSet)

	got, err := f.mem.Users().GetByID(ctx, legacy.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RolePassenger, got.Role)
}

func TestCodeThrottle(t *testing.T) {
	denied := &stubThrottle{allow: false}
	f := newFixture(t, services.WithThrottle(denied))
	err := f.users.RequestCode(context.Background(), "9876500000", "")
	assert.ErrorIs(t, err, services.ErrTooManyCodeRequests)
	assert.Equal(t, services.KindRateLimited, services.KindOf(err))
	assert.Equal(t, []string{"9876500000"}, denied.keys)

	broken := &stubThrottle{err: errors.New("redis down")}
	f = newFixture(t, services.WithThrottle(broken))
	assert.NoError(t, f.users.RequestCode(context.Background(), "9876500000", ""))
}

func TestRequestCodeDeliveryFailure(t *testing.T) {
	f := newFixture(t)
	f.notifier.codeErr = errors.New("broker unavailable")

	err := f.users.RequestCode(context.Background(), "9876543210", "")
	assert.Equal(t, services.KindInternal, services.KindOf(err))
	assert.Equal(t, "Server Error", services.MessageOf(err))
}

func TestProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.seedUser(t, types.RoleDriver)

	got, err := f.users.Profile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Mobile, got.Mobile)

	_, err = f.users.Profile(ctx, types.NewID())
	assert.ErrorIs(t, err, services.ErrUserNotFound)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, types.RolePassenger)
	token, _, err := f.tokens.Issue(user)
	require.NoError(t, err)

	identity, err := f.users.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, identity.ID)

	_, err = f.users.Authenticate("not-a-token")
	assert.ErrorIs(t, err, services.ErrUnauthenticated)
}
