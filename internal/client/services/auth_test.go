package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/quickchat/internal/client/backend"
	"github.com/dmitrijs2005/quickchat/internal/common"
	"github.com/dmitrijs2005/quickchat/internal/logging"
	"github.com/dmitrijs2005/quickchat/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingOTP struct {
	sent map[string]string
	err  error
}

func (r *recordingOTP) Send(_ context.Context, phone, code string) error {
	if r.err != nil {
		return r.err
	}
	r.sent[phone] = code
	return nil
}

func newAuth(d *device) (*authService, *recordingOTP) {
	otp := &recordingOTP{sent: map[string]string{}}
	svc := NewAuthService(d.client, d.session, otp, secret, logging.NewDiscardLogger()).(*authService)
	return svc, otp
}

func TestAuth_RequestCodeGeneratesDigits(t *testing.T) {
	srv := newServer()
	svc, otp := newAuth(newDevice(t, srv))

	require.NoError(t, svc.RequestCode(context.Background(), " +100 "))

	code := otp.sent["+100"]
	assert.Len(t, code, common.OTPLength)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9', code)
	}
}

func TestAuth_RequestCodeValidates(t *testing.T) {
	svc, otp := newAuth(newDevice(t, newServer()))

	err := svc.RequestCode(context.Background(), "  ")
	assert.ErrorIs(t, err, backend.ErrValidation)
	assert.Empty(t, otp.sent)
}

func TestAuth_VerifyExistingUser(t *testing.T) {
	srv := newServer()
	d := newDevice(t, srv)
	svc, _ := newAuth(d)
	svc.newCode = func() (string, error) { return "1234", nil }
	ctx := context.Background()

	require.NoError(t, svc.RequestCode(ctx, "+100"))

	_, err := svc.Verify(ctx, "+100", "9999")
	assert.ErrorIs(t, err, ErrInvalidCode)

	res, err := svc.Verify(ctx, "+100", "1234")
	require.NoError(t, err)
	assert.Equal(t, "u1", res.User.ID)
	assert.False(t, res.NeedsProfile)
	assert.Zero(t, srv.Calls(rpc.MethodSignup))

	cred, err := d.session.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "+100", cred.Identifier)

	_, err = svc.Verify(ctx, "+100", "1234")
	assert.ErrorIs(t, err, ErrInvalidCode, "codes are single use")
}

func TestAuth_VerifySignsUpNewNumber(t *testing.T) {
	srv := newServer()
	svc, _ := newAuth(newDevice(t, srv))
	svc.newCode = func() (string, error) { return "0000", nil }
	ctx := context.Background()

	require.NoError(t, svc.RequestCode(ctx, "+999"))
	res, err := svc.Verify(ctx, "+999", "0000")
	require.NoError(t, err)

	assert.True(t, res.NeedsProfile)
	assert.Equal(t, "+999", res.User.Identifier)
	assert.Equal(t, 1, srv.Calls(rpc.MethodSignup))
	assert.NotNil(t, srv.User(res.User.ID))
}

func TestAuth_VerifyWithoutRequest(t *testing.T) {
	srv := newServer()
	svc, _ := newAuth(newDevice(t, srv))

	_, err := svc.Verify(context.Background(), "+100", "1234")
	assert.ErrorIs(t, err, ErrInvalidCode)
	assert.Zero(t, srv.TotalCalls())
}

func TestAuth_RequestCodeProviderError(t *testing.T) {
	svc, otp := newAuth(newDevice(t, newServer()))
	otp.err = errors.New("sms gateway down")

	err := svc.RequestCode(context.Background(), "+100")
	assert.EqualError(t, err, "sms gateway down")
}

func TestAuth_Logout(t *testing.T) {
	srv := newServer()
	d := loggedIn(t, srv, "+100")
	svc, _ := newAuth(d)
	ctx := context.Background()

	require.NoError(t, svc.Logout(ctx))

	assert.Nil(t, d.client.CurrentUser())
	cred, err := d.session.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, cred)
}
