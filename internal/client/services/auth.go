package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/quickchat/internal/client/backend"
	"github.com/dmitrijs2005/quickchat/internal/client/models"
	"github.com/dmitrijs2005/quickchat/internal/common"
	"github.com/dmitrijs2005/quickchat/internal/logging"
)

var ErrInvalidCode = errors.New("invalid or expired code")

// OTPProvider delivers a one-time code to a phone number.
type OTPProvider interface {
	Send(ctx context.Context, phone, code string) error
}

// LocalOTPProvider does not deliver anything; it logs the code so it can be
// typed in during development.
type LocalOTPProvider struct {
	logger logging.Logger
}

func NewLocalOTPProvider(l logging.Logger) *LocalOTPProvider {
	return &LocalOTPProvider{logger: l.With("module", "otp")}
}

func (p *LocalOTPProvider) Send(ctx context.Context, phone, code string) error {
	p.logger.Info(ctx, "one-time code", "phone", phone, "code", code)
	return nil
}

// LoginResult is the outcome of a successful verification.
type LoginResult struct {
	User *models.User
	// NeedsProfile is true until the user completes registration.
	NeedsProfile bool
}

// AuthService signs users in with a phone number and a one-time code.
//
// Contract:
//   - RequestCode: generate a code for phone and hand it to the OTP provider.
//     A new request replaces the previous code.
//   - Verify: check the code, log in with the device secret and sign up when
//     the account does not exist yet. The credential is saved for silent
//     re-authentication.
//   - Logout: forget the credential and the cached session.
type AuthService interface {
	RequestCode(ctx context.Context, phone string) error
	Verify(ctx context.Context, phone, code string) (*LoginResult, error)
	Logout(ctx context.Context) error
}

// AuthBackend is the part of backend.Backend used for authentication.
type AuthBackend interface {
	Login(ctx context.Context, identifier, secret string) (*models.User, error)
	Signup(ctx context.Context, identifier, secret string, attrs backend.SignupAttributes) (*models.User, error)
	ResetSession()
}

type authService struct {
	backend AuthBackend
	session Session
	otp     OTPProvider
	secret  string
	logger  logging.Logger

	newCode func() (string, error)

	mu    sync.Mutex
	codes map[string]string
}

// NewAuthService builds an AuthService. secret is the account secret used
// for every identifier on this device.
func NewAuthService(b AuthBackend, s Session, otp OTPProvider, secret string, l logging.Logger) AuthService {
	return &authService{
		backend: b,
		session: s,
		otp:     otp,
		secret:  secret,
		logger:  l.With("module", "auth"),
		newCode: func() (string, error) { return common.RandomDigits(common.OTPLength) },
		codes:   map[string]string{},
	}
}

func (a *authService) RequestCode(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return fmt.Errorf("%w: phone number is required", backend.ErrValidation)
	}

	code, err := a.newCode()
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.codes[phone] = code
	a.mu.Unlock()

	return a.otp.Send(ctx, phone, code)
}

func (a *authService) Verify(ctx context.Context, phone, code string) (*LoginResult, error) {
	phone = strings.TrimSpace(phone)
	code = strings.TrimSpace(code)

	a.mu.Lock()
	want, ok := a.codes[phone]
	if ok && subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
		delete(a.codes, phone)
	} else {
		ok = false
	}
	a.mu.Unlock()
	if !ok {
		return nil, ErrInvalidCode
	}

	user, err := a.backend.Login(ctx, phone, a.secret)
	if errors.Is(err, backend.ErrInvalidCredentials) {
		a.logger.Info(ctx, "no account yet, signing up", "phone", phone)
		user, err = a.backend.Signup(ctx, phone, a.secret, backend.SignupAttributes{IsRegistered: false})
	}
	if err != nil {
		return nil, err
	}

	if err := a.session.Save(ctx, phone, a.secret); err != nil {
		a.logger.Error(ctx, "failed to save credential", "error", err)
	}

	return &LoginResult{User: user, NeedsProfile: !user.IsRegistered}, nil
}

func (a *authService) Logout(ctx context.Context) error {
	a.backend.ResetSession()
	return a.session.Clear(ctx)
}
