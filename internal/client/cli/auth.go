package cli

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/quickchat/internal/client/session"
)

// getSimpleText and getCode are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getCode = GetCode

var errNotLoggedIn = errors.New("not logged in, use 'login' first")

// Login asks for a phone number, sends a one-time code to it and verifies
// the code the user types back. New accounts go straight to the profile
// form.
func (a *App) Login(ctx context.Context) error {
	phone, err := getSimpleText(a.reader, "Enter phone number", a.out)
	if err != nil {
		return err
	}

	if err := a.auth.RequestCode(ctx, phone); err != nil {
		return err
	}
	a.println("A code was sent to", phone)

	code, err := getCode(a.reader, a.out)
	if err != nil {
		return err
	}

	res, err := a.auth.Verify(ctx, phone, code)
	if err != nil {
		return err
	}

	a.thread.Close()
	a.mu.Lock()
	a.user = res.User
	a.current, a.chats, a.contacts = nil, nil, nil
	a.mu.Unlock()

	if res.NeedsProfile {
		a.println("Welcome! Let's set up your profile.")
		return a.editProfile(ctx, true)
	}

	a.println("Logged in as", res.User.Name())
	return nil
}

// Logout closes the open chat and forgets the saved session.
func (a *App) Logout(ctx context.Context) error {
	a.thread.Close()
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}

	a.mu.Lock()
	a.user = nil
	a.current, a.chats, a.contacts = nil, nil, nil
	a.mu.Unlock()

	a.println("Logged out")
	return nil
}

func (a *App) requireUser() (string, error) {
	u := a.currentUser()
	if u == nil {
		return "", errNotLoggedIn
	}
	return u.ID, nil
}

// endExpiredSession signs the user out locally once the saved credential
// can no longer restore the session, and swallows the error after telling
// the user.
func (a *App) endExpiredSession(err *error) {
	if !errors.Is(*err, session.ErrSessionExpired) {
		return
	}

	a.thread.Close()
	a.mu.Lock()
	a.user = nil
	a.current, a.chats, a.contacts, a.seen = nil, nil, nil, nil
	a.mu.Unlock()

	a.println("Session expired, please log in again")
	*err = nil
}
