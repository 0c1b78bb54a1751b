package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/quickchat/internal/client/backend"
	"github.com/dmitrijs2005/quickchat/internal/client/models"
	"github.com/dmitrijs2005/quickchat/internal/logging"
)

// Profile is a user's editable data with the avatar resolved to a URL.
type Profile struct {
	UserID       string
	Identifier   string
	Name         string
	Bio          string
	AvatarRef    string
	AvatarURL    string
	IsRegistered bool
}

// Avatar is a picture to upload.
type Avatar struct {
	Name        string
	ContentType string
	Data        []byte
}

type ProfileInput struct {
	Name   string
	Bio    string
	Avatar *Avatar
}

// SaveResult reports what was saved. Warnings list non-fatal problems such
// as a failed avatar upload.
type SaveResult struct {
	Profile  Profile
	Updated  bool
	Warnings []string
}

// ProfileService loads and edits the profile of the signed-in user.
//
// SaveProfile and CompleteRegistration compare against the values of the
// last LoadProfile, which must come first.
type ProfileService interface {
	LoadProfile(ctx context.Context, userID string) (*Profile, error)
	SaveProfile(ctx context.Context, in ProfileInput) (*SaveResult, error)
	// CompleteRegistration saves the profile and then marks the user
	// registered, once.
	CompleteRegistration(ctx context.Context, in ProfileInput) (*SaveResult, error)
}

type ProfileBackend interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, upd backend.UserUpdate) (*models.User, error)
	UploadFile(ctx context.Context, name, contentType string, data []byte) (string, error)
	ResolveFile(ctx context.Context, ref string) (string, error)
}

type profileService struct {
	backend ProfileBackend
	session Session
	logger  logging.Logger

	mu     sync.Mutex
	loaded *Profile
}

func NewProfileService(b ProfileBackend, s Session, l logging.Logger) ProfileService {
	return &profileService{backend: b, session: s, logger: l.With("module", "profile")}
}

func (p *profileService) LoadProfile(ctx context.Context, userID string) (*Profile, error) {
	var u *models.User
	err := p.session.Retry(ctx, func(ctx context.Context) error {
		var err error
		u, err = p.backend.GetUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	prof := profileOf(u)
	if u.AvatarRef != "" {
		prof.AvatarURL = p.resolveAvatar(ctx, u.AvatarRef)
	}

	p.remember(prof)
	return &prof, nil
}

func (p *profileService) resolveAvatar(ctx context.Context, ref string) string {
	var url string
	err := p.session.Retry(ctx, func(ctx context.Context) error {
		var err error
		url, err = p.backend.ResolveFile(ctx, ref)
		return err
	})
	if err != nil {
		p.logger.Warn(ctx, "failed to resolve avatar", "ref", ref, "error", err)
		return ""
	}
	return url
}

func (p *profileService) SaveProfile(ctx context.Context, in ProfileInput) (*SaveResult, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", backend.ErrValidation)
	}

	last := p.last()
	if last == nil {
		return nil, fmt.Errorf("%w: profile not loaded", backend.ErrValidation)
	}

	res := &SaveResult{Profile: *last}
	upd := backend.UserUpdate{ID: last.UserID}

	if name != strings.TrimSpace(last.Name) {
		upd.DisplayName = &name
	}
	if bio := strings.TrimSpace(in.Bio); bio != strings.TrimSpace(last.Bio) {
		upd.Bio = &bio
	}

	if in.Avatar != nil {
		ref, err := p.upload(ctx, in.Avatar)
		if err != nil {
			p.logger.Warn(ctx, "avatar upload failed, saving the rest", "error", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("avatar not updated: %v", err))
		} else {
			upd.AvatarRef = &ref
		}
	}

	if upd.Empty() {
		return res, nil
	}

	u, err := p.update(ctx, upd)
	if err != nil {
		return nil, err
	}

	prof := profileOf(u)
	prof.AvatarURL = last.AvatarURL
	if upd.AvatarRef != nil {
		prof.AvatarURL = p.resolveAvatar(ctx, u.AvatarRef)
	}
	p.remember(prof)

	res.Profile = prof
	res.Updated = true
	return res, nil
}

func (p *profileService) CompleteRegistration(ctx context.Context, in ProfileInput) (*SaveResult, error) {
	res, err := p.SaveProfile(ctx, in)
	if err != nil {
		return nil, err
	}
	if res.Profile.IsRegistered {
		return res, nil
	}

	registered := true
	u, err := p.update(ctx, backend.UserUpdate{ID: res.Profile.UserID, IsRegistered: &registered})
	if err != nil {
		return nil, err
	}

	prof := profileOf(u)
	prof.AvatarURL = res.Profile.AvatarURL
	p.remember(prof)

	res.Profile = prof
	res.Updated = true
	return res, nil
}

func (p *profileService) upload(ctx context.Context, a *Avatar) (string, error) {
	var ref string
	err := p.session.Retry(ctx, func(ctx context.Context) error {
		var err error
		ref, err = p.backend.UploadFile(ctx, a.Name, a.ContentType, a.Data)
		return err
	})
	return ref, err
}

func (p *profileService) update(ctx context.Context, upd backend.UserUpdate) (*models.User, error) {
	var u *models.User
	err := p.session.Retry(ctx, func(ctx context.Context) error {
		var err error
		u, err = p.backend.UpdateUser(ctx, upd)
		return err
	})
	return u, err
}

func (p *profileService) remember(prof Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded = &prof
}

func (p *profileService) last() *Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loaded == nil {
		return nil
	}
	cp := *p.loaded
	return &cp
}

func profileOf(u *models.User) Profile {
	return Profile{
		UserID:       u.ID,
		Identifier:   u.Identifier,
		Name:         u.DisplayName,
		Bio:          u.Bio,
		AvatarRef:    u.AvatarRef,
		IsRegistered: u.IsRegistered,
	}
}
