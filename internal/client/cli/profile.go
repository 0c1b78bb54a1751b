package cli

import (
	"context"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/dmitrijs2005/quickchat/internal/client/services"
	"github.com/dmitrijs2005/quickchat/internal/filex"
)

const maxAvatarSize = 5 << 20

func (a *App) ShowProfile(ctx context.Context) (err error) {
	defer a.endExpiredSession(&err)

	uid, err := a.requireUser()
	if err != nil {
		return err
	}

	p, err := a.profile.LoadProfile(ctx, uid)
	if err != nil {
		return err
	}

	a.println("Phone:  ", p.Identifier)
	a.println("Name:   ", p.Name)
	a.println("Bio:    ", p.Bio)
	if p.AvatarURL != "" {
		a.println("Avatar: ", p.AvatarURL)
	}
	if !p.IsRegistered {
		a.println("Profile incomplete, use 'editprofile' to finish it")
	}
	return nil
}

func (a *App) EditProfile(ctx context.Context) (err error) {
	defer a.endExpiredSession(&err)

	return a.editProfile(ctx, false)
}

// editProfile prompts for every field, showing the current value. An empty
// answer keeps the value; "-" clears the bio. When the user is not
// registered yet the save also completes the registration.
func (a *App) editProfile(ctx context.Context, firstTime bool) error {
	uid, err := a.requireUser()
	if err != nil {
		return err
	}

	p, err := a.profile.LoadProfile(ctx, uid)
	if err != nil {
		return err
	}

	in := services.ProfileInput{Name: p.Name, Bio: p.Bio}

	name, err := getSimpleText(a.reader, prompt("Display name", p.Name), a.out)
	if err != nil {
		return err
	}
	if name != "" {
		in.Name = name
	}

	bio, err := getSimpleText(a.reader, prompt("Bio ('-' to clear)", p.Bio), a.out)
	if err != nil {
		return err
	}
	switch bio {
	case "":
	case "-":
		in.Bio = ""
	default:
		in.Bio = bio
	}

	path, err := getSimpleText(a.reader, "Avatar image file (empty to keep)", a.out)
	if err != nil {
		return err
	}
	if path != "" {
		avatar, err := readAvatar(path)
		if err != nil {
			return err
		}
		in.Avatar = avatar
	}

	var res *services.SaveResult
	if firstTime || !p.IsRegistered {
		res, err = a.profile.CompleteRegistration(ctx, in)
	} else {
		res, err = a.profile.SaveProfile(ctx, in)
	}
	if err != nil {
		return err
	}

	for _, w := range res.Warnings {
		a.println("Warning:", w)
	}

	a.mu.Lock()
	if a.user != nil {
		u := *a.user
		u.DisplayName = res.Profile.Name
		u.Bio = res.Profile.Bio
		u.AvatarRef = res.Profile.AvatarRef
		u.IsRegistered = res.Profile.IsRegistered
		a.user = &u
	}
	a.mu.Unlock()

	if res.Updated {
		a.println("Profile saved")
	} else {
		a.println("Nothing to save")
	}
	return nil
}

func prompt(label, current string) string {
	if current == "" {
		return label
	}
	return label + " [" + current + "]"
}

func readAvatar(path string) (*services.Avatar, error) {
	data, err := filex.ReadLimited(path, maxAvatarSize)
	if err != nil {
		return nil, err
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &services.Avatar{Name: filepath.Base(path), ContentType: contentType, Data: data}, nil
}
