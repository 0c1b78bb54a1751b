package cli

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/dmitrijs2005/quickchat/internal/client/models"
)

// Chats lists the user's conversations, newest first, keeping those whose
// partner matches query. The numbers shown can be passed to open and
// delete.
func (a *App) Chats(ctx context.Context, query string) (err error) {
	defer a.endExpiredSession(&err)

	uid, err := a.requireUser()
	if err != nil {
		return err
	}

	list, err := a.directory.ListConversations(ctx, uid)
	if err != nil {
		return err
	}
	list = a.directory.Filter(list, uid, query)

	a.mu.Lock()
	a.chats = list
	a.mu.Unlock()

	if len(list) == 0 {
		a.println("No chats yet, use 'contacts' and 'chat <n>' to start one")
		return nil
	}
	for i, c := range list {
		line := fmt.Sprintf("%d. %s", i+1, c.Title(uid))
		if c.LastMessage != nil {
			line += fmt.Sprintf(" | %s %s", c.LastMessage.CreatedAt.Local().Format("Jan 2 15:04"), c.LastMessage.Text)
		}
		a.println(line)
	}
	return nil
}

// Contacts lists everyone else, keeping those matching query.
func (a *App) Contacts(ctx context.Context, query string) (err error) {
	defer a.endExpiredSession(&err)

	uid, err := a.requireUser()
	if err != nil {
		return err
	}

	users, err := a.directory.ListContacts(ctx, uid)
	if err != nil {
		return err
	}
	users = a.directory.FilterUsers(users, query)

	a.mu.Lock()
	a.contacts = users
	a.mu.Unlock()

	if len(users) == 0 {
		a.println("No contacts found")
		return nil
	}
	for i, u := range users {
		a.printf("%d. %s (%s)\n", i+1, u.Name(), u.Identifier)
	}
	return nil
}

// Chat opens the conversation with a contact, creating it when needed. ref
// is a number from the last contacts listing or a user ID.
func (a *App) Chat(ctx context.Context, ref string) (err error) {
	defer a.endExpiredSession(&err)

	uid, err := a.requireUser()
	if err != nil {
		return err
	}
	if ref == "" {
		return fmt.Errorf("usage: chat <contact number or user id>")
	}

	otherID := ref
	a.mu.Lock()
	if i, ok := pick(ref, len(a.contacts)); ok {
		otherID = a.contacts[i].ID
	}
	a.mu.Unlock()

	conv, err := a.directory.CreateOrGetConversation(ctx, uid, otherID)
	if err != nil {
		return err
	}
	return a.open(ctx, conv)
}

// Delete removes a conversation: ref is a number from the last chats
// listing or a conversation ID; empty means the open one.
func (a *App) Delete(ctx context.Context, ref string) (err error) {
	defer a.endExpiredSession(&err)

	if _, err := a.requireUser(); err != nil {
		return err
	}

	id := a.resolveChat(ref)
	if id == "" {
		return fmt.Errorf("usage: delete <chat number or id>")
	}

	if err := a.directory.DeleteConversation(ctx, id); err != nil {
		return err
	}

	a.mu.Lock()
	a.chats = slices.DeleteFunc(a.chats, func(c models.Conversation) bool { return c.ID == id })
	wasOpen := a.current != nil && a.current.ID == id
	if wasOpen {
		a.current = nil
	}
	a.mu.Unlock()

	if wasOpen {
		a.thread.Close()
	}
	a.println("Chat deleted")
	return nil
}

func (a *App) resolveChat(ref string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if ref == "" {
		if a.current != nil {
			return a.current.ID
		}
		return ""
	}
	if i, ok := pick(ref, len(a.chats)); ok {
		return a.chats[i].ID
	}
	return ref
}

// pick turns a 1-based listing number into an index.
func pick(ref string, n int) (int, bool) {
	i, err := strconv.Atoi(ref)
	if err != nil || i < 1 || i > n {
		return 0, false
	}
	return i - 1, true
}
