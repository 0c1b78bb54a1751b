package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/quickchat/internal/client/models"
	"github.com/dmitrijs2005/quickchat/internal/client/thread"
)

const shortKeyLen = 8

// Open opens a conversation: ref is a number from the last chats listing
// or a conversation ID.
func (a *App) Open(ctx context.Context, ref string) (err error) {
	defer a.endExpiredSession(&err)

	uid, err := a.requireUser()
	if err != nil {
		return err
	}
	if ref == "" {
		return fmt.Errorf("usage: open <chat number or id>")
	}

	id := a.resolveChat(ref)
	conv := a.listed(id)
	if conv == nil {
		list, err := a.directory.ListConversations(ctx, uid)
		if err != nil {
			return err
		}
		for i := range list {
			if list[i].ID == id {
				conv = &list[i]
			}
		}
	}
	if conv == nil {
		return fmt.Errorf("no chat %q", ref)
	}
	return a.open(ctx, conv)
}

func (a *App) listed(id string) *models.Conversation {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.chats {
		if a.chats[i].ID == id {
			c := a.chats[i]
			return &c
		}
	}
	return nil
}

func (a *App) open(ctx context.Context, conv *models.Conversation) error {
	if err := a.thread.Open(ctx, conv.ID); err != nil {
		a.mu.Lock()
		a.current = nil
		a.mu.Unlock()
		return err
	}

	a.mu.Lock()
	a.current = conv
	a.seen = nil
	a.mu.Unlock()

	if me := a.currentUser(); me != nil {
		a.println("Chat with", conv.Title(me.ID))
	}
	return a.History(ctx)
}

// History prints the open conversation grouped by day.
func (a *App) History(_ context.Context) error {
	me := a.currentUser()
	if me == nil {
		return errNotLoggedIn
	}
	if a.thread.ConversationID() == "" {
		return thread.ErrNotOpen
	}

	msgs := a.markSeen()
	if len(msgs) == 0 {
		a.println("No messages yet, say hi with 'send <text>'")
		return nil
	}

	now := time.Now()
	for _, r := range thread.Rows(msgs, time.Local) {
		if r.Header {
			a.println("--", thread.DayLabel(r.Day, now), "--")
			continue
		}
		a.printMessage(*r.Message, me.ID)
	}
	return nil
}

// markSeen snapshots the open conversation and marks every message in it as
// printed.
func (a *App) markSeen() []models.Message {
	a.mu.Lock()
	defer a.mu.Unlock()

	msgs := a.thread.Messages()
	if a.seen == nil || a.current == nil {
		a.seen = map[string]bool{}
	}
	for _, m := range msgs {
		if m.ID != "" {
			a.seen[m.ID] = true
		}
	}
	return msgs
}

func (a *App) printMessage(m models.Message, myID string) {
	line := fmt.Sprintf("[%s] %s: %s", m.CreatedAt.Local().Format("15:04"), senderName(m, myID), m.Text)
	switch m.Status {
	case models.StatusPending:
		line += " (pending)"
	case models.StatusFailedToSend:
		line += fmt.Sprintf(" (failed, key %s)", shortKey(m.LocalKey))
	}
	a.println(line)
}

func senderName(m models.Message, myID string) string {
	switch {
	case m.SenderID == myID:
		return "You"
	case m.Sender != nil:
		return m.Sender.Name()
	default:
		return m.SenderID
	}
}

func shortKey(k string) string {
	if len(k) > shortKeyLen {
		return k[:shortKeyLen]
	}
	return k
}

// Send posts text to the open conversation. A failed message stays in the
// list and can be resent or discarded by its key.
func (a *App) Send(ctx context.Context, text string) (err error) {
	defer a.endExpiredSession(&err)

	uid, err := a.requireUser()
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("usage: send <text>")
	}

	a.thread.SetDraft(text)
	if err := a.thread.Send(ctx, uid, text); err != nil {
		if key := a.failedKey(text); key != "" {
			a.printf("Not sent, use 'resend %s' or 'discard %s'\n", key, key)
		}
		return err
	}
	return nil
}

func (a *App) failedKey(text string) string {
	msgs := a.thread.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Status == models.StatusFailedToSend && msgs[i].Text == text {
			return shortKey(msgs[i].LocalKey)
		}
	}
	return ""
}

// unsent finds the local key of the unsent message whose key starts with
// prefix.
func (a *App) unsent(prefix string) (string, error) {
	if prefix == "" {
		return "", errors.New("message key is required")
	}
	for _, m := range a.thread.Messages() {
		if !m.Confirmed() && m.LocalKey != "" && strings.HasPrefix(m.LocalKey, prefix) {
			return m.LocalKey, nil
		}
	}
	return "", thread.ErrUnknownEntry
}

func (a *App) Resend(ctx context.Context, ref string) (err error) {
	defer a.endExpiredSession(&err)

	key, err := a.unsent(ref)
	if err != nil {
		return err
	}
	if err := a.thread.Resend(ctx, key); err != nil {
		return err
	}
	a.println("Sent")
	return nil
}

func (a *App) Discard(_ context.Context, ref string) error {
	key, err := a.unsent(ref)
	if err != nil {
		return err
	}
	if !a.thread.Discard(key) {
		return errors.New("message is still being sent")
	}
	a.println("Discarded")
	return nil
}

// CloseChat closes the open conversation, if any.
func (a *App) CloseChat(_ context.Context) error {
	a.thread.Close()
	a.mu.Lock()
	a.current = nil
	a.mu.Unlock()
	return nil
}

// follow prints messages that other people post to the open conversation.
func (a *App) follow(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.thread.Changes():
		}

		id := a.thread.ConversationID()
		msgs := a.thread.Messages()

		var fresh []models.Message
		myID := ""
		a.mu.Lock()
		if a.current != nil && a.current.ID == id && a.seen != nil && a.user != nil {
			myID = a.user.ID
			for _, m := range msgs {
				if m.ID == "" || a.seen[m.ID] {
					continue
				}
				a.seen[m.ID] = true
				if m.SenderID != myID {
					fresh = append(fresh, m)
				}
			}
		}
		a.mu.Unlock()

		for _, m := range fresh {
			a.printMessage(m, myID)
		}
	}
}
