// Package thread keeps the message list of the open conversation in sync
// with the backend: initial history, live changes, and optimistic sends.
package thread

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/quickchat/internal/client/feed"
	"github.com/dmitrijs2005/quickchat/internal/client/models"
	"github.com/dmitrijs2005/quickchat/internal/logging"
	"github.com/google/uuid"
)

type State int

const (
	StateIdle State = iota
	StateLoading
	StateLive
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLive:
		return "live"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "idle"
	}
}

var (
	// ErrClosed is returned when the conversation was closed or replaced
	// while an operation was in flight. Its result has been dropped.
	ErrClosed       = errors.New("conversation closed")
	ErrNotOpen      = errors.New("no open conversation")
	ErrUnknownEntry = errors.New("no such unsent message")
)

type Backend interface {
	ListMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	CreateMessage(ctx context.Context, conversationID, text string) (*models.Message, error)
	SetLastMessage(ctx context.Context, conversationID, messageID string) error
}

// Retrier reruns fn after recovering an invalid session.
type Retrier interface {
	Retry(ctx context.Context, fn func(ctx context.Context) error) error
}

type noRetry struct{}

func (noRetry) Retry(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type Option func(*Synchronizer)

func WithRetrier(r Retrier) Option {
	return func(s *Synchronizer) { s.retrier = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

// Synchronizer holds at most one open conversation. All methods are safe
// for concurrent use.
type Synchronizer struct {
	backend Backend
	feed    feed.Feed
	retrier Retrier
	logger  logging.Logger
	now     func() time.Time
	newKey  func() string

	mu             sync.Mutex
	state          State
	conversationID string
	generation     uint64
	stopWatch      context.CancelFunc
	messages       []models.Message
	draft          string

	changes chan struct{}
}

func New(b Backend, f feed.Feed, l logging.Logger, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		backend: b,
		feed:    f,
		retrier: noRetry{},
		logger:  l.With("module", "thread"),
		now:     time.Now,
		newKey:  uuid.NewString,
		changes: make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Changes signals that State or Messages changed. Signals coalesce.
func (s *Synchronizer) Changes() <-chan struct{} {
	return s.changes
}

func (s *Synchronizer) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Synchronizer) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Messages returns a copy of the current list, pending entries included.
func (s *Synchronizer) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

func (s *Synchronizer) SetDraft(text string) {
	s.mu.Lock()
	s.draft = text
	s.mu.Unlock()
}

func (s *Synchronizer) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Open closes the current conversation, loads the history of
// conversationID and starts watching it. The watch lives until Close, the
// next Open, or ctx is done.
func (s *Synchronizer) Open(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	s.stopLocked()
	s.generation++
	gen := s.generation
	s.state = StateLoading
	s.conversationID = conversationID
	s.messages = nil
	s.draft = ""
	s.mu.Unlock()
	s.notify()

	var history []models.Message
	err := s.retrier.Retry(ctx, func(ctx context.Context) error {
		var err error
		history, err = s.backend.ListMessages(ctx, conversationID, 0)
		return err
	})

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		s.state = StateFailed
		s.mu.Unlock()
		s.notify()
		return fmt.Errorf("load messages: %w", err)
	}
	s.messages = Merge(nil, history...)
	s.state = StateLive
	watchCtx, cancel := context.WithCancel(ctx)
	s.stopWatch = cancel
	s.mu.Unlock()
	s.notify()

	updates, err := s.feed.Watch(watchCtx, conversationID)
	if err != nil {
		s.logger.Warn(ctx, "change feed unavailable", "conversation", conversationID, "error", err)
		return nil
	}
	go s.consume(gen, updates)
	return nil
}

// Close stops the watch and drops any in-flight results. It is idempotent
// and safe to call while Open is still loading.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.stopLocked()
	s.generation++
	s.state = StateClosed
	s.conversationID = ""
	s.messages = nil
	s.draft = ""
	s.mu.Unlock()
	s.notify()
}

func (s *Synchronizer) stopLocked() {
	if s.stopWatch != nil {
		s.stopWatch()
		s.stopWatch = nil
	}
}

func (s *Synchronizer) consume(gen uint64, updates <-chan feed.Update) {
	for u := range updates {
		s.apply(gen, u)
	}
}

func (s *Synchronizer) apply(gen uint64, u feed.Update) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}

	changed := false
	switch u.Op {
	case feed.OpCreate, feed.OpUpdate:
		if u.Message.ConversationID == "" || u.Message.ConversationID == s.conversationID {
			s.messages = Merge(s.messages, u.Message)
			changed = true
		}
	case feed.OpSnapshot:
		if SnapshotDiffers(s.messages, u.Snapshot) {
			s.messages = Merge(s.messages, u.Snapshot...)
			changed = true
		}
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// Send submits text as senderID. Blank text does nothing. The conversation
// must still exist; otherwise the backend's not-found error is returned and
// nothing is queued. The message shows as pending until confirmed and as
// failed if the save fails.
func (s *Synchronizer) Send(ctx context.Context, senderID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	convID, gen, state := s.conversationID, s.generation, s.state
	s.mu.Unlock()
	if convID == "" || state != StateLive {
		return ErrNotOpen
	}

	err := s.retrier.Retry(ctx, func(ctx context.Context) error {
		_, err := s.backend.GetConversation(ctx, convID)
		return err
	})
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}

	pending := models.Message{
		LocalKey:       s.newKey(),
		ConversationID: convID,
		SenderID:       senderID,
		Text:           text,
		CreatedAt:      s.now(),
		Status:         models.StatusPending,
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return ErrClosed
	}
	s.messages = sortByTime(append(s.messages, pending))
	s.mu.Unlock()
	s.notify()

	return s.deliver(ctx, gen, convID, pending.LocalKey, text)
}

// Resend retries a message that failed to send.
func (s *Synchronizer) Resend(ctx context.Context, localKey string) error {
	s.mu.Lock()
	i := s.indexLocked(localKey)
	if i < 0 || s.messages[i].Status != models.StatusFailedToSend {
		s.mu.Unlock()
		return ErrUnknownEntry
	}
	s.messages[i].Status = models.StatusPending
	convID, gen, text := s.conversationID, s.generation, s.messages[i].Text
	s.mu.Unlock()
	s.notify()

	return s.deliver(ctx, gen, convID, localKey, text)
}

// Discard drops an unsent message. It reports whether one was removed.
func (s *Synchronizer) Discard(localKey string) bool {
	s.mu.Lock()
	i := s.indexLocked(localKey)
	if i < 0 || s.messages[i].Status == models.StatusPending {
		s.mu.Unlock()
		return false
	}
	s.messages = slices.Delete(s.messages, i, i+1)
	s.mu.Unlock()
	s.notify()
	return true
}

func (s *Synchronizer) indexLocked(localKey string) int {
	if localKey == "" {
		return -1
	}
	return slices.IndexFunc(s.messages, func(m models.Message) bool {
		return m.LocalKey == localKey && !m.Confirmed()
	})
}

func (s *Synchronizer) deliver(ctx context.Context, gen uint64, convID, localKey, text string) error {
	var saved *models.Message
	err := s.retrier.Retry(ctx, func(ctx context.Context) error {
		var err error
		saved, err = s.backend.CreateMessage(ctx, convID, text)
		return err
	})
	if err != nil {
		s.mu.Lock()
		if gen == s.generation {
			if i := s.indexLocked(localKey); i >= 0 {
				s.messages[i].Status = models.StatusFailedToSend
			}
		}
		s.mu.Unlock()
		s.notify()
		return fmt.Errorf("send: %w", err)
	}

	err = s.retrier.Retry(ctx, func(ctx context.Context) error {
		return s.backend.SetLastMessage(ctx, convID, saved.ID)
	})
	if err != nil {
		s.logger.Warn(ctx, "failed to update last message", "conversation", convID, "message", saved.ID, "error", err)
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil
	}
	if i := s.indexLocked(localKey); i >= 0 {
		s.messages = slices.Delete(s.messages, i, i+1)
	}
	s.messages = Merge(s.messages, *saved)
	s.draft = ""
	s.mu.Unlock()
	s.notify()
	return nil
}
