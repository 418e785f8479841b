// Package store holds the ordered, duplicate-free message collection of the
// open room and merges history snapshots, live messages and translation
// updates into it.
//
// A Store is not safe for concurrent use. It is owned by a single goroutine
// (see package session).
package store

import (
	"iter"
	"time"

	"linguachat/client/internal/config"
	"linguachat/client/internal/models"
)

// Resolver maps a bare sender id to a display name.
type Resolver interface {
	Resolve(senderID string) string
}

// Entry is a render-ready projection of a message.
type Entry struct {
	ID           string `json:"id"`
	SenderName   string `json:"sender"`
	Text         string `json:"text"`
	IsOwnMessage bool   `json:"own"`
	Translated   bool   `json:"translated"`
}

type pendingTranslation struct {
	text       string
	receivedAt time.Time
}

// Store is the in-memory message collection of one room.
type Store struct {
	entries []models.Message
	index   map[string]int

	pending      map[string]pendingTranslation
	pendingOrder []string

	retention  time.Duration
	maxPending int
	now        func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithRetention sets how long an unmatched translation update is kept.
func WithRetention(d time.Duration) Option {
	return func(s *Store) { s.retention = d }
}

// WithMaxPending bounds the number of unmatched translation updates.
func WithMaxPending(n int) Option {
	return func(s *Store) { s.maxPending = n }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		index:      make(map[string]int),
		pending:    make(map[string]pendingTranslation),
		retention:  config.TranslationRetention,
		maxPending: config.MaxPendingTranslations,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadSnapshot replaces the store contents with messages, keeping their
// order. A repeated id keeps its first occurrence. Buffered translation
// updates for ids in the snapshot are applied.
func (s *Store) LoadSnapshot(messages []models.Message) {
	s.expirePending()

	s.entries = make([]models.Message, 0, len(messages))
	s.index = make(map[string]int, len(messages))
	for _, msg := range messages {
		if _, exists := s.index[msg.ID]; exists {
			continue
		}
		s.push(msg)
	}
}

// AppendLive adds a message at the tail. It returns false and leaves the
// store untouched when a message with the same id already exists.
func (s *Store) AppendLive(msg models.Message) bool {
	s.expirePending()

	if _, exists := s.index[msg.ID]; exists {
		return false
	}
	s.push(msg)
	return true
}

// ApplyTranslationUpdate sets the translated text of message id. If the
// message is not known yet the update is buffered and applied as soon as
// the message arrives, unless it expires first. It reports whether the
// update was applied immediately.
func (s *Store) ApplyTranslationUpdate(id, text string) bool {
	s.expirePending()

	if pos, ok := s.index[id]; ok {
		s.entries[pos].TranslatedContent = &text
		return true
	}

	s.dropPending(id)
	s.pendingOrder = append(s.pendingOrder, id)
	s.pending[id] = pendingTranslation{text: text, receivedAt: s.now()}
	s.evictOverflow()
	return false
}

// ResolvedView returns the render-ready entries in store order. The
// sequence reads the store lazily and can be iterated more than once; it
// must be consumed on the goroutine that owns the store.
func (s *Store) ResolvedView(resolver Resolver, viewer models.Viewer) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, msg := range s.entries {
			name := senderName(msg.Sender, resolver)
			entry := Entry{
				ID:           msg.ID,
				SenderName:   name,
				Text:         msg.Text(),
				IsOwnMessage: viewer.Owns(msg.Sender, name),
				Translated:   msg.TranslatedContent != nil,
			}
			if !yield(entry) {
				return
			}
		}
	}
}

// Clear empties the store and drops buffered translation updates.
func (s *Store) Clear() {
	s.entries = nil
	s.index = make(map[string]int)
	s.pending = make(map[string]pendingTranslation)
	s.pendingOrder = nil
}

// DropPending discards every buffered translation update. Buffered text
// belongs to the display language it was received in.
func (s *Store) DropPending() {
	s.pending = make(map[string]pendingTranslation)
	s.pendingOrder = nil
}

// Len returns the number of messages.
func (s *Store) Len() int {
	return len(s.entries)
}

// Get returns a copy of message id.
func (s *Store) Get(id string) (models.Message, bool) {
	pos, ok := s.index[id]
	if !ok {
		return models.Message{}, false
	}
	return s.entries[pos], true
}

// Messages returns a copy of the stored messages in order.
func (s *Store) Messages() []models.Message {
	out := make([]models.Message, len(s.entries))
	copy(out, s.entries)
	return out
}

// PendingTranslations returns the number of buffered translation updates
// that have not expired.
func (s *Store) PendingTranslations() int {
	s.expirePending()
	return len(s.pending)
}

// push appends msg. A buffered update only fills in a missing translation;
// translated content carried by msg is authoritative.
func (s *Store) push(msg models.Message) {
	if p, ok := s.pending[msg.ID]; ok {
		if msg.TranslatedContent == nil {
			text := p.text
			msg.TranslatedContent = &text
		}
		s.dropPending(msg.ID)
	}
	s.index[msg.ID] = len(s.entries)
	s.entries = append(s.entries, msg)
}

func (s *Store) expirePending() {
	if len(s.pendingOrder) == 0 {
		return
	}
	cutoff := s.now().Add(-s.retention)
	kept := s.pendingOrder[:0]
	for _, id := range s.pendingOrder {
		p, ok := s.pending[id]
		if !ok {
			continue
		}
		if !p.receivedAt.After(cutoff) {
			delete(s.pending, id)
			continue
		}
		kept = append(kept, id)
	}
	s.pendingOrder = kept
}

// evictOverflow drops the oldest buffered updates above maxPending.
func (s *Store) evictOverflow() {
	for len(s.pending) > s.maxPending && len(s.pendingOrder) > 0 {
		oldest := s.pendingOrder[0]
		s.pendingOrder = s.pendingOrder[1:]
		delete(s.pending, oldest)
	}
}

func (s *Store) dropPending(id string) {
	delete(s.pending, id)
	for i, pid := range s.pendingOrder {
		if pid == id {
			s.pendingOrder = append(s.pendingOrder[:i], s.pendingOrder[i+1:]...)
			return
		}
	}
}

func senderName(sender models.Sender, resolver Resolver) string {
	switch {
	case !sender.IsBare():
		return sender.DisplayName
	case sender.ID == "":
		return "Unknown"
	case resolver == nil:
		return sender.ID
	default:
		return resolver.Resolve(sender.ID)
	}
}
