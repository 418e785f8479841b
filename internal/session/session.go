// Package session runs the messaging view of one viewer: it owns the
// message store and the current room context, and serialises every
// mutation (history snapshots, live events, language changes, outgoing
// messages) through a single goroutine.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"linguachat/client/internal/livechannel"
	"linguachat/client/internal/models"
	"linguachat/client/internal/store"
)

var (
	ErrNoRoom      = errors.New("no room is open")
	ErrRoomChanged = errors.New("room context changed before the operation completed")
	ErrStopped     = errors.New("session stopped")
)

// HistoryFetcher loads the message snapshot of a room.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, roomID string, lang models.Language) ([]models.Message, error)
}

// PreferenceWriter records the viewer's display language of a room.
type PreferenceWriter interface {
	SetLanguage(ctx context.Context, roomID string, lang models.Language) error
}

// LiveChannel is the subset of livechannel.Channel the session drives.
type LiveChannel interface {
	Connect(ctx context.Context) error
	Send(text string) error
	Close() error
}

// ChannelFactory creates an Idle live channel for room. Every event of the
// channel must be tagged with room.RoomID and room.Generation.
type ChannelFactory func(room models.RoomContext, sink livechannel.Sink) LiveChannel

// WebSocketChannels returns a factory of gorilla/websocket live channels.
func WebSocketChannels(cfg livechannel.Config, token string, log *slog.Logger) ChannelFactory {
	return func(room models.RoomContext, sink livechannel.Sink) LiveChannel {
		return livechannel.New(cfg, room.RoomID, room.Generation, token, sink, log)
	}
}

// Status describes the session for renderers.
type Status struct {
	HasRoom bool
	Room    models.RoomContext
	// Connection is the state of the live channel; ConnectionErr is set
	// when it closed abnormally.
	Connection    livechannel.State
	ConnectionErr error
	// Loaded reports whether a snapshot has been applied.
	Loaded   bool
	Fetching bool
	Messages int
}

// Disconnected reports whether the view must show a disconnected banner.
func (s Status) Disconnected() bool {
	return s.HasRoom && s.Connection == livechannel.StateClosed
}

type openRequest struct {
	roomID string
	lang   models.Language
	done   chan error
}

type languageRequest struct {
	generation uint64
	lang       models.Language
	done       chan error
}

type sendRequest struct {
	text string
	done chan error
}

type snapshotResult struct {
	seq      uint64
	roomID   string
	messages []models.Message
	err      error
}

type fetchState struct {
	seq     uint64
	room    models.RoomContext
	cancel  context.CancelFunc
	waiters []chan error
	// Live activity observed while the fetch was in flight, replayed on top
	// of the snapshot.
	liveIDs      []string
	translations []livechannel.TranslationUpdate
}

type connState struct {
	state livechannel.State
	err   error
}

// Session is the messaging view core. Create it with New and start Run.
type Session struct {
	history    HistoryFetcher
	prefs      PreferenceWriter
	resolver   store.Resolver
	newChannel ChannelFactory
	viewer     models.Viewer
	log        *slog.Logger

	// Owned by the Run goroutine.
	store      *store.Store
	ctx        context.Context
	room       *models.RoomContext
	roomCtx    context.Context
	roomCancel context.CancelFunc
	channel    LiveChannel
	channelGen uint64
	conn       connState
	generation uint64
	fetchSeq   uint64
	fetch      *fetchState
	loaded     bool
	held       []livechannel.Event

	openCh     chan openRequest
	closeCh    chan chan error
	languageCh chan languageRequest
	reloadCh   chan chan error
	sendCh     chan sendRequest
	viewCh     chan chan []store.Entry
	statusCh   chan chan Status
	snapshotCh chan snapshotResult

	inbox   *inbox
	updates chan struct{}
	stopped chan struct{}
}

// New creates a session. storeOpts tune the message store.
func New(history HistoryFetcher, prefs PreferenceWriter, resolver store.Resolver, channels ChannelFactory,
	viewer models.Viewer, log *slog.Logger, storeOpts ...store.Option) *Session {
	return &Session{
		history:    history,
		prefs:      prefs,
		resolver:   resolver,
		newChannel: channels,
		viewer:     viewer,
		log:        log,
		store:      store.New(storeOpts...),
		openCh:     make(chan openRequest),
		closeCh:    make(chan chan error),
		languageCh: make(chan languageRequest),
		reloadCh:   make(chan chan error),
		sendCh:     make(chan sendRequest),
		viewCh:     make(chan chan []store.Entry),
		statusCh:   make(chan chan Status),
		snapshotCh: make(chan snapshotResult),
		inbox:      newInbox(),
		updates:    make(chan struct{}, 1),
		stopped:    make(chan struct{}),
	}
}

// Updates signals after every visible change. Signals are coalesced.
func (s *Session) Updates() <-chan struct{} {
	return s.updates
}

// inbox buffers live channel events without ever blocking the channel.
type inbox struct {
	mu     sync.Mutex
	events []livechannel.Event
	ready  chan struct{}
}

func newInbox() *inbox {
	return &inbox{ready: make(chan struct{}, 1)}
}

func (b *inbox) push(ev livechannel.Event) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()

	select {
	case b.ready <- struct{}{}:
	default:
	}
}

func (b *inbox) drain() []livechannel.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	events := b.events
	b.events = nil
	return events
}
