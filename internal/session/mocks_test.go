package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"linguachat/client/internal/livechannel"
	"linguachat/client/internal/models"
	"linguachat/client/internal/session"
)

// MockPreferences is a testify mock of session.PreferenceWriter.
type MockPreferences struct {
	mock.Mock
}

func (m *MockPreferences) SetLanguage(ctx context.Context, roomID string, lang models.Language) error {
	args := m.Called(ctx, roomID, lang)
	return args.Error(0)
}

type fetchReply struct {
	messages []models.Message
	err      error
}

type fetchCall struct {
	roomID string
	lang   models.Language
	reply  chan fetchReply
}

// fakeHistory hands every fetch to the test, which answers it explicitly.
// Answers are delivered even after the fetch context is cancelled, so
// late responses reach the session.
type fakeHistory struct {
	calls chan fetchCall
	done  chan struct{}
}

func newFakeHistory(t *testing.T) *fakeHistory {
	h := &fakeHistory{calls: make(chan fetchCall, 8), done: make(chan struct{})}
	t.Cleanup(func() { close(h.done) })
	return h
}

func (h *fakeHistory) FetchHistory(_ context.Context, roomID string, lang models.Language) ([]models.Message, error) {
	call := fetchCall{roomID: roomID, lang: lang, reply: make(chan fetchReply, 1)}
	h.calls <- call
	select {
	case r := <-call.reply:
		return r.messages, r.err
	case <-h.done:
		return nil, context.Canceled
	}
}

func (h *fakeHistory) next(t *testing.T) fetchCall {
	t.Helper()
	select {
	case call := <-h.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("no history fetch issued")
		return fetchCall{}
	}
}

func (h *fakeHistory) expectNone(t *testing.T) {
	t.Helper()
	select {
	case call := <-h.calls:
		t.Fatalf("unexpected history fetch for room %s in %s", call.roomID, call.lang)
	case <-time.After(100 * time.Millisecond):
	}
}

// fakeChannel stands in for a websocket live channel.
type fakeChannel struct {
	room       models.RoomContext
	sink       livechannel.Sink
	connectErr error

	mu     sync.Mutex
	state  livechannel.State
	sent   []string
	closed bool
}

func (c *fakeChannel) meta() livechannel.Meta {
	return livechannel.Meta{RoomID: c.room.RoomID, Generation: c.room.Generation}
}

func (c *fakeChannel) setState(state livechannel.State, err error) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
	c.sink(livechannel.StateChange{Meta: c.meta(), State: state, Err: err})
}

func (c *fakeChannel) Connect(context.Context) error {
	c.setState(livechannel.StateConnecting, nil)
	if c.connectErr != nil {
		c.setState(livechannel.StateClosed, c.connectErr)
		return c.connectErr
	}
	c.setState(livechannel.StateOpen, nil)
	return nil
}

func (c *fakeChannel) Send(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != livechannel.StateOpen {
		return livechannel.ErrNotOpen
	}
	c.sent = append(c.sent, text)
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	already := c.closed
	c.closed = true
	c.mu.Unlock()
	if !already {
		c.setState(livechannel.StateClosed, nil)
	}
	return nil
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeChannel) sentTexts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func (c *fakeChannel) message(id, text string) {
	c.sink(livechannel.NewMessage{Meta: c.meta(), Message: models.Message{
		ID:              id,
		OriginalContent: text,
		Sender:          models.Sender{ID: "2", DisplayName: "bob"},
	}})
}

func (c *fakeChannel) translation(id, text string) {
	c.sink(livechannel.TranslationUpdate{Meta: c.meta(), MessageID: id, Text: text})
}

// fakeChannels is a session.ChannelFactory recording every channel.
type fakeChannels struct {
	connectErr error
	created    chan *fakeChannel
	// closedBefore records, per created channel, whether every earlier
	// channel was already closed.
	mu           sync.Mutex
	all          []*fakeChannel
	closedBefore []bool
}

func newFakeChannels() *fakeChannels {
	return &fakeChannels{created: make(chan *fakeChannel, 8)}
}

func (f *fakeChannels) factory(room models.RoomContext, sink livechannel.Sink) session.LiveChannel {
	ch := &fakeChannel{room: room, sink: sink, connectErr: f.connectErr, state: livechannel.StateIdle}

	f.mu.Lock()
	prevClosed := true
	for _, prev := range f.all {
		prevClosed = prevClosed && prev.isClosed()
	}
	f.all = append(f.all, ch)
	f.closedBefore = append(f.closedBefore, prevClosed)
	f.mu.Unlock()

	f.created <- ch
	return ch
}

func (f *fakeChannels) previousClosed() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.closedBefore...)
}

func (f *fakeChannels) next(t *testing.T) *fakeChannel {
	t.Helper()
	select {
	case ch := <-f.created:
		return ch
	case <-time.After(2 * time.Second):
		t.Fatal("no live channel created")
		return nil
	}
}

type mapResolver map[string]string

func (r mapResolver) Resolve(id string) string {
	if name, ok := r[id]; ok {
		return name
	}
	return id
}
