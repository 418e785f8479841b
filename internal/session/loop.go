package session

import (
	"context"
	"slices"

	"linguachat/client/internal/livechannel"
	"linguachat/client/internal/models"
)

// Run processes requests, snapshots and live events until ctx is done.
// It must be called exactly once.
func (s *Session) Run(ctx context.Context) error {
	s.ctx = ctx
	defer func() {
		s.teardown(ErrStopped)
		close(s.stopped)
	}()

	s.log.Info("Session started", "user_id", s.viewer.UserID)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Session stopped")
			return ctx.Err()

		case req := <-s.openCh:
			s.handleOpen(req)

		case done := <-s.closeCh:
			if s.room != nil {
				s.log.Info("Closing room", "room", s.room.RoomID)
			}
			s.teardown(ErrRoomChanged)
			s.notify()
			done <- nil

		case req := <-s.languageCh:
			s.handleLanguage(req)

		case done := <-s.reloadCh:
			if s.room == nil {
				done <- ErrNoRoom
				continue
			}
			s.startFetch(*s.room, done)

		case req := <-s.sendCh:
			if s.channel == nil {
				req.done <- ErrNoRoom
				continue
			}
			req.done <- s.channel.Send(req.text)

		case reply := <-s.viewCh:
			reply <- slices.Collect(s.store.ResolvedView(s.resolver, s.viewer))

		case reply := <-s.statusCh:
			reply <- s.status()

		case res := <-s.snapshotCh:
			s.handleSnapshot(res)

		case <-s.inbox.ready:
			for _, ev := range s.inbox.drain() {
				s.handleEvent(ev)
			}
		}
	}
}

func (s *Session) handleOpen(req openRequest) {
	s.teardown(ErrRoomChanged)

	s.generation++
	room := models.RoomContext{RoomID: req.roomID, Language: req.lang, Generation: s.generation}
	s.room = &room
	s.log.Info("Opening room", "room", room.RoomID, "language", room.Language, "generation", room.Generation)

	roomCtx, cancel := context.WithCancel(s.ctx)
	s.roomCtx, s.roomCancel = roomCtx, cancel

	ch := s.newChannel(room, s.inbox.push)
	s.channel = ch
	s.channelGen = room.Generation
	s.conn = connState{state: livechannel.StateConnecting}

	s.startFetch(room, req.done)
	go func() {
		if err := ch.Connect(roomCtx); err != nil {
			s.log.Debug("Live channel did not open", "room", room.RoomID, "error", err)
		}
	}()
	s.notify()
}

func (s *Session) handleLanguage(req languageRequest) {
	if s.room == nil || s.room.Generation != req.generation {
		req.done <- ErrRoomChanged
		return
	}

	s.generation++
	room := s.room.WithLanguage(req.lang, s.generation)
	s.room = &room
	s.store.DropPending()
	s.log.Info("Display language changed", "room", room.RoomID, "language", room.Language)

	s.startFetch(room, req.done)
	s.notify()
}

// startFetch issues a history fetch for room. An in-flight fetch is
// superseded: its waiters are answered by the new one and the live messages
// it observed are still carried over.
func (s *Session) startFetch(room models.RoomContext, waiter chan error) {
	var (
		waiters      []chan error
		liveIDs      []string
		translations []livechannel.TranslationUpdate
	)
	if prev := s.fetch; prev != nil {
		prev.cancel()
		waiters = prev.waiters
		liveIDs = prev.liveIDs
		if prev.room.Language == room.Language {
			translations = prev.translations
		}
	}
	if waiter != nil {
		waiters = append(waiters, waiter)
	}

	s.fetchSeq++
	ctx, cancel := context.WithCancel(s.roomCtx)
	s.fetch = &fetchState{
		seq:          s.fetchSeq,
		room:         room,
		cancel:       cancel,
		waiters:      waiters,
		liveIDs:      liveIDs,
		translations: translations,
	}

	seq := s.fetchSeq
	go func() {
		messages, err := s.history.FetchHistory(ctx, room.RoomID, room.Language)
		select {
		case s.snapshotCh <- snapshotResult{seq: seq, roomID: room.RoomID, messages: messages, err: err}:
		case <-s.stopped:
		}
	}()
}

func (s *Session) handleSnapshot(res snapshotResult) {
	fetch := s.fetch
	if fetch == nil || res.seq != fetch.seq || s.room == nil || res.roomID != s.room.RoomID {
		s.log.Debug("Discarding stale snapshot", "room", res.roomID, "seq", res.seq)
		return
	}
	s.fetch = nil
	fetch.cancel()

	if res.err != nil {
		s.log.Warn("Fetching history failed", "room", res.roomID, "language", fetch.room.Language, "error", res.err)
		// The view stays usable on its last good state.
		s.markLoaded()
		s.answer(fetch.waiters, res.err)
		s.notify()
		return
	}

	carried := make([]models.Message, 0, len(fetch.liveIDs))
	for _, id := range fetch.liveIDs {
		if msg, ok := s.store.Get(id); ok {
			if !s.room.Language.Translates() {
				msg.TranslatedContent = nil
			}
			carried = append(carried, msg)
		}
	}

	s.store.LoadSnapshot(res.messages)
	for _, msg := range carried {
		s.store.AppendLive(msg)
	}
	for _, upd := range fetch.translations {
		if msg, ok := s.store.Get(upd.MessageID); ok && msg.TranslatedContent != nil {
			continue
		}
		s.store.ApplyTranslationUpdate(upd.MessageID, upd.Text)
	}
	s.log.Debug("Snapshot applied", "room", res.roomID, "messages", len(res.messages), "carried", len(carried))

	s.markLoaded()
	s.answer(fetch.waiters, nil)
	s.notify()
}

// markLoaded replays live events held back while the first snapshot was
// outstanding.
func (s *Session) markLoaded() {
	if s.loaded {
		return
	}
	s.loaded = true
	held := s.held
	s.held = nil
	for _, ev := range held {
		s.apply(ev)
	}
}

func (s *Session) handleEvent(ev livechannel.Event) {
	meta := ev.EventMeta()
	if s.room == nil || meta.RoomID != s.room.RoomID || meta.Generation != s.channelGen {
		s.log.Debug("Discarding event of a previous room context", "room", meta.RoomID, "generation", meta.Generation)
		return
	}

	if change, ok := ev.(livechannel.StateChange); ok {
		s.conn = connState{state: change.State, err: change.Err}
		s.notify()
		return
	}

	if !s.loaded {
		s.held = append(s.held, ev)
		return
	}
	s.apply(ev)
}

func (s *Session) apply(ev livechannel.Event) {
	switch e := ev.(type) {
	case livechannel.NewMessage:
		if !s.store.AppendLive(e.Message) {
			s.log.Debug("Ignoring duplicate message", "id", e.Message.ID)
			return
		}
		if s.fetch != nil {
			s.fetch.liveIDs = append(s.fetch.liveIDs, e.Message.ID)
		}
		s.notify()

	case livechannel.TranslationUpdate:
		if !s.room.Language.Translates() {
			s.log.Debug("Ignoring translation update in original language", "id", e.MessageID)
			return
		}
		if s.store.ApplyTranslationUpdate(e.MessageID, e.Text) {
			s.notify()
		}
		if s.fetch != nil {
			s.fetch.translations = append(s.fetch.translations, e)
		}

	case livechannel.Unrecognized:
		s.log.Debug("Ignoring unrecognized event", "kind", e.Kind)
	}
}

// teardown closes the live channel, abandons the in-flight fetch and
// clears the store.
func (s *Session) teardown(reason error) {
	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			s.log.Debug("Closing live channel", "error", err)
		}
		s.channel = nil
	}
	if s.fetch != nil {
		s.fetch.cancel()
		s.answer(s.fetch.waiters, reason)
		s.fetch = nil
	}
	if s.roomCancel != nil {
		s.roomCancel()
		s.roomCtx, s.roomCancel = nil, nil
	}

	s.store.Clear()
	s.room = nil
	s.channelGen = 0
	s.conn = connState{state: livechannel.StateIdle}
	s.loaded = false
	s.held = nil
}

func (s *Session) status() Status {
	st := Status{
		HasRoom:       s.room != nil,
		Connection:    s.conn.state,
		ConnectionErr: s.conn.err,
		Loaded:        s.loaded,
		Fetching:      s.fetch != nil,
		Messages:      s.store.Len(),
	}
	if s.room != nil {
		st.Room = *s.room
	}
	return st
}

func (s *Session) answer(waiters []chan error, err error) {
	for _, w := range waiters {
		w <- err
	}
}

func (s *Session) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}
