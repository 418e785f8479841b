package session

import (
	"context"
	"fmt"

	"linguachat/client/internal/models"
	"linguachat/client/internal/store"
)

// OpenRoom makes roomID the current room, replacing any open one, and
// returns once its first history snapshot has been applied. The live
// channel is connected concurrently; its state is reported by Status.
// A fetch error is returned but the room stays open.
func (s *Session) OpenRoom(ctx context.Context, roomID string, lang models.Language) error {
	if roomID == "" {
		return fmt.Errorf("open room: empty room id")
	}
	lang, err := models.ParseLanguage(string(lang))
	if err != nil {
		return fmt.Errorf("open room %s: %w", roomID, err)
	}

	req := openRequest{roomID: roomID, lang: lang, done: make(chan error, 1)}
	if err := post(ctx, s, s.openCh, req); err != nil {
		return err
	}
	if err := awaitErr(ctx, s, req.done); err != nil {
		return fmt.Errorf("open room %s: %w", roomID, err)
	}
	return nil
}

// CloseRoom closes the live channel and clears the view.
func (s *Session) CloseRoom(ctx context.Context) error {
	done := make(chan error, 1)
	if err := post(ctx, s, s.closeCh, done); err != nil {
		return err
	}
	return awaitErr(ctx, s, done)
}

// SetDisplayLanguage records lang as the display language of the current
// room and reloads the history in it. The preference is written first; on
// failure the current context and view are kept. While the reload is in
// flight the previously rendered text does not change.
func (s *Session) SetDisplayLanguage(ctx context.Context, lang models.Language) error {
	lang, err := models.ParseLanguage(string(lang))
	if err != nil {
		return err
	}

	st, err := s.Status(ctx)
	if err != nil {
		return err
	}
	if !st.HasRoom {
		return ErrNoRoom
	}
	if st.Room.Language == lang {
		return nil
	}

	if err := s.prefs.SetLanguage(ctx, st.Room.RoomID, lang); err != nil {
		return fmt.Errorf("set language of room %s: %w", st.Room.RoomID, err)
	}

	req := languageRequest{generation: st.Room.Generation, lang: lang, done: make(chan error, 1)}
	if err := post(ctx, s, s.languageCh, req); err != nil {
		return err
	}
	if err := awaitErr(ctx, s, req.done); err != nil {
		return fmt.Errorf("reload room %s in %s: %w", st.Room.RoomID, lang, err)
	}
	return nil
}

// Reload fetches the history of the current room again. Live messages
// received meanwhile are kept.
func (s *Session) Reload(ctx context.Context) error {
	done := make(chan error, 1)
	if err := post(ctx, s, s.reloadCh, done); err != nil {
		return err
	}
	return awaitErr(ctx, s, done)
}

// Send writes text to the live channel of the current room. It fails with
// livechannel.ErrNotOpen unless the channel is open. The message appears
// in the view when the server echoes it.
func (s *Session) Send(ctx context.Context, text string) error {
	req := sendRequest{text: text, done: make(chan error, 1)}
	if err := post(ctx, s, s.sendCh, req); err != nil {
		return err
	}
	return awaitErr(ctx, s, req.done)
}

// View returns the render-ready entries of the current room.
func (s *Session) View(ctx context.Context) ([]store.Entry, error) {
	reply := make(chan []store.Entry, 1)
	if err := post(ctx, s, s.viewCh, reply); err != nil {
		return nil, err
	}
	return await(ctx, s, reply)
}

// Status returns a snapshot of the session state.
func (s *Session) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	if err := post(ctx, s, s.statusCh, reply); err != nil {
		return Status{}, err
	}
	return await(ctx, s, reply)
}

func post[T any](ctx context.Context, s *Session, ch chan T, req T) error {
	select {
	case ch <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrStopped
	}
}

// await waits for the reply of an accepted request. Replies are buffered,
// so the loop never blocks on a caller that gave up.
func await[T any](ctx context.Context, s *Session, reply chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-s.stopped:
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrStopped
		}
	}
}

func awaitErr(ctx context.Context, s *Session, done chan error) error {
	err, waitErr := await(ctx, s, done)
	if waitErr != nil {
		return waitErr
	}
	return err
}
