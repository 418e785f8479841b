package store_test

import (
	"fmt"
	"slices"
	"testing"
	"time"

	"linguachat/client/internal/models"
	"linguachat/client/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type mapResolver map[string]string

func (r mapResolver) Resolve(id string) string {
	if name, ok := r[id]; ok {
		return name
	}
	return id
}

func newTestStore(clock *fakeClock, opts ...store.Option) *store.Store {
	opts = append([]store.Option{store.WithClock(clock.Now), store.WithRetention(time.Minute)}, opts...)
	return store.New(opts...)
}

func msg(id, content, sender string) models.Message {
	return models.Message{ID: id, OriginalContent: content, Sender: models.Sender{ID: sender}}
}

func ptr(s string) *string { return &s }

func TestLoadSnapshot_PreservesOrder(t *testing.T) {
	s := store.New()
	snapshot := []models.Message{msg("3", "c", "1"), msg("1", "a", "1"), msg("2", "b", "2")}

	s.LoadSnapshot(snapshot)

	view := slices.Collect(s.ResolvedView(nil, models.Viewer{}))
	require.Len(t, view, 3)
	assert.Equal(t, []string{"3", "1", "2"}, []string{view[0].ID, view[1].ID, view[2].ID})
	for _, entry := range view {
		assert.False(t, entry.Translated, "no translation unless the snapshot supplies one")
	}
}

func TestLoadSnapshot_KeepsSuppliedTranslation(t *testing.T) {
	s := store.New()
	translated := msg("1", "hi", "1")
	translated.TranslatedContent = ptr("hola")

	s.LoadSnapshot([]models.Message{translated, msg("2", "bye", "1")})

	view := slices.Collect(s.ResolvedView(nil, models.Viewer{}))
	assert.Equal(t, "hola", view[0].Text)
	assert.True(t, view[0].Translated)
	assert.Equal(t, "bye", view[1].Text)
}

func TestLoadSnapshot_ReplacesContents(t *testing.T) {
	s := store.New()
	s.LoadSnapshot([]models.Message{msg("1", "a", "1")})
	s.AppendLive(msg("2", "b", "1"))

	s.LoadSnapshot([]models.Message{msg("5", "e", "1")})

	assert.Equal(t, 1, s.Len())
	_, ok := s.Get("1")
	assert.False(t, ok)
	_, ok = s.Get("5")
	assert.True(t, ok)
}

func TestLoadSnapshot_DropsDuplicateIDs(t *testing.T) {
	s := store.New()

	s.LoadSnapshot([]models.Message{msg("1", "first", "1"), msg("1", "second", "1")})

	require.Equal(t, 1, s.Len())
	got, _ := s.Get("1")
	assert.Equal(t, "first", got.OriginalContent)
}

func TestAppendLive_IsIdempotent(t *testing.T) {
	s := store.New()

	for i := range 5 {
		for _, id := range []string{"1", "2", "1", "3", "2"} {
			s.AppendLive(msg(id, fmt.Sprintf("round %d", i), "1"))
		}
	}

	assert.Equal(t, 3, s.Len())
	seen := map[string]bool{}
	for entry := range s.ResolvedView(nil, models.Viewer{}) {
		assert.False(t, seen[entry.ID], "duplicate id %s", entry.ID)
		seen[entry.ID] = true
	}
}

func TestAppendLive_ExistingEntryUntouched(t *testing.T) {
	s := store.New()
	s.LoadSnapshot([]models.Message{msg("1", "original", "1")})

	appended := s.AppendLive(msg("1", "echo", "1"))

	assert.False(t, appended)
	got, _ := s.Get("1")
	assert.Equal(t, "original", got.OriginalContent)
}

func TestApplyTranslationUpdate_KnownMessage(t *testing.T) {
	s := store.New()
	s.LoadSnapshot([]models.Message{msg("1", "hi", "1")})

	applied := s.ApplyTranslationUpdate("1", "hola")

	assert.True(t, applied)
	got, _ := s.Get("1")
	assert.Equal(t, "hi", got.OriginalContent, "original content never changes")
	require.NotNil(t, got.TranslatedContent)
	assert.Equal(t, "hola", *got.TranslatedContent)
}

func TestApplyTranslationUpdate_BufferedUntilSnapshot(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := newTestStore(clock)

	applied := s.ApplyTranslationUpdate("1", "hola")
	require.False(t, applied)
	assert.Equal(t, 1, s.PendingTranslations())

	clock.Advance(30 * time.Second)
	s.LoadSnapshot([]models.Message{msg("1", "hi", "alice")})

	view := slices.Collect(s.ResolvedView(nil, models.Viewer{}))
	require.Len(t, view, 1)
	assert.Equal(t, "hola", view[0].Text)
	assert.Equal(t, 0, s.PendingTranslations())
}

func TestApplyTranslationUpdate_BufferedUntilLiveAppend(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := newTestStore(clock)

	s.ApplyTranslationUpdate("9", "bonjour")
	s.AppendLive(msg("9", "hello", "bob"))

	got, _ := s.Get("9")
	require.NotNil(t, got.TranslatedContent)
	assert.Equal(t, "bonjour", *got.TranslatedContent)
}

func TestApplyTranslationUpdate_ExpiredBufferHasNoEffect(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := newTestStore(clock)

	s.ApplyTranslationUpdate("1", "hola")
	clock.Advance(time.Minute + time.Second)
	s.LoadSnapshot([]models.Message{msg("1", "hi", "alice")})

	got, _ := s.Get("1")
	assert.Nil(t, got.TranslatedContent)
	assert.Equal(t, 0, s.PendingTranslations())
}

func TestApplyTranslationUpdate_LatestBufferedWins(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := newTestStore(clock)

	s.ApplyTranslationUpdate("1", "hola")
	s.ApplyTranslationUpdate("1", "buenas")
	s.AppendLive(msg("1", "hi", "alice"))

	got, _ := s.Get("1")
	assert.Equal(t, "buenas", *got.TranslatedContent)
}

func TestApplyTranslationUpdate_BoundedBuffer(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := newTestStore(clock, store.WithMaxPending(3))

	for i := range 5 {
		s.ApplyTranslationUpdate(fmt.Sprintf("%d", i), "t")
	}

	assert.Equal(t, 3, s.PendingTranslations())
	s.LoadSnapshot([]models.Message{msg("0", "evicted", "1"), msg("4", "kept", "1")})
	first, _ := s.Get("0")
	last, _ := s.Get("4")
	assert.Nil(t, first.TranslatedContent, "oldest buffered update is evicted first")
	assert.NotNil(t, last.TranslatedContent)
}

func TestApplyTranslationUpdate_RebufferedIDMovesToTail(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := newTestStore(clock, store.WithMaxPending(2))

	s.ApplyTranslationUpdate("a", "uno")
	s.ApplyTranslationUpdate("b", "dos")
	s.ApplyTranslationUpdate("a", "uno bis")
	s.ApplyTranslationUpdate("c", "tres")

	assert.Equal(t, 2, s.PendingTranslations())
	s.LoadSnapshot([]models.Message{msg("a", "one", "1"), msg("b", "two", "1"), msg("c", "three", "1")})
	a, _ := s.Get("a")
	b, _ := s.Get("b")
	c, _ := s.Get("c")
	require.NotNil(t, a.TranslatedContent, "refreshed update is the newest")
	assert.Equal(t, "uno bis", *a.TranslatedContent)
	assert.Nil(t, b.TranslatedContent)
	require.NotNil(t, c.TranslatedContent)
}

func TestLoadSnapshot_SuppliedTranslationWinsOverBuffer(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := newTestStore(clock)

	s.ApplyTranslationUpdate("1", "hola")
	withFrench := msg("1", "hi", "alice")
	withFrench.TranslatedContent = ptr("salut")
	s.LoadSnapshot([]models.Message{withFrench})

	got, _ := s.Get("1")
	require.NotNil(t, got.TranslatedContent)
	assert.Equal(t, "salut", *got.TranslatedContent)
	assert.Equal(t, 0, s.PendingTranslations())
}

func TestDropPending(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := newTestStore(clock)
	s.LoadSnapshot([]models.Message{msg("1", "hi", "alice")})

	s.ApplyTranslationUpdate("9", "nueve")
	s.DropPending()
	s.AppendLive(msg("9", "nine", "bob"))

	got, _ := s.Get("9")
	assert.Nil(t, got.TranslatedContent)
	assert.Equal(t, 0, s.PendingTranslations())
	assert.Equal(t, 2, s.Len(), "messages are kept")
}

func TestResolvedView_SenderNames(t *testing.T) {
	s := store.New()
	s.LoadSnapshot([]models.Message{
		{ID: "1", OriginalContent: "a", Sender: models.Sender{ID: "10", DisplayName: "carol"}},
		{ID: "2", OriginalContent: "b", Sender: models.Sender{ID: "11"}},
		{ID: "3", OriginalContent: "c", Sender: models.Sender{ID: "99"}},
		{ID: "4", OriginalContent: "d"},
	})
	resolver := mapResolver{"11": "dave", "10": "not-used"}

	view := slices.Collect(s.ResolvedView(resolver, models.Viewer{Username: "dave"}))

	require.Len(t, view, 4)
	assert.Equal(t, "carol", view[0].SenderName, "embedded record wins over the directory")
	assert.Equal(t, "dave", view[1].SenderName)
	assert.True(t, view[1].IsOwnMessage)
	assert.Equal(t, "99", view[2].SenderName, "unknown senders degrade to their id")
	assert.Equal(t, "Unknown", view[3].SenderName)
	assert.False(t, view[0].IsOwnMessage)
}

func TestResolvedView_IsRestartableAndPure(t *testing.T) {
	s := store.New()
	s.LoadSnapshot([]models.Message{msg("1", "a", "1"), msg("2", "b", "1")})
	view := s.ResolvedView(nil, models.Viewer{})

	first := slices.Collect(view)
	second := slices.Collect(view)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, s.Len())
}

func TestResolvedView_StopsEarly(t *testing.T) {
	s := store.New()
	s.LoadSnapshot([]models.Message{msg("1", "a", "1"), msg("2", "b", "1"), msg("3", "c", "1")})

	var ids []string
	for entry := range s.ResolvedView(nil, models.Viewer{}) {
		ids = append(ids, entry.ID)
		if len(ids) == 2 {
			break
		}
	}

	assert.Equal(t, []string{"1", "2"}, ids)
}

func TestScenario_SnapshotThenLiveMessage(t *testing.T) {
	s := store.New()
	s.LoadSnapshot([]models.Message{{ID: "1", OriginalContent: "hi", Sender: models.Sender{ID: "alice"}}})

	s.AppendLive(models.Message{ID: "2", OriginalContent: "hello", Sender: models.Sender{ID: "2", DisplayName: "bob"}})

	view := slices.Collect(s.ResolvedView(nil, models.Viewer{}))
	require.Len(t, view, 2)
	assert.Equal(t, "1", view[0].ID)
	assert.Equal(t, "hi", view[0].Text)
	assert.Equal(t, "2", view[1].ID)
	assert.Equal(t, "bob", view[1].SenderName)
	assert.Equal(t, "hello", view[1].Text)
}

func TestClear(t *testing.T) {
	s := store.New()
	s.LoadSnapshot([]models.Message{msg("1", "a", "1")})
	s.ApplyTranslationUpdate("2", "pending")

	s.Clear()

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.PendingTranslations())
	s.AppendLive(msg("2", "b", "1"))
	got, _ := s.Get("2")
	assert.Nil(t, got.TranslatedContent, "buffered updates do not survive a clear")
}

func TestMessages_ReturnsCopy(t *testing.T) {
	s := store.New()
	s.LoadSnapshot([]models.Message{msg("1", "a", "1")})

	out := s.Messages()
	out[0].OriginalContent = "mutated"

	got, _ := s.Get("1")
	assert.Equal(t, "a", got.OriginalContent)
}
