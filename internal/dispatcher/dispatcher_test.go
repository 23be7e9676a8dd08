package dispatcher

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"buzzer/internal/archive"
	"buzzer/internal/model"
	"buzzer/internal/registry"
	"buzzer/internal/room"
	"buzzer/internal/telemetry"
)

type fakeSource struct {
	queue []*model.Question
}

func (f *fakeSource) FetchCategories(ctx context.Context) (map[string][]string, error) {
	return nil, nil
}

func (f *fakeSource) FetchQuestion(ctx context.Context, opts model.FetchOptions) (*model.Question, error) {
	if len(f.queue) == 0 {
		return nil, model.ErrUniqueQuestionUnavailable
	}
	q := f.queue[0]
	f.queue = f.queue[1:]
	return q, nil
}

func newTestDispatcher(src *fakeSource) *Dispatcher {
	reg := registry.New(src, zerolog.Nop())
	return New(reg, src, archive.NoopArchiver{}, telemetry.NoopPublisher{}, zerolog.Nop())
}

type recordingArchiver struct {
	summaries []model.RoomSummary
}

func (a *recordingArchiver) Archive(ctx context.Context, summary model.RoomSummary) {
	a.summaries = append(a.summaries, summary)
}

func TestCreateJoinAndSetTurn(t *testing.T) {
	r := require.New(t)
	d := newTestDispatcher(&fakeSource{})

	rm := d.CreateRoom(context.Background(), "secret")
	p, err := d.Join(rm.Code(), "Alice")
	r.NoError(err)

	r.NoError(d.SetTurn(rm.Code(), "secret", p.ID))

	snap := rm.Snapshot(true)
	r.Equal(p.ID, snap.CurrentTurn.PlayerID)
}

func TestSetTurnRejectsWrongHostSecret(t *testing.T) {
	r := require.New(t)
	d := newTestDispatcher(&fakeSource{})

	rm := d.CreateRoom(context.Background(), "secret")
	p, err := d.Join(rm.Code(), "Alice")
	r.NoError(err)

	err = d.SetTurn(rm.Code(), "wrong", p.ID)
	r.ErrorIs(err, model.ErrForbidden)
}

func TestLookupUnknownRoom(t *testing.T) {
	r := require.New(t)
	d := newTestDispatcher(&fakeSource{})

	_, err := d.Lookup("NOPE")
	r.ErrorIs(err, model.ErrRoomNotFound)
}

func TestActivateAndMarkCorrectBroadcastsScore(t *testing.T) {
	r := require.New(t)
	src := &fakeSource{queue: []*model.Question{{
		ID: "Q1", Category: "science", Difficulty: model.DifficultyEasy,
		Title: "t", CorrectAnswer: "a", IncorrectAnswers: []string{"b", "c", "d"},
	}}}
	d := newTestDispatcher(src)

	rm := d.CreateRoom(context.Background(), "secret")
	p, err := d.Join(rm.Code(), "Alice")
	r.NoError(err)
	r.NoError(d.SetTurn(rm.Code(), "secret", p.ID))

	r.NoError(d.Activate(context.Background(), rm.Code(), "secret", room.ActivateOptions{
		Category: "science", Difficulty: model.DifficultyEasy,
	}))

	r.NoError(d.MarkCorrect(rm.Code(), "secret", p.ID))

	snap := rm.Snapshot(true)
	r.Equal(150, snap.Players[0].Score)
}

func TestRemovePlayerRequiresNoHostSecret(t *testing.T) {
	r := require.New(t)
	d := newTestDispatcher(&fakeSource{})

	rm := d.CreateRoom(context.Background(), "secret")
	p, err := d.Join(rm.Code(), "Alice")
	r.NoError(err)

	r.NoError(d.RemovePlayer(rm.Code(), p.ID))

	_, ok := d.registry.Get(rm.Code())
	r.False(ok, "room with no players left should be dropped")
}

func TestRemovePlayerArchivesRoomThatEmptiesOut(t *testing.T) {
	r := require.New(t)
	src := &fakeSource{}
	reg := registry.New(src, zerolog.Nop())
	arc := &recordingArchiver{}
	d := New(reg, src, arc, telemetry.NoopPublisher{}, zerolog.Nop())

	rm := d.CreateRoom(context.Background(), "secret")
	p, err := d.Join(rm.Code(), "Alice")
	r.NoError(err)

	r.NoError(d.RemovePlayer(rm.Code(), p.ID))

	r.Len(arc.summaries, 1)
	r.Equal(rm.Code(), arc.summaries[0].Code)
}

func TestRemovePlayerDoesNotArchiveWhenRoomStaysNonEmpty(t *testing.T) {
	r := require.New(t)
	src := &fakeSource{}
	reg := registry.New(src, zerolog.Nop())
	arc := &recordingArchiver{}
	d := New(reg, src, arc, telemetry.NoopPublisher{}, zerolog.Nop())

	rm := d.CreateRoom(context.Background(), "secret")
	alice, err := d.Join(rm.Code(), "Alice")
	r.NoError(err)
	_, err = d.Join(rm.Code(), "Bob")
	r.NoError(err)

	r.NoError(d.RemovePlayer(rm.Code(), alice.ID))

	r.Empty(arc.summaries)
}

func TestDestroyRoomDropsFromRegistryAndArchives(t *testing.T) {
	r := require.New(t)
	src := &fakeSource{}
	reg := registry.New(src, zerolog.Nop())
	arc := &recordingArchiver{}
	d := New(reg, src, arc, telemetry.NoopPublisher{}, zerolog.Nop())

	rm := d.CreateRoom(context.Background(), "secret")
	_, err := d.Join(rm.Code(), "Alice")
	r.NoError(err)

	r.NoError(d.DestroyRoom(context.Background(), rm.Code(), "secret"))

	_, ok := d.registry.Get(rm.Code())
	r.False(ok)
	r.Len(arc.summaries, 1)
	r.Equal(rm.Code(), arc.summaries[0].Code)
}

func TestShareCodeIssueAndClaim(t *testing.T) {
	r := require.New(t)
	d := newTestDispatcher(&fakeSource{})

	rm := d.CreateRoom(context.Background(), "secret")
	code, err := d.IssueShareCode(rm.Code(), "secret")
	r.NoError(err)
	r.NotEmpty(code)

	claimed, err := d.ClaimShareCode(code)
	r.NoError(err)
	r.Equal(rm.Code(), claimed.Code())
}
