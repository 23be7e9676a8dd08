package room

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"buzzer/internal/model"
)

// fakeSource is a deterministic, in-memory questions.Source used by every
// room test — it returns queued questions in order rather than calling
// out to any real provider.
type fakeSource struct {
	queue []*model.Question
	err   error
}

func (f *fakeSource) FetchCategories(ctx context.Context) (map[string][]string, error) {
	return nil, nil
}

func (f *fakeSource) FetchQuestion(ctx context.Context, opts model.FetchOptions) (*model.Question, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.queue) == 0 {
		return nil, model.ErrUniqueQuestionUnavailable
	}
	q := f.queue[0]
	f.queue = f.queue[1:]
	return q, nil
}

func science42() *model.Question {
	return &model.Question{
		ID: "Q1", Category: "science", Difficulty: model.DifficultyMedium,
		Title: "What is the answer?", CorrectAnswer: "42",
		IncorrectAnswers: []string{"7", "12", "99"},
	}
}

func historyHard() *model.Question {
	return &model.Question{
		ID: "Q2", Category: "history", Difficulty: model.DifficultyHard,
		Title: "When?", CorrectAnswer: "1066",
		IncorrectAnswers: []string{"1215", "1492", "1776"},
	}
}

// TestHappyPath mirrors seed scenario S1.
func TestHappyPath(t *testing.T) {
	r := require.New(t)
	rm := New("ABCD", "secret", time.Now(), nil)

	alice, err := rm.Join("Alice")
	r.NoError(err)
	bob, err := rm.Join("Bob")
	r.NoError(err)

	r.NoError(rm.SetTurn(alice.ID))

	src := &fakeSource{queue: []*model.Question{science42()}}
	aq, err := rm.Activate(context.Background(), ActivateOptions{Category: "science", Difficulty: model.DifficultyMedium}, src)
	r.NoError(err)
	r.Equal(alice.ID, aq.AssignedTo)

	r.NoError(rm.MarkCorrect(alice.ID))

	snap := rm.Snapshot(true)
	r.Equal(250, findScore(snap, alice.ID))
	r.Equal(0, findScore(snap, bob.ID))
	r.Equal(bob.ID, snap.CurrentTurn.PlayerID)
	r.True(snap.LastResult.AnsweredCorrectly)
	r.Nil(snap.ActiveQuestion)
}

// TestBuzzRace mirrors S2.
func TestBuzzRace(t *testing.T) {
	r := require.New(t)
	rm := New("ABCD", "secret", time.Now(), nil)

	alice, _ := rm.Join("Alice")
	bob, _ := rm.Join("Bob")
	r.NoError(rm.SetTurn(alice.ID))

	src := &fakeSource{queue: []*model.Question{science42()}}
	_, err := rm.Activate(context.Background(), ActivateOptions{}, src)
	r.NoError(err)
	r.NoError(rm.MarkCorrect(alice.ID))

	src2 := &fakeSource{queue: []*model.Question{historyHard()}}
	_, err = rm.Activate(context.Background(), ActivateOptions{Category: "history", Difficulty: model.DifficultyHard}, src2)
	r.NoError(err)
	r.NoError(rm.OpenBuzzers())

	err1 := rm.Buzz(alice.ID)
	err2 := rm.Buzz(bob.ID)
	// exactly one of these must succeed
	r.True((err1 == nil) != (err2 == nil))

	var winner, loser string
	if err1 == nil {
		winner, loser = alice.ID, bob.ID
	} else {
		winner, loser = bob.ID, alice.ID
	}
	_ = loser

	snap := rm.Snapshot(true)
	r.Equal(winner, snap.ActiveQuestion.AnsweringPlayer.PlayerID)

	r.NoError(rm.MarkIncorrect(true))
	snap = rm.Snapshot(true)
	r.Equal(model.StageOpenForBuzz, snap.ActiveQuestion.Stage)
	r.True(containsRef(snap.ActiveQuestion.AttemptedPlayers, winner))

	// the remaining player is free to buzz once the host reopens buzzers
	r.NoError(rm.Buzz(loser))

	r.NoError(rm.MarkIncorrect(false))
	snap = rm.Snapshot(true)
	r.False(snap.LastResult.AnsweredCorrectly)
	r.Nil(snap.ActiveQuestion)
}

// TestSlotCollision mirrors S3.
func TestSlotCollision(t *testing.T) {
	r := require.New(t)
	rm := New("ABCD", "secret", time.Now(), nil)
	alice, _ := rm.Join("Alice")
	r.NoError(rm.SetTurn(alice.ID))

	src := &fakeSource{queue: []*model.Question{{
		ID: "Q1", Category: "music", Difficulty: model.DifficultyEasy, Title: "t", CorrectAnswer: "a",
	}}}
	_, err := rm.Activate(context.Background(), ActivateOptions{Category: "music", Difficulty: model.DifficultyEasy}, src)
	r.NoError(err)

	src2 := &fakeSource{queue: []*model.Question{{
		ID: "Q1b", Category: "music", Difficulty: model.DifficultyEasy, Title: "t2", CorrectAnswer: "b",
	}}}
	_, err = rm.Activate(context.Background(), ActivateOptions{Category: "music", Difficulty: model.DifficultyEasy}, src2)
	r.ErrorIs(err, model.ErrQuestionAlreadyInPlay)

	r.NoError(rm.MarkIncorrect(false))

	src3 := &fakeSource{queue: []*model.Question{{
		ID: "Q1c", Category: "music", Difficulty: model.DifficultyEasy, Title: "t3", CorrectAnswer: "c",
	}}}
	_, err = rm.Activate(context.Background(), ActivateOptions{Category: "music", Difficulty: model.DifficultyEasy}, src3)
	r.ErrorIs(err, model.ErrSlotAlreadyUsed)
}

// TestPlayerLeavesMidQuestion mirrors S4.
func TestPlayerLeavesMidQuestion(t *testing.T) {
	r := require.New(t)
	rm := New("ABCD", "secret", time.Now(), nil)
	alice, _ := rm.Join("Alice")
	bob, _ := rm.Join("Bob")
	_, _ = rm.Join("Carol")
	r.NoError(rm.SetTurn(alice.ID))

	src := &fakeSource{queue: []*model.Question{science42()}}
	_, err := rm.Activate(context.Background(), ActivateOptions{}, src)
	r.NoError(err)
	r.NoError(rm.OpenBuzzers())
	r.NoError(rm.Buzz(bob.ID))

	r.NoError(rm.RemovePlayer(bob.ID))

	snap := rm.Snapshot(true)
	r.Nil(snap.ActiveQuestion.AnsweringPlayer)
	r.False(snap.ActiveQuestion.QuestionActive)
	r.False(containsRef(snap.ActiveQuestion.AttemptedPlayers, bob.ID))
	r.NotNil(snap.CurrentTurn)
	r.Equal(alice.ID, snap.CurrentTurn.PlayerID)
}

// TestBystanderRemovalDoesNotDistortCapturedTurnIndex guards against the
// captured ActiveQuestion turn slot drifting out of sync with turnOrder when
// a player earlier in the order leaves while a question is in flight: Carol
// is on turn when Alice (who joined before her) leaves mid-question, and the
// turn must still land on Bob afterward, not loop back to Carol.
func TestBystanderRemovalDoesNotDistortCapturedTurnIndex(t *testing.T) {
	r := require.New(t)
	rm := New("ABCD", "secret", time.Now(), nil)
	alice, _ := rm.Join("Alice")
	bob, _ := rm.Join("Bob")
	carol, _ := rm.Join("Carol")
	r.NoError(rm.SetTurn(carol.ID))

	src := &fakeSource{queue: []*model.Question{science42()}}
	_, err := rm.Activate(context.Background(), ActivateOptions{}, src)
	r.NoError(err)

	r.NoError(rm.RemovePlayer(alice.ID))

	r.NoError(rm.MarkCorrect(carol.ID))

	snap := rm.Snapshot(true)
	r.NotNil(snap.CurrentTurn)
	r.Equal(bob.ID, snap.CurrentTurn.PlayerID)
}

// TestShareLifecycle mirrors S5's TTL-expiry half (issue/claim wiring lives
// in the registry; this exercises the room-local half of the contract).
func TestShareLifecycle(t *testing.T) {
	r := require.New(t)
	rm := New("ABCD", "secret", time.Now(), nil)

	issuedAt, expiresAt := rm.IssueShareCode("7421")
	r.True(expiresAt.After(issuedAt))
	r.True(rm.MatchesShareCode("7421"))

	rm.shareCodeExpiresAt = time.Now().Add(-time.Second)
	r.False(rm.MatchesShareCode("7421"))
}

// TestRoleAwareSnapshot mirrors S6.
func TestRoleAwareSnapshot(t *testing.T) {
	r := require.New(t)
	rm := New("ABCD", "secret", time.Now(), nil)
	alice, _ := rm.Join("Alice")
	r.NoError(rm.SetTurn(alice.ID))

	src := &fakeSource{queue: []*model.Question{science42()}}
	_, err := rm.Activate(context.Background(), ActivateOptions{}, src)
	r.NoError(err)

	hostSnap := rm.Snapshot(true)
	r.Equal("42", hostSnap.ActiveQuestion.CorrectAnswer)
	r.NotEmpty(hostSnap.ActiveQuestion.Choices)

	playerSnap := rm.Snapshot(false)
	r.Empty(playerSnap.ActiveQuestion.CorrectAnswer)
	r.Empty(playerSnap.ActiveQuestion.Choices)
}

// TestShareCodeVisibilityByRole mirrors S6's share-code half: a player must
// learn a share is active (shareCodeExpiresAt) without ever seeing its digits.
func TestShareCodeVisibilityByRole(t *testing.T) {
	r := require.New(t)
	rm := New("ABCD", "secret", time.Now(), nil)
	rm.IssueShareCode("7421")

	hostSnap := rm.Snapshot(true)
	r.Equal("7421", hostSnap.ShareCode)
	r.NotNil(hostSnap.ShareCodeIssuedAt)
	r.NotNil(hostSnap.ShareCodeExpiresAt)

	playerSnap := rm.Snapshot(false)
	r.Empty(playerSnap.ShareCode)
	r.Nil(playerSnap.ShareCodeIssuedAt)
	r.NotNil(playerSnap.ShareCodeExpiresAt)
}

func TestActivateRequiresTurn(t *testing.T) {
	r := require.New(t)
	rm := New("ABCD", "secret", time.Now(), nil)
	src := &fakeSource{queue: []*model.Question{science42()}}
	_, err := rm.Activate(context.Background(), ActivateOptions{}, src)
	r.ErrorIs(err, model.ErrTurnRequired)
}

func TestBuzzRequiresOpenStage(t *testing.T) {
	r := require.New(t)
	rm := New("ABCD", "secret", time.Now(), nil)
	alice, _ := rm.Join("Alice")
	r.NoError(rm.SetTurn(alice.ID))

	err := rm.Buzz(alice.ID)
	r.ErrorIs(err, model.ErrBuzzNotAvailable)
}

func TestMarkCorrectFallsBackToAnsweringPlayer(t *testing.T) {
	r := require.New(t)
	rm := New("ABCD", "secret", time.Now(), nil)
	alice, _ := rm.Join("Alice")
	r.NoError(rm.SetTurn(alice.ID))

	src := &fakeSource{queue: []*model.Question{science42()}}
	_, err := rm.Activate(context.Background(), ActivateOptions{}, src)
	r.NoError(err)

	r.NoError(rm.MarkCorrect(""))
	snap := rm.Snapshot(true)
	r.Equal(250, findScore(snap, alice.ID))
}

func findScore(snap *model.Snapshot, playerID string) int {
	for _, p := range snap.Players {
		if p.PlayerID == playerID {
			return p.Score
		}
	}
	return -1
}

func containsRef(refs []model.PlayerRef, playerID string) bool {
	for _, ref := range refs {
		if ref.PlayerID == playerID {
			return true
		}
	}
	return false
}
