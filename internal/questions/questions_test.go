package questions

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"buzzer/internal/model"
)

func TestSlugify(t *testing.T) {
	r := require.New(t)
	r.Equal("science", Slugify("Science"))
	r.Equal("science_and_nature", Slugify("Science & Nature"))
	r.Equal("music_theatres_and_film", Slugify("Music: Theatres & Film"))
	r.Equal("history", Slugify("__History__"))
}

func TestLocalBankHonorsCategoryAndDifficulty(t *testing.T) {
	r := require.New(t)
	bank := NewLocalBank()

	q, err := bank.FetchQuestion(context.Background(), model.FetchOptions{
		Category: "science", Difficulty: model.DifficultyHard,
	})
	r.NoError(err)
	r.Equal("science", q.Category)
	r.Equal(model.DifficultyHard, q.Difficulty)
}

func TestLocalBankRelaxesCategoryWhenExhausted(t *testing.T) {
	r := require.New(t)
	bank := NewLocalBank()

	q, err := bank.FetchQuestion(context.Background(), model.FetchOptions{
		Category: "nonexistent-category", Difficulty: model.DifficultyEasy,
	})
	r.NoError(err)
	r.Equal(model.DifficultyEasy, q.Difficulty)
}

type stubSource struct {
	questions []*model.Question
	errs      []error
	calls     int
}

func (s *stubSource) FetchCategories(ctx context.Context) (map[string][]string, error) {
	return nil, errors.New("not implemented")
}

func (s *stubSource) FetchQuestion(ctx context.Context, opts model.FetchOptions) (*model.Question, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.questions) {
		return s.questions[i], nil
	}
	return nil, errors.New("exhausted")
}

func TestProviderRetriesThenFallsBackToLocalBank(t *testing.T) {
	r := require.New(t)
	primary := &stubSource{errs: []error{errors.New("timeout"), errors.New("timeout"), errors.New("timeout")}}
	p := NewProvider(primary, NewLocalBank(), zerolog.Nop())

	q, err := p.FetchQuestion(context.Background(), model.FetchOptions{Category: "science"})
	r.NoError(err)
	r.NotNil(q)
	r.Equal(3, primary.calls)
}

func TestProviderSkipsExcludedQuestionAndRetries(t *testing.T) {
	r := require.New(t)
	dup := &model.Question{ID: "dup", Category: "science", Difficulty: model.DifficultyEasy, Title: "t", CorrectAnswer: "a"}
	fresh := &model.Question{ID: "fresh", Category: "science", Difficulty: model.DifficultyEasy, Title: "t2", CorrectAnswer: "b"}
	primary := &stubSource{questions: []*model.Question{dup, fresh}}
	p := NewProvider(primary, NewLocalBank(), zerolog.Nop())

	q, err := p.FetchQuestion(context.Background(), model.FetchOptions{
		ExcludeIDs: map[string]struct{}{"dup": {}},
	})
	r.NoError(err)
	r.Equal("fresh", q.ID)
}

func TestProviderReturnsPrimaryResultWithoutTouchingFallback(t *testing.T) {
	r := require.New(t)
	want := &model.Question{ID: "q1", Category: "history", Difficulty: model.DifficultyMedium, Title: "t", CorrectAnswer: "a"}
	primary := &stubSource{questions: []*model.Question{want}}
	p := NewProvider(primary, NewLocalBank(), zerolog.Nop())

	q, err := p.FetchQuestion(context.Background(), model.FetchOptions{})
	r.NoError(err)
	r.Equal(want, q)
	r.Equal(1, primary.calls)
}
