package questions

import (
	"context"
	"math/rand"

	"buzzer/internal/model"
)

// LocalBank is an embedded, always-available question set used when the
// remote provider is unreachable or exhausted. It is intentionally small —
// it exists to keep a room playable during an outage, not to be a primary
// content source.
type LocalBank struct {
	questions []bankQuestion
}

type bankQuestion struct {
	category         string
	difficulty       model.Difficulty
	title            string
	correctAnswer    string
	incorrectAnswers []string
}

// NewLocalBank returns the embedded fallback question set.
func NewLocalBank() *LocalBank {
	return &LocalBank{questions: embeddedQuestions}
}

func (b *LocalBank) FetchCategories(ctx context.Context) (map[string][]string, error) {
	out := map[string][]string{}
	seen := map[string]map[string]struct{}{}
	for _, q := range b.questions {
		group := Slugify(q.category)
		if seen[group] == nil {
			seen[group] = map[string]struct{}{}
		}
		if _, ok := seen[group][group]; !ok {
			seen[group][group] = struct{}{}
			out[group] = append(out[group], group)
		}
	}
	return out, nil
}

func (b *LocalBank) FetchQuestion(ctx context.Context, opts model.FetchOptions) (*model.Question, error) {
	var candidates []bankQuestion
	for _, q := range b.questions {
		if opts.Category != "" && Slugify(q.category) != Slugify(opts.Category) {
			continue
		}
		if opts.Difficulty != "" && q.difficulty != opts.Difficulty {
			continue
		}
		candidates = append(candidates, q)
	}
	if len(candidates) == 0 {
		// Relax the category filter before giving up entirely: a room is
		// better served by a question of the wrong topic than no question.
		for _, q := range b.questions {
			if opts.Difficulty != "" && q.difficulty != opts.Difficulty {
				continue
			}
			candidates = append(candidates, q)
		}
	}
	if len(candidates) == 0 {
		candidates = b.questions
	}

	for _, q := range shuffled(candidates) {
		id := fallbackStableID(q)
		if opts.ExcludeIDs != nil {
			if _, excluded := opts.ExcludeIDs[id]; excluded {
				continue
			}
		}
		return &model.Question{
			ID:               id,
			Category:         q.category,
			Difficulty:       q.difficulty,
			Title:            q.title,
			CorrectAnswer:    q.correctAnswer,
			IncorrectAnswers: q.incorrectAnswers,
		}, nil
	}
	return nil, model.ErrUniqueQuestionUnavailable
}

// fallbackStableID is the id a bank question is served under, so an id the
// room has already used excludes that question by content identity.
func fallbackStableID(q bankQuestion) string {
	return q.category + "|" + string(q.difficulty) + "|" + q.title
}

func shuffled(in []bankQuestion) []bankQuestion {
	out := make([]bankQuestion, len(in))
	copy(out, in)
	for i := len(out) - 1; i > 0; i-- {
		j := rand.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

var embeddedQuestions = []bankQuestion{
	{"science", model.DifficultyEasy, "What planet is known as the Red Planet?", "Mars", []string{"Venus", "Jupiter", "Saturn"}},
	{"science", model.DifficultyMedium, "What is the chemical symbol for gold?", "Au", []string{"Ag", "Gd", "Go"}},
	{"science", model.DifficultyHard, "What particle mediates the electromagnetic force?", "Photon", []string{"Gluon", "Boson", "Neutrino"}},
	{"history", model.DifficultyEasy, "In which year did World War II end?", "1945", []string{"1939", "1918", "1950"}},
	{"history", model.DifficultyMedium, "Who was the first President of the United States?", "George Washington", []string{"Thomas Jefferson", "John Adams", "Abraham Lincoln"}},
	{"history", model.DifficultyHard, "The Treaty of Westphalia ended which conflict?", "Thirty Years' War", []string{"Hundred Years' War", "Napoleonic Wars", "War of Spanish Succession"}},
	{"geography", model.DifficultyEasy, "What is the capital of France?", "Paris", []string{"Lyon", "Marseille", "Nice"}},
	{"geography", model.DifficultyMedium, "Which river is the longest in the world?", "Nile", []string{"Amazon", "Yangtze", "Mississippi"}},
	{"geography", model.DifficultyHard, "Which country has the most time zones?", "France", []string{"Russia", "USA", "China"}},
	{"music", model.DifficultyEasy, "How many strings does a standard guitar have?", "6", []string{"4", "5", "7"}},
	{"music", model.DifficultyMedium, "Who composed the Ninth Symphony?", "Beethoven", []string{"Mozart", "Bach", "Brahms"}},
	{"music", model.DifficultyHard, "What is the term for a gradual increase in volume?", "Crescendo", []string{"Diminuendo", "Staccato", "Legato"}},
}
