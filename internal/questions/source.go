// Package questions supplies trivia questions to the room core. The Room
// depends only on the narrow QuestionSource interface; this package owns the
// one concrete implementation that wraps a remote trivia provider with a
// bounded-retry/local-fallback policy, per §4.D.
package questions

import (
	"context"

	"buzzer/internal/model"
)

// Source is the collaborator interface the room core depends on. It never
// sees a room's lock and must be safe for concurrent use by many rooms.
type Source interface {
	// FetchCategories returns slugified group -> sub-category slugs, or an
	// error. Callers treat a failure as "categories absent", never fatal.
	FetchCategories(ctx context.Context) (map[string][]string, error)

	// FetchQuestion honors category/difficulty and must never return a
	// question whose ID is in opts.ExcludeIDs. Returns
	// model.ErrUniqueQuestionUnavailable if no such question could be
	// produced, or model.ErrQuestionProviderUnavailable on transport failure
	// after exhausting local fallback.
	FetchQuestion(ctx context.Context, opts model.FetchOptions) (*model.Question, error)
}
