package questions

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"buzzer/internal/model"
)

// Provider is the Source the room core is actually handed: it tries the
// remote provider up to 3 times, discarding any result whose id has already
// been used by the room, then falls back to the embedded LocalBank — the
// policy described in §4.D.
type Provider struct {
	primary  Source
	fallback Source
	log      zerolog.Logger
}

// NewProvider composes primary (the remote trivia API) with fallback (the
// embedded bank).
func NewProvider(primary, fallback Source, log zerolog.Logger) *Provider {
	return &Provider{primary: primary, fallback: fallback, log: log}
}

const maxAttempts = 3

func (p *Provider) FetchQuestion(ctx context.Context, opts model.FetchOptions) (*model.Question, error) {
	var sawTransportErr bool
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		q, err := p.primary.FetchQuestion(ctx, opts)
		if err != nil {
			sawTransportErr = true
			p.log.Warn().Err(err).Int("attempt", attempt).Msg("question provider fetch failed")
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				break
			}
			continue
		}
		if _, excluded := opts.ExcludeIDs[q.ID]; excluded {
			p.log.Debug().Str("question_id", q.ID).Msg("question provider returned an already-used question, retrying")
			continue
		}
		return q, nil
	}

	q, err := p.fallback.FetchQuestion(ctx, opts)
	if err == nil {
		p.log.Info().Msg("serving question from local fallback bank")
		return q, nil
	}

	if sawTransportErr {
		return nil, model.ErrQuestionProviderUnavailable
	}
	return nil, model.ErrUniqueQuestionUnavailable
}

func (p *Provider) FetchCategories(ctx context.Context) (map[string][]string, error) {
	cats, err := p.primary.FetchCategories(ctx)
	if err == nil {
		return cats, nil
	}
	p.log.Warn().Err(err).Msg("question provider category fetch failed, using local fallback")
	return p.fallback.FetchCategories(ctx)
}
