package questions

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"buzzer/internal/model"
)

// RemoteSource talks to an upstream trivia-question provider over HTTP. It
// makes exactly one attempt per call; retry and exclusion-aware fallback is
// the responsibility of Provider, which wraps it.
type RemoteSource struct {
	baseURL    string
	httpClient *http.Client
}

// NewRemoteSource builds a RemoteSource against baseURL using client, which
// the caller is expected to have configured with a sensible timeout — the
// room core supplies its own per-call deadline via ctx regardless.
func NewRemoteSource(baseURL string, client *http.Client) *RemoteSource {
	return &RemoteSource{baseURL: strings.TrimRight(baseURL, "/"), httpClient: client}
}

type apiQuestionResponse struct {
	ResponseCode int `json:"response_code"`
	Results      []struct {
		Category         string   `json:"category"`
		Difficulty       string   `json:"difficulty"`
		Question         string   `json:"question"`
		CorrectAnswer    string   `json:"correct_answer"`
		IncorrectAnswers []string `json:"incorrect_answers"`
	} `json:"results"`
}

func (s *RemoteSource) FetchQuestion(ctx context.Context, opts model.FetchOptions) (*model.Question, error) {
	q := url.Values{}
	q.Set("amount", "1")
	q.Set("type", "multiple")
	if opts.Category != "" {
		q.Set("category", opts.Category)
	}
	if opts.Difficulty != "" {
		q.Set("difficulty", string(opts.Difficulty))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api.php?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build question request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("question provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("question provider returned status %d", resp.StatusCode)
	}

	var body apiQuestionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode question response: %w", err)
	}
	if body.ResponseCode != 0 || len(body.Results) == 0 {
		return nil, fmt.Errorf("question provider returned no results (code %d)", body.ResponseCode)
	}

	r := body.Results[0]
	incorrect := make([]string, len(r.IncorrectAnswers))
	for i, a := range r.IncorrectAnswers {
		incorrect[i] = html.UnescapeString(a)
	}

	return &model.Question{
		ID:               uuid.NewString(),
		Category:         html.UnescapeString(r.Category),
		Difficulty:       model.Difficulty(r.Difficulty),
		Title:            html.UnescapeString(r.Question),
		CorrectAnswer:    html.UnescapeString(r.CorrectAnswer),
		IncorrectAnswers: incorrect,
	}, nil
}

type apiCategoryResponse struct {
	TriviaCategories []struct {
		Name string `json:"name"`
	} `json:"trivia_categories"`
}

// FetchCategories slugifies provider category names of the form
// "Group: Sub" into group -> []sub; names without a colon become their own
// single-entry group.
func (s *RemoteSource) FetchCategories(ctx context.Context) (map[string][]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api_category.php", nil)
	if err != nil {
		return nil, fmt.Errorf("build categories request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("categories request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("categories provider returned status %d", resp.StatusCode)
	}

	var body apiCategoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode categories response: %w", err)
	}

	out := map[string][]string{}
	for _, c := range body.TriviaCategories {
		group, sub := splitCategoryName(c.Name)
		gs, ss := Slugify(group), Slugify(sub)
		out[gs] = append(out[gs], ss)
	}
	return out, nil
}

func splitCategoryName(name string) (group, sub string) {
	if idx := strings.Index(name, ":"); idx >= 0 {
		return strings.TrimSpace(name[:idx]), strings.TrimSpace(name[idx+1:])
	}
	return name, name
}
