// Package room implements the authoritative per-room state machine: the
// "Room" component of the specification (§4.E). Every mutating operation
// below executes under the room's own lock so that transitions are totally
// ordered and never observed mid-flight, per §5.
package room

import (
	"context"
	"crypto/subtle"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"buzzer/internal/model"
	"buzzer/internal/questions"
)

// Room is the authoritative state of one game instance.
type Room struct {
	mu sync.RWMutex

	code       string
	hostSecret string
	createdAt  time.Time

	players   map[string]*model.Player
	turnOrder []string
	turnIndex *int // index into turnOrder, nil when empty

	activeQuestion *model.ActiveQuestion
	lastResult     *model.QuestionResult

	usedQuestions     map[string]struct{}
	usedCategorySlots map[string]struct{}

	categories map[string][]string // absent (nil) if the preload failed

	shareCode          string
	shareCodeIssuedAt  time.Time
	shareCodeExpiresAt time.Time

	conns *ConnectionSet
}

// New constructs an empty room. categories may be nil — a failed preload
// must never fail room creation (§4.A).
func New(code, hostSecret string, createdAt time.Time, categories map[string][]string) *Room {
	return &Room{
		code:              code,
		hostSecret:        hostSecret,
		createdAt:         createdAt,
		players:           map[string]*model.Player{},
		usedQuestions:     map[string]struct{}{},
		usedCategorySlots: map[string]struct{}{},
		categories:        categories,
		conns:             NewConnectionSet(),
	}
}

// SetCategories installs the registry's preloaded category map. A nil or
// never-called categories map just means "no group resolution available" —
// Activate still works, it simply can't expand a group slug into subs.
func (r *Room) SetCategories(categories map[string][]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories = categories
}

func (r *Room) Code() string           { return r.code }
func (r *Room) CreatedAt() time.Time   { return r.createdAt }
func (r *Room) Connections() *ConnectionSet { return r.conns }

// NewHostSecret mints a fresh opaque host secret for a room about to be
// created.
func NewHostSecret() string {
	return randomToken(24, urlSafeAlphabet)
}

// HostSecretForResponse returns the room's host secret, for the two
// responses that are allowed to carry it back to its owner: room creation
// and a successful share-code claim.
func (r *Room) HostSecretForResponse() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hostSecret
}

// Authenticate compares secret against the room's host secret in constant
// time, per §4.E's implicit host precondition.
func (r *Room) Authenticate(secret string) bool {
	r.mu.RLock()
	want := r.hostSecret
	r.mu.RUnlock()
	return subtle.ConstantTimeCompare([]byte(secret), []byte(want)) == 1
}

// IsEmpty reports whether the room has zero players and zero connections —
// the condition under which the registry drops it (§3 Lifecycles).
func (r *Room) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players) == 0 && r.conns.Count() == 0
}

func (r *Room) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

func (r *Room) QuestionActive() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeQuestion != nil && r.activeQuestion.Stage == model.StageOpenForBuzz
}

func (r *Room) currentTurnID() string {
	if r.turnIndex == nil {
		return ""
	}
	return r.turnOrder[*r.turnIndex]
}

// Join appends a new player and, if nobody was on turn yet, puts them on it.
func (r *Room) Join(name string) (*model.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := newOpaqueID()
	p := &model.Player{ID: id, Name: name, JoinedAt: time.Now()}
	r.players[id] = p
	r.turnOrder = append(r.turnOrder, id)
	if r.turnIndex == nil {
		idx := 0
		r.turnIndex = &idx
	}
	return p, nil
}

// Reconnect is a pure lookup used to authenticate a returning player's
// connection; it never mutates state.
func (r *Room) Reconnect(playerID string) (*model.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[playerID]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return p, nil
}

func (r *Room) SetTurn(playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[playerID]; !ok {
		return model.ErrPlayerNotFound
	}
	for i, id := range r.turnOrder {
		if id == playerID {
			r.turnIndex = &i
			return nil
		}
	}
	return model.ErrPlayerNotFound
}

// ActivateOptions mirrors the host-supplied fields of POST .../activate.
type ActivateOptions struct {
	Category   string
	Difficulty model.Difficulty
}

// Activate fetches a question and puts it into play. It follows the
// short-critical-section discipline of §5(a): gather inputs under the lock,
// call out to the QuestionSource unlocked, then re-validate before
// committing.
func (r *Room) Activate(ctx context.Context, opts ActivateOptions, source questions.Source) (*model.ActiveQuestion, error) {
	r.mu.Lock()
	if r.activeQuestion != nil {
		r.mu.Unlock()
		return nil, model.ErrQuestionAlreadyInPlay
	}
	if r.turnIndex == nil {
		r.mu.Unlock()
		return nil, model.ErrTurnRequired
	}
	turnID := r.currentTurnID()
	turnIdx := *r.turnIndex
	excluded := make(map[string]struct{}, len(r.usedQuestions))
	for id := range r.usedQuestions {
		excluded[id] = struct{}{}
	}

	providerCategory := opts.Category
	if opts.Category != "" {
		if subs, ok := r.categories[opts.Category]; ok && len(subs) > 0 {
			providerCategory = subs[rand.Intn(len(subs))]
		}
	}
	r.mu.Unlock()

	q, err := source.FetchQuestion(ctx, model.FetchOptions{
		Category:   providerCategory,
		Difficulty: opts.Difficulty,
		ExcludeIDs: excluded,
	})
	if err != nil {
		return nil, err
	}

	slotCategory := opts.Category
	if slotCategory == "" {
		slotCategory = q.Category
	}
	slotKey := model.SlotKey(slotCategory, q.Difficulty)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeQuestion != nil {
		return nil, model.ErrQuestionAlreadyInPlay
	}
	if r.turnIndex == nil || r.currentTurnID() != turnID || *r.turnIndex != turnIdx {
		return nil, model.ErrTurnRequired
	}
	if _, used := r.usedCategorySlots[slotKey]; used {
		return nil, model.ErrSlotAlreadyUsed
	}

	r.usedCategorySlots[slotKey] = struct{}{}

	points := model.PointsFor(q.Difficulty)
	choices := shuffleChoices(q.CorrectAnswer, q.IncorrectAnswers)

	active := &model.ActiveQuestion{
		ID:                q.ID,
		Stage:             model.StageAwaitingHostDecision,
		AssignedTo:        turnID,
		AnsweringPlayerID: turnID,
		AttemptedPlayerIDs: map[string]struct{}{turnID: {}},
		TurnIndex:         (turnIdx + 1) % len(r.turnOrder),
		Category:          slotCategory,
		Difficulty:        q.Difficulty,
		Title:             q.Title,
		CorrectAnswer:     q.CorrectAnswer,
		IncorrectAnswers:  q.IncorrectAnswers,
		Choices:           choices,
		Points:            points,
	}
	r.activeQuestion = active
	r.lastResult = nil
	for _, p := range r.players {
		p.BuzzedAt = nil
	}
	return active, nil
}

func shuffleChoices(correct string, incorrect []string) []string {
	choices := make([]string, 0, len(incorrect)+1)
	choices = append(choices, correct)
	choices = append(choices, incorrect...)
	rand.Shuffle(len(choices), func(i, j int) { choices[i], choices[j] = choices[j], choices[i] })
	return choices
}

func (r *Room) OpenBuzzers() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.openBuzzersLocked()
}

// openBuzzersLocked moves the active question into StageOpenForBuzz. Caller
// must hold the write lock; it is never released or reacquired partway, so
// the question is never observable in an in-between state.
func (r *Room) openBuzzersLocked() error {
	aq := r.activeQuestion
	if aq == nil {
		return model.ErrNoActiveQuestion
	}
	if aq.Stage != model.StageAwaitingHostDecision {
		return model.ErrBuzzersAlreadyOpen
	}

	if aq.AnsweringPlayerID != "" {
		aq.AttemptedPlayerIDs[aq.AnsweringPlayerID] = struct{}{}
		aq.AnsweringPlayerID = ""
	}
	aq.Stage = model.StageOpenForBuzz
	for _, p := range r.players {
		p.BuzzedAt = nil
	}
	return nil
}

func (r *Room) Buzz(playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	aq := r.activeQuestion
	if aq == nil || aq.Stage != model.StageOpenForBuzz {
		return model.ErrBuzzNotAvailable
	}
	if _, attempted := aq.AttemptedPlayerIDs[playerID]; attempted {
		return model.ErrAlreadyAttempted
	}
	p, ok := r.players[playerID]
	if !ok {
		return model.ErrPlayerNotFound
	}

	now := time.Now()
	p.BuzzedAt = &now
	aq.AnsweringPlayerID = playerID
	aq.AttemptedPlayerIDs[playerID] = struct{}{}
	aq.Stage = model.StageAwaitingHostDecision
	return nil
}

// MarkCorrect awards points to playerID (or the current answerer if
// playerID is empty) and finishes the question.
func (r *Room) MarkCorrect(playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	aq := r.activeQuestion
	if aq == nil {
		return model.ErrNoActiveQuestion
	}
	effective := playerID
	if effective == "" {
		effective = aq.AnsweringPlayerID
	}
	if effective == "" {
		return model.ErrNoAnsweringPlayer
	}
	p, ok := r.players[effective]
	if !ok {
		return model.ErrPlayerNotFound
	}

	p.Score += aq.Points
	r.usedQuestions[aq.ID] = struct{}{}
	r.lastResult = &model.QuestionResult{
		ID:                aq.ID,
		Category:          aq.Category,
		Difficulty:         aq.Difficulty,
		Title:              aq.Title,
		CorrectAnswer:      aq.CorrectAnswer,
		AnsweredCorrectly:  true,
		AnsweredBy:         effective,
		PointsAwarded:      aq.Points,
	}
	r.finishLocked(aq.TurnIndex)
	return nil
}

// MarkIncorrect either reopens buzzers (the host's escape hatch, intentional
// per §9 Open Question 2 even with no current answerer) or finishes the
// question as a miss.
func (r *Room) MarkIncorrect(openBuzzers bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	aq := r.activeQuestion
	if aq == nil {
		return model.ErrNoActiveQuestion
	}

	if openBuzzers {
		return r.openBuzzersLocked()
	}

	if aq.AnsweringPlayerID != "" {
		aq.AttemptedPlayerIDs[aq.AnsweringPlayerID] = struct{}{}
		aq.AnsweringPlayerID = ""
	}

	r.usedQuestions[aq.ID] = struct{}{}
	r.lastResult = &model.QuestionResult{
		ID:                aq.ID,
		Category:          aq.Category,
		Difficulty:         aq.Difficulty,
		Title:              aq.Title,
		CorrectAnswer:      aq.CorrectAnswer,
		AnsweredCorrectly:  false,
		PointsAwarded:      0,
	}
	r.finishLocked(aq.TurnIndex)
	return nil
}

// Cancel drops the active question without awarding points. The slot it
// consumed at activation remains used (§9 Open Question 4).
func (r *Room) Cancel() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeQuestion == nil {
		return nil
	}
	r.activeQuestion = nil
	for _, p := range r.players {
		p.BuzzedAt = nil
	}
	return nil
}

// finishLocked clears the active question and resumes the turn at nextIndex
// — the successor slot captured at Activate time, not derived from the live
// turnIndex — deliberate, per §9 Open Question 3, so a mid-question setTurn
// doesn't perturb post-question rotation. RemovePlayer keeps nextIndex in
// step with every splice of turnOrder the same way it keeps the live
// turnIndex in step, so by the time finishLocked runs it still names the
// right slot even if a bystander left mid-question. Caller must hold the
// write lock.
func (r *Room) finishLocked(nextIndex int) {
	r.activeQuestion = nil
	for _, p := range r.players {
		p.BuzzedAt = nil
	}
	if len(r.turnOrder) == 0 {
		r.turnIndex = nil
		return
	}
	idx := nextIndex % len(r.turnOrder)
	r.turnIndex = &idx
}

// RemovePlayer deletes a player and scrubs every reference to them.
func (r *Room) RemovePlayer(playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[playerID]; !ok {
		return model.ErrPlayerNotFound
	}
	delete(r.players, playerID)

	removedIdx := -1
	newOrder := make([]string, 0, len(r.turnOrder))
	for i, id := range r.turnOrder {
		if id == playerID {
			removedIdx = i
			continue
		}
		newOrder = append(newOrder, id)
	}
	r.turnOrder = newOrder

	if r.turnIndex != nil {
		switch {
		case len(r.turnOrder) == 0:
			r.turnIndex = nil
		case removedIdx >= 0 && removedIdx < *r.turnIndex:
			idx := *r.turnIndex - 1
			r.turnIndex = &idx
		case *r.turnIndex >= len(r.turnOrder):
			idx := 0
			r.turnIndex = &idx
		}
	}

	if aq := r.activeQuestion; aq != nil {
		if aq.AssignedTo == playerID {
			aq.AssignedTo = ""
		}
		delete(aq.AttemptedPlayerIDs, playerID)
		// The question stays; host must explicitly resolve or cancel it.
		if aq.AnsweringPlayerID == playerID {
			aq.AnsweringPlayerID = ""
		}

		// aq.TurnIndex names the successor slot captured at Activate time;
		// keep it pointing at the same slot through the splice, the same
		// rule applied to the live turnIndex above, so a bystander leaving
		// mid-question doesn't shift who gets the next turn.
		switch {
		case len(r.turnOrder) == 0:
			aq.TurnIndex = 0
		case removedIdx >= 0 && removedIdx < aq.TurnIndex:
			aq.TurnIndex--
		case aq.TurnIndex >= len(r.turnOrder):
			aq.TurnIndex = 0
		}
	}

	r.conns.RemoveByPlayerID(playerID)
	return nil
}

// DestroyRoom returns the room to a terminal state; the caller (dispatcher)
// is responsible for notifying and closing every connection and removing
// the room from the registry.
func (r *Room) DestroyRoom() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeQuestion = nil
	r.players = map[string]*model.Player{}
	r.turnOrder = nil
	r.turnIndex = nil
}

// newOpaqueID mints a player id. A UUIDv4 comfortably clears the ≥10-char
// opaque-id floor §3 sets, and matches the id scheme questions already mint
// their own ids with.
func newOpaqueID() string {
	return uuid.NewString()
}
