package room

import (
	"time"

	"buzzer/internal/model"
)

func (r *Room) playerRefLocked(playerID string) *model.PlayerRef {
	if playerID == "" {
		return nil
	}
	p, ok := r.players[playerID]
	if !ok {
		return nil
	}
	return &model.PlayerRef{PlayerID: p.ID, Name: p.Name}
}

func (r *Room) attemptedRefsLocked(ids map[string]struct{}) []model.PlayerRef {
	out := make([]model.PlayerRef, 0, len(ids))
	for id := range ids {
		if p, ok := r.players[id]; ok {
			out = append(out, model.PlayerRef{PlayerID: p.ID, Name: p.Name})
		}
	}
	return out
}

func (r *Room) activeQuestionViewLocked(forHost bool) *model.ActiveQuestionView {
	aq := r.activeQuestion
	if aq == nil {
		return nil
	}
	v := &model.ActiveQuestionView{
		ID:               aq.ID,
		Stage:            aq.Stage,
		QuestionActive:   aq.Stage == model.StageOpenForBuzz,
		AssignedTo:       r.playerRefLocked(aq.AssignedTo),
		AnsweringPlayer:  r.playerRefLocked(aq.AnsweringPlayerID),
		AttemptedPlayers: r.attemptedRefsLocked(aq.AttemptedPlayerIDs),
		Category:         aq.Category,
		Difficulty:       aq.Difficulty,
		Title:            aq.Title,
		Points:           aq.Points,
	}
	if forHost {
		v.CorrectAnswer = aq.CorrectAnswer
		v.Choices = aq.Choices
	}
	return v
}

func (r *Room) lastResultViewLocked(forHost bool) *model.QuestionResultView {
	lr := r.lastResult
	if lr == nil {
		return nil
	}
	v := &model.QuestionResultView{
		ID:                lr.ID,
		Category:          lr.Category,
		Difficulty:        lr.Difficulty,
		Title:             lr.Title,
		AnsweredCorrectly: lr.AnsweredCorrectly,
		AnsweredBy:        r.playerRefLocked(lr.AnsweredBy),
		PointsAwarded:     lr.PointsAwarded,
	}
	if forHost {
		v.CorrectAnswer = lr.CorrectAnswer
	}
	return v
}

// Snapshot builds the role-aware projection of the room's current state.
// forHost toggles both includeCorrectAnswer and includeShareCode.
func (r *Room) Snapshot(forHost bool) *model.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	players := make([]model.PlayerView, 0, len(r.players))
	for _, id := range r.turnOrder {
		p, ok := r.players[id]
		if !ok {
			continue
		}
		players = append(players, model.PlayerView{
			PlayerID: p.ID,
			Name:     p.Name,
			Score:    p.Score,
			IsTurn:   id == r.currentTurnID(),
			BuzzedAt: p.BuzzedAt,
		})
	}

	snap := &model.Snapshot{
		Code:           r.code,
		CreatedAt:      r.createdAt,
		Players:        players,
		CurrentTurn:    r.playerRefLocked(r.currentTurnID()),
		ActiveQuestion: r.activeQuestionViewLocked(forHost),
		LastResult:     r.lastResultViewLocked(forHost),
	}

	if r.shareCodeActiveLocked() {
		expires := r.shareCodeExpiresAt
		snap.ShareCodeExpiresAt = &expires
		if forHost {
			issued := r.shareCodeIssuedAt
			snap.ShareCode = r.shareCode
			snap.ShareCodeIssuedAt = &issued
		}
	}
	return snap
}

// ListItem builds this room's row for GET /api/rooms. hostOnline is derived
// live from the connection set, never stored, so it cannot drift.
func (r *Room) ListItem() model.RoomListItem {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item := model.RoomListItem{
		Code:           r.code,
		CreatedAt:      r.createdAt,
		PlayerCount:    len(r.players),
		QuestionActive: r.activeQuestion != nil && r.activeQuestion.Stage == model.StageOpenForBuzz,
		HostOnline:     r.conns.HasHostConnection(),
		ShareActive:    r.shareCodeActiveLocked(),
	}
	if item.ShareActive {
		expires := r.shareCodeExpiresAt
		item.ShareExpiresAt = &expires
	}
	return item
}

// Summary builds the archived record written by the Room Archive when the
// room ends.
func (r *Room) Summary(endedAt time.Time) model.RoomSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	scores := make([]model.PlayerView, 0, len(r.turnOrder))
	for _, id := range r.turnOrder {
		p, ok := r.players[id]
		if !ok {
			continue
		}
		scores = append(scores, model.PlayerView{PlayerID: p.ID, Name: p.Name, Score: p.Score})
	}
	return model.RoomSummary{
		Code:            r.code,
		CreatedAt:       r.createdAt,
		EndedAt:         endedAt,
		FinalScores:     scores,
		QuestionsPlayed: len(r.usedQuestions),
	}
}
