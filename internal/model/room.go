package model

import "time"

// PlayerRef is the null-safe cross-reference to a player: {playerId, name}
// or nil if the player no longer exists. Every pointer-to-player field in a
// Snapshot resolves through this so a departed player never appears as a
// dangling id.
type PlayerRef struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

// PlayerView is one player's row in a Snapshot.
type PlayerView struct {
	PlayerID string     `json:"playerId"`
	Name     string     `json:"name"`
	Score    int        `json:"score"`
	IsTurn   bool       `json:"isTurn"`
	BuzzedAt *time.Time `json:"buzzedAt,omitempty"`
}

// ActiveQuestionView is the role-aware projection of an ActiveQuestion.
// CorrectAnswer and Choices are populated only when the consumer is the host.
type ActiveQuestionView struct {
	ID                 string       `json:"id"`
	Stage              Stage        `json:"stage"`
	QuestionActive     bool         `json:"questionActive"`
	AssignedTo         *PlayerRef   `json:"assignedTo"`
	AnsweringPlayer    *PlayerRef   `json:"answeringPlayer"`
	AttemptedPlayers   []PlayerRef  `json:"attemptedPlayers"`
	Category           string       `json:"category"`
	Difficulty         Difficulty   `json:"difficulty"`
	Title              string       `json:"title"`
	Points             int          `json:"points"`
	CorrectAnswer      string       `json:"correctAnswer,omitempty"`
	Choices            []string     `json:"choices,omitempty"`
}

// QuestionResultView is the role-aware projection of a QuestionResult.
type QuestionResultView struct {
	ID                string     `json:"id"`
	Category          string     `json:"category"`
	Difficulty        Difficulty `json:"difficulty"`
	Title             string     `json:"title"`
	AnsweredCorrectly bool       `json:"answeredCorrectly"`
	AnsweredBy        *PlayerRef `json:"answeredBy"`
	PointsAwarded     int        `json:"pointsAwarded"`
	CorrectAnswer     string     `json:"correctAnswer,omitempty"`
}

// Snapshot is a role-aware projection of a room's state, sent to one
// connection after every transition. Two toggles (applied by the builder,
// never stored) decide what a given role sees: includeCorrectAnswer and
// includeShareCode — both host-only.
type Snapshot struct {
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"createdAt"`

	Players     []PlayerView `json:"players"`
	CurrentTurn *PlayerRef   `json:"currentTurn"`

	ActiveQuestion *ActiveQuestionView `json:"activeQuestion"`
	LastResult     *QuestionResultView `json:"lastResult"`

	ShareCode          string     `json:"shareCode,omitempty"`
	ShareCodeIssuedAt  *time.Time `json:"shareCodeIssuedAt,omitempty"`
	ShareCodeExpiresAt *time.Time `json:"shareCodeExpiresAt,omitempty"`
}

// RoomListItem is the projection returned by GET /api/rooms.
type RoomListItem struct {
	Code           string     `json:"code"`
	CreatedAt      time.Time  `json:"createdAt"`
	PlayerCount    int        `json:"playerCount"`
	QuestionActive bool       `json:"questionActive"`
	HostOnline     bool       `json:"hostOnline"`
	ShareActive    bool       `json:"shareActive"`
	ShareExpiresAt *time.Time `json:"shareExpiresAt,omitempty"`
}

// RoomSummary is the archived record of a room that has ended, written
// best-effort by the Room Archive — never read back by the live core.
type RoomSummary struct {
	Code            string       `json:"code" bson:"code"`
	CreatedAt       time.Time    `json:"createdAt" bson:"createdAt"`
	EndedAt         time.Time    `json:"endedAt" bson:"endedAt"`
	FinalScores     []PlayerView `json:"finalScores" bson:"finalScores"`
	QuestionsPlayed int          `json:"questionsPlayed" bson:"questionsPlayed"`
}
