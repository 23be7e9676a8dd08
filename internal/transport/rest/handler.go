package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"buzzer/internal/dispatcher"
	"buzzer/internal/model"
	"buzzer/internal/room"
)

const questionProviderTimeout = 4 * time.Second

type handler struct {
	dispatcher *dispatcher.Dispatcher
	log        zerolog.Logger
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) createSession(w http.ResponseWriter, r *http.Request) {
	rm := h.dispatcher.CreateRoom(r.Context(), newHostSecret())
	writeJSON(w, http.StatusCreated, map[string]string{"code": rm.Code(), "hostSecret": rm.HostSecretForResponse()})
}

func (h *handler) listRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dispatcher.ListRooms())
}

// getSession is unauthenticated; per the spec's §9 open question it is
// treated as the player-role projection (never exposes correctAnswer,
// choices, or the live share code digits).
func (h *handler) getSession(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	rm, err := h.dispatcher.Lookup(code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rm.Snapshot(false))
}

func (h *handler) join(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	name := strings.TrimSpace(body.Name)
	if len(name) < 1 || len(name) > 32 {
		writeError(w, model.ErrValidation)
		return
	}

	code := mux.Vars(r)["code"]
	p, err := h.dispatcher.Join(code, name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"playerId": p.ID})
}

func (h *handler) leave(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PlayerID string `json:"playerId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	code := mux.Vars(r)["code"]
	if err := h.dispatcher.RemovePlayer(code, body.PlayerID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) destroy(w http.ResponseWriter, r *http.Request) {
	var body struct {
		HostSecret string `json:"hostSecret"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	code := mux.Vars(r)["code"]
	if err := h.dispatcher.DestroyRoom(r.Context(), code, body.HostSecret); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) issueShareCode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		HostSecret string `json:"hostSecret"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	code := mux.Vars(r)["code"]
	shareCode, err := h.dispatcher.IssueShareCode(code, body.HostSecret)
	if err != nil {
		writeError(w, err)
		return
	}
	rm, _ := h.dispatcher.Lookup(code)
	snap := rm.Snapshot(true)
	writeJSON(w, http.StatusOK, map[string]any{"shareCode": shareCode, "expiresAt": snap.ShareCodeExpiresAt})
}

func (h *handler) claimShareCode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ShareCode string `json:"shareCode"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if !isFourDigits(body.ShareCode) {
		writeError(w, model.ErrInvalidShareCode)
		return
	}
	rm, err := h.dispatcher.ClaimShareCode(body.ShareCode)
	if err != nil {
		writeError(w, err)
		return
	}
	snap := rm.Snapshot(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"code":       rm.Code(),
		"hostSecret": rm.HostSecretForResponse(),
		"expiresAt":  snap.ShareCodeExpiresAt,
	})
}

func (h *handler) setTurn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		HostSecret string `json:"hostSecret"`
		PlayerID   string `json:"playerId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	code := mux.Vars(r)["code"]
	if err := h.dispatcher.SetTurn(code, body.HostSecret, body.PlayerID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *handler) activate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		HostSecret string           `json:"hostSecret"`
		Category   string           `json:"category"`
		Difficulty model.Difficulty `json:"difficulty"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Difficulty != "" && body.Difficulty != model.DifficultyEasy &&
		body.Difficulty != model.DifficultyMedium && body.Difficulty != model.DifficultyHard {
		writeError(w, model.ErrValidation)
		return
	}

	code := mux.Vars(r)["code"]
	ctx, cancel := context.WithTimeout(r.Context(), questionProviderTimeout)
	defer cancel()

	opts := room.ActivateOptions{Category: body.Category, Difficulty: body.Difficulty}
	if err := h.dispatcher.Activate(ctx, code, body.HostSecret, opts); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *handler) openBuzzers(w http.ResponseWriter, r *http.Request) {
	var body struct {
		HostSecret string `json:"hostSecret"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	code := mux.Vars(r)["code"]
	if err := h.dispatcher.OpenBuzzers(code, body.HostSecret); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *handler) mark(w http.ResponseWriter, r *http.Request) {
	var body struct {
		HostSecret  string `json:"hostSecret"`
		Result      string `json:"result"`
		PlayerID    string `json:"playerId"`
		OpenBuzzers bool   `json:"openBuzzers"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	code := mux.Vars(r)["code"]

	var err error
	switch body.Result {
	case "correct":
		err = h.dispatcher.MarkCorrect(code, body.HostSecret, body.PlayerID)
	case "incorrect":
		err = h.dispatcher.MarkIncorrect(code, body.HostSecret, body.OpenBuzzers)
	default:
		err = model.ErrValidation
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *handler) cancel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		HostSecret string `json:"hostSecret"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	code := mux.Vars(r)["code"]
	if err := h.dispatcher.Cancel(code, body.HostSecret); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		writeError(w, model.ErrValidation)
		return false
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, model.ErrValidation)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

var errorStatus = map[error]int{
	model.ErrRoomNotFound:                 http.StatusNotFound,
	model.ErrForbidden:                    http.StatusForbidden,
	model.ErrPlayerNotFound:               http.StatusNotFound,
	model.ErrQuestionAlreadyInPlay:        http.StatusConflict,
	model.ErrNoActiveQuestion:             http.StatusConflict,
	model.ErrBuzzersAlreadyOpen:           http.StatusConflict,
	model.ErrBuzzNotAvailable:             http.StatusConflict,
	model.ErrAlreadyAttempted:             http.StatusConflict,
	model.ErrNoAnsweringPlayer:            http.StatusBadRequest,
	model.ErrTurnRequired:                 http.StatusConflict,
	model.ErrUniqueQuestionUnavailable:    http.StatusBadGateway,
	model.ErrQuestionProviderUnavailable:  http.StatusBadGateway,
	model.ErrInvalidShareCode:             http.StatusBadRequest,
	model.ErrShareCodeNotFound:            http.StatusNotFound,
	model.ErrSlotAlreadyUsed:              http.StatusConflict,
	model.ErrValidation:                   http.StatusBadRequest,
}

func writeError(w http.ResponseWriter, err error) {
	for taxonomyErr, status := range errorStatus {
		if errors.Is(err, taxonomyErr) {
			writeJSON(w, status, map[string]string{"message": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Unexpected error"})
}

func newHostSecret() string {
	return room.NewHostSecret()
}

func isFourDigits(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
