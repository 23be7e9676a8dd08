// Package registry owns the process-wide set of live rooms: room-code
// generation and lookup, the listing endpoint, and the share-code index
// used to resolve a 4-digit code back to a room. Nothing here ever reaches
// into a Room's own lock while holding its own — lock order is always
// registry, then room (§5).
package registry

import (
	"context"
	"crypto/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"buzzer/internal/model"
	"buzzer/internal/questions"
	"buzzer/internal/room"
)

// roomCodeAlphabet excludes easily-confused characters (0/O, 1/I), the same
// convention the teacher used for its join codes.
const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const roomCodeLength = 4

type shareEntry struct {
	roomCode string
}

// Registry is the single process-wide owner of every live room.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room.Room

	shareMu sync.Mutex
	shares  map[string]shareEntry // share code -> room code

	source questions.Source
	log    zerolog.Logger
}

func New(source questions.Source, log zerolog.Logger) *Registry {
	return &Registry{
		rooms:  map[string]*room.Room{},
		shares: map[string]shareEntry{},
		source: source,
		log:    log,
	}
}

// CreateRoom mints a fresh, unused room code and registers a new room under
// it. Category preload is best-effort — a failed preload must never fail
// room creation (§4.A).
func (reg *Registry) CreateRoom(ctx context.Context, hostSecret string) *room.Room {
	reg.mu.Lock()
	code := reg.uniqueCodeLocked()
	r := room.New(code, hostSecret, time.Now(), nil)
	reg.rooms[code] = r
	reg.mu.Unlock()

	cats, err := reg.source.FetchCategories(ctx)
	if err != nil {
		reg.log.Warn().Err(err).Str("room_code", code).Msg("category preload failed, proceeding without it")
		return r
	}
	r.SetCategories(cats)
	return r
}

func (reg *Registry) uniqueCodeLocked() string {
	for {
		code := randomCode(roomCodeLength, roomCodeAlphabet)
		if _, exists := reg.rooms[code]; !exists {
			return code
		}
	}
}

func randomCode(n int, alphabet string) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out)
}

// Get looks up a room by code, case-insensitively.
func (reg *Registry) Get(code string) (*room.Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rooms[normalizeCode(code)]
	return r, ok
}

func normalizeCode(code string) string {
	out := make([]byte, 0, len(code))
	for i := 0; i < len(code); i++ {
		c := code[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

// List returns every live room's listing row, newest first.
func (reg *Registry) List() []model.RoomListItem {
	reg.mu.RLock()
	rooms := make([]*room.Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	reg.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].CreatedAt().After(rooms[j].CreatedAt()) })

	out := make([]model.RoomListItem, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.ListItem())
	}
	return out
}

// Drop removes a room from the registry outright — called on explicit
// destroy, or when the dispatcher notices a room has gone empty.
func (reg *Registry) Drop(code string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.rooms, normalizeCode(code))

	reg.shareMu.Lock()
	for shareCode, e := range reg.shares {
		if e.roomCode == normalizeCode(code) {
			delete(reg.shares, shareCode)
		}
	}
	reg.shareMu.Unlock()
}

// DropIfEmpty removes the room if it currently has no players and no
// connections, per the Lifecycles rule in §3. Reports whether it actually
// dropped the room, so callers can decide whether there is anything left
// to archive.
func (reg *Registry) DropIfEmpty(code string) bool {
	r, ok := reg.Get(code)
	if !ok {
		return false
	}
	if !r.IsEmpty() {
		return false
	}
	reg.Drop(code)
	return true
}

// All returns every live room, used for a full broadcast on shutdown.
func (reg *Registry) All() []*room.Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*room.Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		out = append(out, r)
	}
	return out
}

const shareCodeAlphabet = "0123456789"
const shareCodeLength = 4

// IssueShareCode mints a fresh 4-digit code for roomCode and indexes it.
func (reg *Registry) IssueShareCode(r *room.Room) (code string, issuedAt, expiresAt time.Time) {
	reg.shareMu.Lock()
	code = reg.uniqueShareCodeLocked()
	reg.shares[code] = shareEntry{roomCode: r.Code()}
	reg.shareMu.Unlock()

	issuedAt, expiresAt = r.IssueShareCode(code)
	return code, issuedAt, expiresAt
}

func (reg *Registry) uniqueShareCodeLocked() string {
	for {
		code := randomCode(shareCodeLength, shareCodeAlphabet)
		if _, exists := reg.shares[code]; !exists {
			return code
		}
	}
}

// ClaimShareCode resolves a 4-digit code to a room, lazily dropping the
// index entry if the room's own copy has expired in the meantime.
func (reg *Registry) ClaimShareCode(code string) (*room.Room, error) {
	reg.shareMu.Lock()
	entry, ok := reg.shares[code]
	reg.shareMu.Unlock()
	if !ok {
		return nil, model.ErrShareCodeNotFound
	}

	r, ok := reg.Get(entry.roomCode)
	if !ok {
		reg.shareMu.Lock()
		delete(reg.shares, code)
		reg.shareMu.Unlock()
		return nil, model.ErrShareCodeNotFound
	}

	if !r.MatchesShareCode(code) {
		reg.shareMu.Lock()
		delete(reg.shares, code)
		reg.shareMu.Unlock()
		return nil, model.ErrShareCodeNotFound
	}
	return r, nil
}
