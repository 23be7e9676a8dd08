// Package dispatcher is the single gateway every mutating room command
// passes through from both REST and WS transports. It authenticates the
// host, invokes the room operation, and — only after the room has
// committed the transition — broadcasts the new snapshot to every
// connection, strictly outside the room's own lock (§5).
package dispatcher

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"buzzer/internal/archive"
	"buzzer/internal/model"
	"buzzer/internal/questions"
	"buzzer/internal/registry"
	"buzzer/internal/room"
	"buzzer/internal/telemetry"
)

// Dispatcher wires the registry, the question provider, and the two
// best-effort side channels (archive, telemetry) together.
type Dispatcher struct {
	registry  *registry.Registry
	source    questions.Source
	archiver  archive.Archiver
	publisher telemetry.Publisher
	log       zerolog.Logger
}

func New(reg *registry.Registry, source questions.Source, arc archive.Archiver, pub telemetry.Publisher, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{registry: reg, source: source, archiver: arc, publisher: pub, log: log}
}

// Lookup resolves a room by code, the shared first step of every handler.
func (d *Dispatcher) Lookup(code string) (*room.Room, error) {
	r, ok := d.registry.Get(code)
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	return r, nil
}

// RequireHost additionally checks the caller-supplied secret against the
// room's host secret.
func (d *Dispatcher) RequireHost(code, secret string) (*room.Room, error) {
	r, err := d.Lookup(code)
	if err != nil {
		return nil, err
	}
	if !r.Authenticate(secret) {
		return nil, model.ErrForbidden
	}
	return r, nil
}

// broadcast publishes the room's current state to every connection and
// fires the telemetry side channel. It must be called after every
// committed mutation, never while any lock is held.
func (d *Dispatcher) broadcast(r *room.Room, op string) {
	host := r.Snapshot(true)
	player := r.Snapshot(false)
	r.Connections().Broadcast(wireMessage{Type: "state", Snapshot: host}, wireMessage{Type: "state", Snapshot: player})
	d.publisher.Publish(r.Code(), op)
}

type wireMessage struct {
	Type     string         `json:"type"`
	Snapshot *model.Snapshot `json:"payload,omitempty"`
	Message  string         `json:"message,omitempty"`
}

// CreateRoom mints a new room; there is nothing to broadcast yet.
func (d *Dispatcher) CreateRoom(ctx context.Context, hostSecret string) *room.Room {
	return d.registry.CreateRoom(ctx, hostSecret)
}

func (d *Dispatcher) ListRooms() []model.RoomListItem {
	return d.registry.List()
}

func (d *Dispatcher) Join(code, name string) (*model.Player, error) {
	r, err := d.Lookup(code)
	if err != nil {
		return nil, err
	}
	p, err := r.Join(name)
	if err != nil {
		return nil, err
	}
	d.broadcast(r, "join")
	return p, nil
}

func (d *Dispatcher) Reconnect(code, playerID string) (*model.Player, error) {
	r, err := d.Lookup(code)
	if err != nil {
		return nil, err
	}
	return r.Reconnect(playerID)
}

func (d *Dispatcher) SetTurn(code, hostSecret, playerID string) error {
	r, err := d.RequireHost(code, hostSecret)
	if err != nil {
		return err
	}
	if err := r.SetTurn(playerID); err != nil {
		return err
	}
	d.broadcast(r, "setTurn")
	return nil
}

func (d *Dispatcher) Activate(ctx context.Context, code, hostSecret string, opts room.ActivateOptions) error {
	r, err := d.RequireHost(code, hostSecret)
	if err != nil {
		return err
	}
	if _, err := r.Activate(ctx, opts, d.source); err != nil {
		return err
	}
	d.broadcast(r, "activate")
	return nil
}

func (d *Dispatcher) OpenBuzzers(code, hostSecret string) error {
	r, err := d.RequireHost(code, hostSecret)
	if err != nil {
		return err
	}
	if err := r.OpenBuzzers(); err != nil {
		return err
	}
	d.broadcast(r, "openBuzzers")
	return nil
}

func (d *Dispatcher) Buzz(code, playerID string) error {
	r, err := d.Lookup(code)
	if err != nil {
		return err
	}
	if err := r.Buzz(playerID); err != nil {
		return err
	}
	d.broadcast(r, "buzz")
	return nil
}

func (d *Dispatcher) MarkCorrect(code, hostSecret, playerID string) error {
	r, err := d.RequireHost(code, hostSecret)
	if err != nil {
		return err
	}
	if err := r.MarkCorrect(playerID); err != nil {
		return err
	}
	d.broadcast(r, "markCorrect")
	return nil
}

func (d *Dispatcher) MarkIncorrect(code, hostSecret string, openBuzzers bool) error {
	r, err := d.RequireHost(code, hostSecret)
	if err != nil {
		return err
	}
	if err := r.MarkIncorrect(openBuzzers); err != nil {
		return err
	}
	d.broadcast(r, "markIncorrect")
	return nil
}

func (d *Dispatcher) Cancel(code, hostSecret string) error {
	r, err := d.RequireHost(code, hostSecret)
	if err != nil {
		return err
	}
	if err := r.Cancel(); err != nil {
		return err
	}
	d.broadcast(r, "cancel")
	return nil
}

// RemovePlayer implements both self-leave and host-initiated removal — the
// operation itself carries no host precondition (§4.E); playerId is the
// only capability required, the same as for buzz. A room that empties out
// this way is archived exactly like an explicit destroyRoom (SPEC_FULL.md's
// Room Archive fires "on destroyRoom and on the registry's empty-room
// cleanup").
func (d *Dispatcher) RemovePlayer(code, playerID string) error {
	r, err := d.Lookup(code)
	if err != nil {
		return err
	}
	if err := r.RemovePlayer(playerID); err != nil {
		return err
	}
	d.broadcast(r, "removePlayer")

	summary := r.Summary(time.Now())
	if d.registry.DropIfEmpty(code) {
		d.archiver.Archive(context.Background(), summary)
		d.publisher.Publish(code, "roomEmptied")
	}
	return nil
}

// DestroyRoom ends a room outright: every connection is told and closed,
// the room is archived best-effort, and it is dropped from the registry.
func (d *Dispatcher) DestroyRoom(ctx context.Context, code, hostSecret string) error {
	r, err := d.RequireHost(code, hostSecret)
	if err != nil {
		return err
	}

	summary := r.Summary(time.Now())
	d.registry.Drop(code)

	r.Connections().Broadcast(
		wireMessage{Type: "error", Message: "Session closed by host"},
		wireMessage{Type: "error", Message: "Session closed by host"},
	)
	r.Connections().CloseAll()
	r.DestroyRoom()

	d.archiver.Archive(ctx, summary)
	d.publisher.Publish(code, "destroy")
	return nil
}

func (d *Dispatcher) IssueShareCode(code, hostSecret string) (string, error) {
	r, err := d.RequireHost(code, hostSecret)
	if err != nil {
		return "", err
	}
	shareCode, _, _ := d.registry.IssueShareCode(r)
	d.broadcast(r, "issueShareCode")
	return shareCode, nil
}

func (d *Dispatcher) ClaimShareCode(shareCode string) (*room.Room, error) {
	return d.registry.ClaimShareCode(shareCode)
}
