package world

import (
	"voxelknives.ai/internal/protocol"
	"voxelknives.ai/internal/sim/world/feature/survival/knives"
)

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

type ActionEnvelope struct {
	PlayerID string
	Act      protocol.ActMsg
}

type RecordedJoin struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

type RecordedAction struct {
	PlayerID string          `json:"player_id"`
	Act      protocol.ActMsg `json:"act"`
}

// Event kinds.
const (
	EventJoin    = "JOIN"
	EventLeave   = "LEAVE"
	EventDamage  = "DAMAGE"
	EventIgnite  = "IGNITE"
	EventStatus  = "STATUS"
	EventRespawn = "RESPAWN"
)

type Event struct {
	PlayerID string  `json:"player_id"`
	Kind     string  `json:"kind"`
	Cause    string  `json:"cause,omitempty"`
	Amount   float64 `json:"amount,omitempty"`
	HP       float64 `json:"hp"`
	Text     string  `json:"text,omitempty"`
}

type TickLogEntry struct {
	Tick    uint64           `json:"tick"`
	Joins   []RecordedJoin   `json:"joins,omitempty"`
	Leaves  []string         `json:"leaves,omitempty"`
	Actions []RecordedAction `json:"actions,omitempty"`
	Falls   []knives.Report  `json:"falls,omitempty"`
	Events  []Event          `json:"events,omitempty"`
	Digest  string           `json:"digest"`
}

type AuditEntry struct {
	Tick   uint64 `json:"tick"`
	Actor  string `json:"actor"`
	Action string `json:"action"` // e.g. "SET_BLOCK"
	Pos    [3]int `json:"pos"`
	From   uint16 `json:"from"`
	To     uint16 `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// TickRule runs at the start of every tick, before actions and movement.
type TickRule interface {
	Tick(nowTick uint64) knives.Report
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}
