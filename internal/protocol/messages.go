package protocol

import "encoding/json"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerName      string `json:"player_name"`
	MaxQueue        int    `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	PlayerID        string         `json:"player_id"`
	WorldParams     WorldParams    `json:"world_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type WorldParams struct {
	WorldID    string  `json:"world_id"`
	TickRateHz int     `json:"tick_rate_hz"`
	Height     int     `json:"height"`
	GroundY    int     `json:"ground_y"`
	MaxHP      float64 `json:"max_hp"`
}

type CatalogDigests struct {
	BlockPalette DigestRef `json:"block_palette"`
	ItemPalette  DigestRef `json:"item_palette"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// ACT (client -> server)
type ActMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	PlayerID        string       `json:"player_id,omitempty"`
	Commands        []CommandReq `json:"commands"`
}

// Command types.
const (
	CmdTeleport = "TELEPORT"
	CmdEquip    = "EQUIP"
	CmdGlide    = "GLIDE"
	CmdSetBlock = "SET_BLOCK"
)

// Hands for EQUIP.
const (
	HandMain = "MAIN"
	HandOff  = "OFF"
)

type CommandReq struct {
	Type    string          `json:"type"`
	Pos     [3]int          `json:"pos"`
	Hand    string          `json:"hand,omitempty"`
	Item    string          `json:"item,omitempty"`
	Meta    json.RawMessage `json:"meta,omitempty"`
	Gliding bool            `json:"gliding,omitempty"`
	Block   string          `json:"block,omitempty"`
}

// STATUS (server -> client): the action-bar style message shown to one player.
type StatusMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Tick            uint64  `json:"tick"`
	PlayerID        string  `json:"player_id"`
	Text            string  `json:"text"`
	HP              float64 `json:"hp"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}
