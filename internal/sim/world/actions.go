package world

import (
	"encoding/json"

	"voxelknives.ai/internal/protocol"
)

// applyAct applies the commands of one ACT in order. It reports whether the
// envelope touched a live player and should be recorded for replay.
func (w *World) applyAct(nowTick uint64, env ActionEnvelope) bool {
	p := w.players[env.PlayerID]
	if p == nil {
		return false
	}
	for _, cmd := range env.Act.Commands {
		if code, msg := w.applyCommand(nowTick, p, cmd); code != "" {
			w.log.Printf("act rejected: tick=%d player=%s type=%s code=%s: %s", nowTick, p.ID, cmd.Type, code, msg)
		}
	}
	return true
}

func (w *World) applyCommand(nowTick uint64, p *Player, cmd protocol.CommandReq) (code, msg string) {
	switch cmd.Type {
	case protocol.CmdTeleport:
		pos := Vec3i{X: cmd.Pos[0], Y: cmd.Pos[1], Z: cmd.Pos[2]}
		if !w.terrain.inBounds(pos) {
			return protocol.ErrInvalidTarget, "out of bounds"
		}
		p.Pos = pos
		p.FallDistance = 0
		return "", ""

	case protocol.CmdEquip:
		var stack *ItemStack
		if cmd.Item != "" {
			if _, ok := w.catalogs.Items.Defs[cmd.Item]; !ok {
				return protocol.ErrUnknownItem, cmd.Item
			}
			var meta json.RawMessage
			if len(cmd.Meta) > 0 {
				// Store the logged form so replays hash identical bytes.
				b, err := json.Marshal(cmd.Meta)
				if err != nil {
					return protocol.ErrBadRequest, "bad meta"
				}
				meta = b
			}
			stack = &ItemStack{Item: cmd.Item, Meta: meta}
		}
		switch cmd.Hand {
		case protocol.HandMain, "":
			p.MainHand = stack
		case protocol.HandOff:
			p.OffHand = stack
		default:
			return protocol.ErrBadRequest, "bad hand " + cmd.Hand
		}
		return "", ""

	case protocol.CmdGlide:
		p.Gliding = cmd.Gliding
		return "", ""

	case protocol.CmdSetBlock:
		pos := Vec3i{X: cmd.Pos[0], Y: cmd.Pos[1], Z: cmd.Pos[2]}
		if !w.terrain.inBounds(pos) {
			return protocol.ErrInvalidTarget, "out of bounds"
		}
		to, ok := w.catalogs.Blocks.Index[cmd.Block]
		if !ok {
			return protocol.ErrBadRequest, "unknown block " + cmd.Block
		}
		from := w.catalogs.Blocks.Index[w.terrain.blockAt(pos)]
		if from == to {
			return "", ""
		}
		w.terrain.set(pos, cmd.Block)
		w.audits = append(w.audits, AuditEntry{
			Tick:   nowTick,
			Actor:  p.ID,
			Action: protocol.CmdSetBlock,
			Pos:    cmd.Pos,
			From:   from,
			To:     to,
		})
		return "", ""

	default:
		return protocol.ErrBadRequest, "unknown command"
	}
}
