package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"voxelknives.ai/internal/protocol"
)

// The drop bot equips a weapon and repeatedly jumps off a pillar of air,
// printing the STATUS lines the server sends back.
func main() {
	var (
		url    = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name   = flag.String("name", "bot", "player name")
		item   = flag.String("item", "DIAMOND_SWORD", "item to hold in the main hand (empty for none)")
		meta   = flag.String("meta", `{"Enchantments":[{"id":"minecraft:sharpness","lvl":2}]}`, "item metadata json")
		height = flag.Int("height", 12, "drop height above ground")
		every  = flag.Duration("every", 5*time.Second, "time between drops")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      *name,
		MaxQueue:        8,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	msgs := make(chan []byte, 16)
	go func() {
		defer close(msgs)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msgs <- msg
		}
	}()

	var (
		welcome protocol.WelcomeMsg
		ticker  *time.Ticker
		tickC   <-chan time.Time
		r       = rand.New(rand.NewSource(time.Now().UnixNano()))
	)
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		select {
		case <-stop:
			return
		case <-tickC:
			x := r.Intn(33) - 16
			z := r.Intn(33) - 16
			_ = conn.WriteJSON(dropAct(welcome, x, z, *height))
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			switch base.Type {
			case protocol.TypeWelcome:
				if err := json.Unmarshal(msg, &welcome); err != nil {
					continue
				}
				logger.Printf("WELCOME player_id=%s tick_rate=%d ground_y=%d", welcome.PlayerID, welcome.WorldParams.TickRateHz, welcome.WorldParams.GroundY)
				_ = conn.WriteJSON(equipAct(welcome, *item, json.RawMessage(*meta)))
				ticker = time.NewTicker(*every)
				tickC = ticker.C

			case protocol.TypeStatus:
				var st protocol.StatusMsg
				if err := json.Unmarshal(msg, &st); err != nil {
					continue
				}
				logger.Printf("STATUS tick=%d hp=%.2f %s", st.Tick, st.HP, st.Text)

			case protocol.TypeError:
				var e protocol.ErrorMsg
				if err := json.Unmarshal(msg, &e); err != nil {
					continue
				}
				logger.Printf("ERROR %s: %s", e.Code, e.Message)
			}
		}
	}
}

func equipAct(w protocol.WelcomeMsg, item string, meta json.RawMessage) protocol.ActMsg {
	cmd := protocol.CommandReq{Type: protocol.CmdEquip, Hand: protocol.HandMain, Item: item}
	if item != "" && len(meta) > 0 && json.Valid(meta) {
		cmd.Meta = meta
	}
	return protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		PlayerID:        w.PlayerID,
		Commands:        []protocol.CommandReq{cmd},
	}
}

func dropAct(w protocol.WelcomeMsg, x, z, height int) protocol.ActMsg {
	y := w.WorldParams.GroundY + 1 + height
	if w.WorldParams.Height > 0 && y >= w.WorldParams.Height {
		y = w.WorldParams.Height - 1
	}
	return protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		PlayerID:        w.PlayerID,
		Commands: []protocol.CommandReq{
			{Type: protocol.CmdGlide, Gliding: false},
			{Type: protocol.CmdTeleport, Pos: [3]int{x, y, z}},
		},
	}
}
