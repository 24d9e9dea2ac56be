package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	playerID := fs.String("player", "", "player_id filter (falls)")
	outcome := fs.String("outcome", "", "outcome filter: TRACKED|LANDED|EXPIRED|DEPARTED (falls)")
	_ = fs.Parse(args)

	q := "ticks"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if *limit <= 0 {
		*limit = 20
	}

	var rows []any
	switch q {
	case "ticks":
		rows, err = queryTicks(db, *limit)
	case "falls":
		rows, err = queryFalls(db, strings.TrimSpace(*playerID), strings.ToUpper(strings.TrimSpace(*outcome)), *limit)
	case "catalogs":
		rows, err = queryCatalogs(db)
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-world WORLD|-db PATH] [-limit N] ticks|falls|catalogs")
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	for _, r := range rows {
		printJSON(r)
	}
}

type tickRow struct {
	Tick    uint64 `json:"tick"`
	Digest  string `json:"digest"`
	Joins   int    `json:"joins"`
	Leaves  int    `json:"leaves"`
	Actions int    `json:"actions"`
}

func queryTicks(db *sql.DB, limit int) ([]any, error) {
	rows, err := db.Query(`SELECT tick,digest,joins,leaves,actions FROM ticks ORDER BY tick DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []any
	for rows.Next() {
		var r tickRow
		if err := rows.Scan(&r.Tick, &r.Digest, &r.Joins, &r.Leaves, &r.Actions); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type fallRow struct {
	Tick          uint64  `json:"tick"`
	PlayerID      string  `json:"player_id"`
	Outcome       string  `json:"outcome"`
	FallDamage    float64 `json:"fall_damage,omitempty"`
	Extra         float64 `json:"extra,omitempty"`
	IgniteSeconds int     `json:"ignite_seconds,omitempty"`
	Message       string  `json:"message,omitempty"`
}

func queryFalls(db *sql.DB, playerID, outcome string, limit int) ([]any, error) {
	q := `SELECT tick,player_id,outcome,fall_damage,extra,ignite_seconds,COALESCE(message,'') FROM falls`
	var (
		where []string
		args  []any
	)
	if playerID != "" {
		where = append(where, "player_id=?")
		args = append(args, playerID)
	}
	if outcome != "" {
		where = append(where, "outcome=?")
		args = append(args, outcome)
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY tick DESC, seq DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []any
	for rows.Next() {
		var r fallRow
		if err := rows.Scan(&r.Tick, &r.PlayerID, &r.Outcome, &r.FallDamage, &r.Extra, &r.IgniteSeconds, &r.Message); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type catalogRow struct {
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	UpdatedAt string `json:"updated_at"`
}

func queryCatalogs(db *sql.DB) ([]any, error) {
	rows, err := db.Query(`SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []any
	for rows.Next() {
		var r catalogRow
		if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
