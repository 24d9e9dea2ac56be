package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// fallsCmd asks a running server for recent fall transitions.
func fallsCmd(args []string) {
	fs := flag.NewFlagSet("falls", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	playerID := fs.String("player", "", "player id filter (optional)")
	limit := fs.Int("limit", 50, "result limit")
	_ = fs.Parse(args)

	os.Exit(get(fallsURL(*baseURL, *playerID, *limit)))
}

func metricsCmd(args []string) {
	fs := flag.NewFlagSet("metrics", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	os.Exit(get(strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/metrics"))
}

func fallsURL(base, playerID string, limit int) string {
	q := url.Values{}
	if playerID = strings.TrimSpace(playerID); playerID != "" {
		q.Set("player_id", playerID)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	u := strings.TrimRight(strings.TrimSpace(base), "/") + "/admin/v1/falls"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// get prints the response body and returns the process exit code.
func get(u string) int {
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		return 1
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		return 1
	}
	return 0
}
