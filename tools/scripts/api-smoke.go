// Package main provides a CI-friendly HTTP smoke test for a running wardrobe server.
//
// It validates:
//   - health and readiness
//   - account creation and login
//   - score submission and the public leaderboard
//   - costume unlock (twice, idempotent) and activation
//   - achievement grant
//   - account deletion and token rejection afterwards
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

type smokeClient struct {
	base    string
	http    *http.Client
	token   string
	timeout time.Duration
	verbose bool
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

type account struct {
	ID            int64    `json:"id"`
	Username      string   `json:"usr"`
	ActiveItem    string   `json:"active_item"`
	UnlockedItems []string `json:"unlocked_items"`
	Achievements  []string `json:"achievements"`
}

type score struct {
	AccountID int64 `json:"usr_id"`
	Stars     int32 `json:"num_stars"`
}

func main() {
	var (
		baseURL     = flag.String("url", "http://127.0.0.1:8000", "Server base URL")
		username    = flag.String("user", "", "Username to create (default: generated)")
		pw          = flag.String("password", "smoke-password-123", "Password for the smoke account")
		costume     = flag.String("costume", "wizard_hat", "Costume key to unlock")
		achievement = flag.String("achievement", "first_steps", "Achievement key to grant")
		stars       = flag.Int("stars", 100, "Stars to submit before unlocking")
		timeout     = flag.Duration("timeout", 7*time.Second, "Per-request timeout")
		verbose     = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateBaseURL(*baseURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if *username == "" {
		*username = fmt.Sprintf("smoke-%d", time.Now().UnixNano())
	}

	c := &smokeClient{
		base:    strings.TrimRight(*baseURL, "/"),
		http:    &http.Client{},
		timeout: *timeout,
		verbose: *verbose,
	}
	ctx := context.Background()

	var health string
	c.mustDo(ctx, http.MethodGet, "/api/health", nil, http.StatusOK, &health)
	if health != "Online" {
		fatalf("health: got %q", health)
	}
	c.mustDo(ctx, http.MethodGet, "/api/ready", nil, http.StatusOK, nil)

	creds := map[string]string{"usr": *username, "pwd": *pw, "nickname": "smoke"}
	c.mustDo(ctx, http.MethodPost, "/api/v1/student/create", creds, http.StatusCreated, &c.token)
	c.mustDo(ctx, http.MethodPost, "/api/v1/student/create", creds, http.StatusBadRequest, nil)
	c.mustDo(ctx, http.MethodPost, "/api/v1/student/login", creds, http.StatusOK, &c.token)

	var me account
	c.mustDo(ctx, http.MethodGet, "/api/v1/student", nil, http.StatusOK, &me)
	if me.ActiveItem != "default" {
		fatalf("new account: active_item=%q", me.ActiveItem)
	}

	c.mustDo(ctx, http.MethodPost, "/api/v1/scores", map[string]int{"num_stars": *stars, "score": 1}, http.StatusCreated, nil)

	var board []score
	c.mustDo(ctx, http.MethodGet, fmt.Sprintf("/api/v1/scores?id=%d", me.ID), nil, http.StatusOK, &board)
	if len(board) != 1 || board[0].Stars != int32(*stars) {
		fatalf("scores: got %+v", board)
	}

	unlock := map[string]string{"name": *costume}
	c.mustDo(ctx, http.MethodPost, "/api/v1/student/costumes", unlock, http.StatusOK, &me)
	c.mustDo(ctx, http.MethodPost, "/api/v1/student/costumes", unlock, http.StatusOK, &me)
	if n := countOf(me.UnlockedItems, *costume); n != 1 {
		fatalf("unlock: %q present %d times in %v", *costume, n, me.UnlockedItems)
	}

	c.mustDo(ctx, http.MethodPost, "/api/v1/student/"+url.PathEscape(*costume), nil, http.StatusOK, &me)
	if me.ActiveItem != *costume {
		fatalf("activate: active_item=%q", me.ActiveItem)
	}

	c.mustDo(ctx, http.MethodPost, "/api/v1/student/achievement", map[string]string{"name": *achievement}, http.StatusOK, &me)
	if countOf(me.Achievements, *achievement) != 1 {
		fatalf("achievement: %v", me.Achievements)
	}

	c.mustDo(ctx, http.MethodDelete, "/api/v1/student", nil, http.StatusOK, nil)
	c.mustDo(ctx, http.MethodGet, "/api/v1/student", nil, http.StatusUnauthorized, nil)

	fmt.Printf("OK: usr=%s id=%d costume=%s achievement=%s\n", *username, me.ID, *costume, *achievement)
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

// mustDo sends one request, asserts the status and decodes the envelope data into out.
func (c *smokeClient) mustDo(parent context.Context, method, path string, body any, wantStatus int, out any) {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			fatalf("%s %s: encode: %v", method, path, err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		fatalf("%s %s: read: %v", method, path, err)
	}
	if c.verbose {
		fmt.Printf("%s %s -> %d %s\n", method, path, res.StatusCode, raw)
	}
	if res.StatusCode != wantStatus {
		fatalf("%s %s: status=%d want=%d body=%s", method, path, res.StatusCode, wantStatus, raw)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		fatalf("%s %s: not an envelope: %v", method, path, err)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			fatalf("%s %s: decode data: %v", method, path, err)
		}
	}
}

func countOf(list []string, key string) int {
	n := 0
	for _, v := range list {
		if v == key {
			n++
		}
	}
	return n
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
