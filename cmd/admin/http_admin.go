package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// stateCmd prints the running world's stats from the observer endpoint.
func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8081", "observer base url")
	_ = fs.Parse(args)
	callServer(http.MethodGet, joinURL(*baseURL, "/observer/stats"), nil, 5*time.Second)
}

func saveCmd(args []string) {
	fs := flag.NewFlagSet("save", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "api base url")
	_ = fs.Parse(args)
	callServer(http.MethodPost, joinURL(*baseURL, "/api/world/save"), nil, 10*time.Second)
}

// strikeCmd triggers a destruction power on the running world.
func strikeCmd(args []string) {
	fs := flag.NewFlagSet("strike", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "api base url")
	hazard := fs.String("hazard", "meteor", "power name")
	x := fs.Int("x", 0, "tile x")
	y := fs.Int("y", 0, "tile y")
	radius := fs.Int("radius", 0, "radius in tiles (0 uses the world default)")
	_ = fs.Parse(args)

	body, _ := json.Marshal(map[string]any{"hazard": *hazard, "x": *x, "y": *y, "radius": *radius})
	callServer(http.MethodPost, joinURL(*baseURL, "/api/world/hazard"), body, 10*time.Second)
}

func joinURL(base, path string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + path
}

// callServer prints the response body and exits non-zero on transport errors
// or non-2xx replies.
func callServer(method, u string, body []byte, timeout time.Duration) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, u, rd)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(2)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := (&http.Client{Timeout: timeout}).Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		resp.Body.Close()
		os.Exit(1)
	}
}
