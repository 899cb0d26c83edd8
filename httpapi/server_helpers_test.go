package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// fakeUpstream is the same minimal IB Gateway stand-in used by the root
// package's scenario tests, duplicated here since it is unexported and this
// package exercises the gateway through its own HTTP surface instead of
// calling *gateway.Gateway methods directly.
type fakeUpstream struct {
	srv *httptest.Server

	mu       sync.Mutex
	handlers map[string]func(cmd map[string]interface{}, reply func(frame map[string]interface{}))
	received []map[string]interface{}
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{handlers: make(map[string]func(map[string]interface{}, func(map[string]interface{})))}

	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/gateway", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		reply := func(frame map[string]interface{}) {
			b, _ := json.Marshal(frame)
			_ = conn.WriteMessage(websocket.TextMessage, b)
		}

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd map[string]interface{}
			if err := json.Unmarshal(raw, &cmd); err != nil {
				continue
			}
			f.mu.Lock()
			f.received = append(f.received, cmd)
			name, _ := cmd["type"].(string)
			h := f.handlers[name]
			f.mu.Unlock()
			if h != nil {
				h(cmd, reply)
			}
		}
	})

	f.srv = httptest.NewServer(mux)
	return f
}

func (f *fakeUpstream) on(cmdType string, h func(cmd map[string]interface{}, reply func(frame map[string]interface{}))) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[cmdType] = h
}

func (f *fakeUpstream) close() { f.srv.Close() }

func (f *fakeUpstream) sawCommand(cmdType string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.received {
		if name, _ := c["type"].(string); name == cmdType {
			return true
		}
	}
	return false
}

func (f *fakeUpstream) hostPort(t *testing.T) (string, int) {
	t.Helper()
	u, err := url.Parse(f.srv.URL)
	if err != nil {
		t.Fatalf("parse fake upstream URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse fake upstream port: %v", err)
	}
	return u.Hostname(), port
}
