package handlers_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/MegaGrindStone/chat-playground/internal/consumer"
	"github.com/MegaGrindStone/chat-playground/internal/handlers"
	"github.com/MegaGrindStone/chat-playground/internal/models"
	"github.com/tmaxmax/go-sse"
)

func newApp(t *testing.T, upstream *mockUpstream) *httptest.Server {
	t.Helper()

	p := handlers.NewProxy(upstream, discardLogger())

	proxySrv := httptest.NewServer(p)
	t.Cleanup(proxySrv.Close)

	m := newMain(t, consumer.NewClient(proxySrv.URL, nil, discardLogger()), &mockCatalog{
		models: []models.Model{{Title: "Llama", Name: "llama"}},
	})

	router, err := handlers.NewRouter(m, p, []string{"https://example.com"}, discardLogger())
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestRouterChatTurn(t *testing.T) {
	srv := newApp(t, &mockUpstream{
		chunks: []string{
			`{"choices":[{"delta":{"content":"He"}}]}`,
			`{"choices":[{"delta":{"content":"llo"}}]}`,
		},
	})

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET / error = %v", err)
	}
	home, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	match := sessionIDPattern.FindStringSubmatch(string(home))
	if match == nil {
		t.Fatalf("GET / body has no session id: %s", home)
	}
	sessionID := match[1]

	resp, err = http.PostForm(srv.URL+"/chats", url.Values{
		"session_id": {sessionID},
		"model":      {"llama"},
		"message":    {"hi"},
	})
	if err != nil {
		t.Fatalf("POST /chats error = %v", err)
	}
	chat, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /chats status = %v, want %v", resp.StatusCode, http.StatusOK)
	}

	q := url.Values{"session_id": {sessionID}, "turn_id": {turnID(t, string(chat))}}
	resp, err = http.Get(srv.URL + "/sse/turns?" + q.Encode())
	if err != nil {
		t.Fatalf("GET /sse/turns error = %v", err)
	}
	defer resp.Body.Close()

	var turns []string
	var closed bool
	for ev, err := range sse.Read(resp.Body, nil) {
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		switch ev.Type {
		case "turn":
			turns = append(turns, ev.Data)
		case "closeTurn":
			closed = true
		case "turnError":
			t.Errorf("got turnError event: %s", ev.Data)
		}
	}

	if !closed {
		t.Error("stream ended without a closeTurn event")
	}
	if len(turns) == 0 || !strings.Contains(turns[len(turns)-1], "Hello") {
		t.Errorf("turn events = %q, want the last to hold the folded answer", turns)
	}
	if strings.Contains(turns[len(turns)-1], "streaming") {
		t.Errorf("last turn event = %q, want the message rendered as final", turns[len(turns)-1])
	}
}

func TestRouterProxyRoute(t *testing.T) {
	srv := newApp(t, &mockUpstream{
		chunks: []string{`{"choices":[{"delta":{"content":"ok"}}]}`},
	})

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/chat", strings.NewReader(`{"model":"llama","prompt":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://example.com")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /api/chat error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /api/chat status = %v, want %v", resp.StatusCode, http.StatusOK)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "https://example.com")
	}
	if !strings.HasSuffix(string(body), "data: [DONE]\n\n") {
		t.Errorf("body = %q, want it to end with the done event", body)
	}
}

func TestRouterRoutes(t *testing.T) {
	srv := newApp(t, &mockUpstream{})

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "Home",
			method:     http.MethodGet,
			path:       "/",
			wantStatus: http.StatusOK,
			wantBody:   "Model Selection",
		},
		{
			name:       "Models",
			method:     http.MethodGet,
			path:       "/models",
			wantStatus: http.StatusOK,
			wantBody:   ">Llama<",
		},
		{
			name:       "Static assets",
			method:     http.MethodGet,
			path:       "/static/app.js",
			wantStatus: http.StatusOK,
		},
		{
			name:       "Metrics",
			method:     http.MethodGet,
			path:       "/metrics",
			wantStatus: http.StatusOK,
			wantBody:   "playground_http_requests_total",
		},
		{
			name:       "Chats require POST",
			method:     http.MethodGet,
			path:       "/chats",
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "Unknown route",
			method:     http.MethodGet,
			path:       "/nope",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("%s %s error = %v", tt.method, tt.path, err)
			}
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("%s %s status = %v, want %v", tt.method, tt.path, resp.StatusCode, tt.wantStatus)
			}
			if !strings.Contains(string(body), tt.wantBody) {
				t.Errorf("%s %s body = %s, want to contain %s", tt.method, tt.path, body, tt.wantBody)
			}
		})
	}
}
