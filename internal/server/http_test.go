package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mahoosuc-solutions/remotemotel-sub000/internal/config"
	"github.com/mahoosuc-solutions/remotemotel-sub000/internal/relay"
)

func testAPIConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:               8080,
			Address:            "127.0.0.1",
			MaxConcurrentCalls: 10,
			SessionTimeout:     120,
		},
		Audio: config.AudioConfig{
			TelephonyRate:    8000,
			ConversationRate: 24000,
			FrameDurationMs:  20,
			MaxBufferBytes:   1 << 20,
			FlushIntervalMs:  100,
		},
		Conversation: config.ConversationConfig{
			URL:       "wss://api.example.com/v1/realtime",
			APIKeyEnv: "CONVERSATION_API_KEY",
			Model:     "realtime-voice-1",
		},
		Logging: config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

func newTestAPI(t *testing.T) (*httptest.Server, *relay.Manager) {
	t.Helper()
	mgr := testManager(t)
	gw := NewGateway(nil, mgr, func(context.Context) (relay.ConversationalEndpoint, error) {
		return newFakeConversation(), nil
	})
	h := NewHTTPServer(nil, testAPIConfig(), mgr, nil, gw, nil)

	srv := httptest.NewServer(h.server.Handler)
	t.Cleanup(srv.Close)
	return srv, mgr
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("GET %s: invalid JSON: %v", url, err)
		}
	}
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestAPI(t)

	var health map[string]interface{}
	resp := getJSON(t, srv.URL+"/health", &health)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if health["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", health["status"])
	}
}

func TestCallsEndpointEmpty(t *testing.T) {
	srv, _ := newTestAPI(t)

	var calls map[string]interface{}
	resp := getJSON(t, srv.URL+"/calls", &calls)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if calls["active_calls"].(float64) != 0 {
		t.Errorf("expected no active calls, got %v", calls["active_calls"])
	}
}

func TestCallDetailNotFound(t *testing.T) {
	srv, _ := newTestAPI(t)

	resp, err := http.Get(srv.URL + "/calls/MZmissing")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestConfigEndpointHidesSecrets(t *testing.T) {
	srv, _ := newTestAPI(t)

	var cfg map[string]interface{}
	resp := getJSON(t, srv.URL+"/config", &cfg)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	conv, ok := cfg["conversation"].(map[string]interface{})
	if !ok {
		t.Fatal("config response missing conversation section")
	}
	if conv["api_key_env"] != "CONVERSATION_API_KEY" {
		t.Errorf("expected the env var name, got %v", conv["api_key_env"])
	}
	if _, present := conv["api_key"]; present {
		t.Error("config response must never carry the API key")
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv, _ := newTestAPI(t)

	var stats map[string]interface{}
	resp := getJSON(t, srv.URL+"/stats", &stats)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if _, ok := stats["calls"]; !ok {
		t.Error("stats response missing calls section")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestAPI(t)

	resp, err := http.Post(srv.URL+"/health", "application/json", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}
}
