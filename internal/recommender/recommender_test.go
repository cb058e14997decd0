package recommender

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func newAgentServer(t *testing.T, reply string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var agentLookups atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/agents", func(w http.ResponseWriter, r *http.Request) {
		agentLookups.Add(1)
		_, _ = w.Write([]byte(`{"agents": [{"id": "a-1", "name": "Other"}, {"id": "a-2", "name": "Eliza"}]}`))
	})
	mux.HandleFunc("/a-2/message", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !strings.Contains(body["text"], "150 SOL") {
			http.Error(w, "bad prompt", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(reply))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &agentLookups
}

func TestRecommendPicksConfigItem(t *testing.T) {
	server, lookups := newAgentServer(t, `[
		{"text": "thinking"},
		{"text": "here", "content": {"config": {"stepPercentage": 3, "addLiquidityAmount": "12.5", "minPrice": 90, "maxPrice": 110}}}
	]`)
	client := NewAgentClient(AgentOptions{BaseURL: server.URL, PairSymbol: "USDC"})

	rec, err := client.Recommend(context.Background(), 150, "SOL")
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if rec.StepPercent != 3 || rec.PerTriggerAmount != 12.5 || rec.MinPrice != 90 || rec.MaxPrice != 110 {
		t.Fatalf("unexpected recommendation: %+v", rec)
	}

	if _, err := client.Recommend(context.Background(), 150, "SOL"); err != nil {
		t.Fatalf("second recommend: %v", err)
	}
	if got := lookups.Load(); got != 1 {
		t.Fatalf("agent id should be cached, got %d lookups", got)
	}
}

func TestRecommendWithoutConfig(t *testing.T) {
	server, _ := newAgentServer(t, `[{"text": "no idea"}]`)
	client := NewAgentClient(AgentOptions{BaseURL: server.URL})

	if _, err := client.Recommend(context.Background(), 150, "SOL"); !errors.Is(err, ErrRecommenderUnavailable) {
		t.Fatalf("expected ErrRecommenderUnavailable, got %v", err)
	}
}

func TestRecommendUnknownAgent(t *testing.T) {
	server, _ := newAgentServer(t, `[]`)
	client := NewAgentClient(AgentOptions{BaseURL: server.URL, AgentName: "Missing"})

	if _, err := client.Recommend(context.Background(), 150, "SOL"); !errors.Is(err, ErrRecommenderUnavailable) {
		t.Fatalf("expected ErrRecommenderUnavailable, got %v", err)
	}
}

func TestRecommendServerDown(t *testing.T) {
	server, _ := newAgentServer(t, `[]`)
	server.Close()
	client := NewAgentClient(AgentOptions{BaseURL: server.URL})

	if _, err := client.Recommend(context.Background(), 150, "SOL"); !errors.Is(err, ErrRecommenderUnavailable) {
		t.Fatalf("expected ErrRecommenderUnavailable, got %v", err)
	}
}
