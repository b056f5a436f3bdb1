package inspect

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/strand-dev/strand/pkg/strand"
)

func newTestGraph(t *testing.T) (*strand.Cell[int], *strand.Cell[int]) {
	t.Helper()
	a := strand.NewLeaf(3, strand.WithName("a"))
	c, err := strand.NewDerived(func() (int, error) {
		v, err := a.Get()
		return v * 2, err
	}, []strand.Handle{a.Handle()}, strand.WithName("c"))
	if err != nil {
		t.Fatalf("NewDerived: %v", err)
	}
	return a, c
}

func TestHandleCells(t *testing.T) {
	a, c := newTestGraph(t)

	s := New(nil)
	s.Register("input", a.Handle())
	s.Register("doubled", c.Handle())

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/cells")
	if err != nil {
		t.Fatalf("GET /cells: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}

	var cells []cellResponse
	if err := json.NewDecoder(resp.Body).Decode(&cells); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cells) != 2 {
		t.Fatalf("expected 2 cells, got %d", len(cells))
	}
	// Sorted by ID: a was created first.
	if cells[0].RegisteredAs != "input" || cells[0].Kind != strand.KindLeaf {
		t.Errorf("unexpected first cell: %+v", cells[0])
	}
	if cells[1].RegisteredAs != "doubled" || cells[1].Kind != strand.KindDerived {
		t.Errorf("unexpected second cell: %+v", cells[1])
	}
	if len(cells[1].Dependencies) != 1 || cells[1].Dependencies[0] != a.ID() {
		t.Errorf("derived cell lost its dependency edge: %+v", cells[1])
	}
}

func TestHandleCellByID(t *testing.T) {
	a, _ := newTestGraph(t)

	s := New(nil)
	s.Register("input", a.Handle())

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(fmt.Sprintf("%s/cells/%d", ts.URL, a.ID()))
	if err != nil {
		t.Fatalf("GET /cells/{id}: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}
	var cell cellResponse
	if err := json.NewDecoder(resp.Body).Decode(&cell); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cell.ID != a.ID() || cell.RegisteredAs != "input" {
		t.Errorf("unexpected cell: %+v", cell)
	}

	// Unknown and malformed IDs.
	if resp, err := http.Get(ts.URL + "/cells/999999999"); err != nil {
		t.Fatalf("GET unknown: %v", err)
	} else {
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("unknown cell: status %d, want 404", resp.StatusCode)
		}
	}
	if resp, err := http.Get(ts.URL + "/cells/abc"); err != nil {
		t.Fatalf("GET malformed: %v", err)
	} else {
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("malformed id: status %d, want 400", resp.StatusCode)
		}
	}
}

func TestHandleHealthzAndStats(t *testing.T) {
	s := New(nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/stats")
	if err != nil {
		t.Fatalf("GET /stats: %v", err)
	}
	defer resp.Body.Close()
	var stats strand.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := New(nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status %d, want 200", resp.StatusCode)
	}
}

func TestEventStream(t *testing.T) {
	s := New(nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// The registration is asynchronous with respect to the dial; wait
	// for the server to see the client before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for s.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hook := s.EventHook()
	hook(strand.Event{
		Kind:     strand.EventMarkedDirty,
		CellID:   42,
		CellName: "answer",
		Derived:  true,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var we wireEvent
	if err := json.Unmarshal(msg, &we); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if we.Kind != string(strand.EventMarkedDirty) || we.CellID != 42 || we.CellName != "answer" {
		t.Errorf("unexpected event: %+v", we)
	}
}

func TestBroadcastWithoutClients(t *testing.T) {
	s := New(nil)
	// Must be a no-op, not a panic.
	s.EventHook()(strand.Event{Kind: strand.EventMarkedDirty, CellID: 1})
	if s.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", s.ClientCount())
	}
}

func TestConfigDefaults(t *testing.T) {
	s := New(&Config{Addr: "localhost:0"})
	if s.config.ReadTimeout == 0 || s.config.WriteTimeout == 0 {
		t.Error("timeouts not defaulted")
	}
	if s.config.CheckOrigin == nil {
		t.Error("CheckOrigin not defaulted")
	}
	if s.config.Addr != "localhost:0" {
		t.Errorf("explicit addr overridden: %s", s.config.Addr)
	}
}
