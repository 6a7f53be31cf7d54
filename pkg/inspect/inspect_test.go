package inspect

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/cellgraph-dev/cellgraph/pkg/cell"
)

func TestStatsEndpoint(t *testing.T) {
	s := New()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/stats")
	if err != nil {
		t.Fatalf("get /stats: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var stats cell.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
}

func TestSourcesEndpoint(t *testing.T) {
	s := New()
	count := cell.NewCell(41).WithLabel("count")
	double := cell.NewExpr(func() int { return count.Get() * 2 })
	s.Register("count", count)
	s.Register("double", double)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/sources")
	if err != nil {
		t.Fatalf("get /sources: %v", err)
	}
	defer resp.Body.Close()

	var infos []SourceInfo
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		t.Fatalf("decode sources: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(infos))
	}
	// Sorted by name.
	if infos[0].Name != "count" || infos[1].Name != "double" {
		t.Errorf("unexpected order: %s, %s", infos[0].Name, infos[1].Name)
	}
	if infos[0].Value != float64(41) {
		t.Errorf("count value: got %v", infos[0].Value)
	}
	if infos[1].Value != float64(82) {
		t.Errorf("double value: got %v", infos[1].Value)
	}
	if infos[1].Rank != 1 {
		t.Errorf("double rank: got %d", infos[1].Rank)
	}
}

func TestSourceByName(t *testing.T) {
	s := New()
	count := cell.NewCell(7)
	s.Register("count", count)
	s.Register("double", cell.NewExpr(func() int { return count.Get() * 2 }))

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/sources/count")
	if err != nil {
		t.Fatalf("get /sources/count: %v", err)
	}
	defer resp.Body.Close()
	var info SourceInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode source: %v", err)
	}
	if info.Name != "count" || info.Value != float64(7) {
		t.Errorf("unexpected source: %+v", info)
	}

	// An expression nobody has read yet realizes when the handler peeks it;
	// the reported rank must be the realized one.
	resp2, err := http.Get(ts.URL + "/sources/double")
	if err != nil {
		t.Fatalf("get /sources/double: %v", err)
	}
	defer resp2.Body.Close()
	var derived SourceInfo
	if err := json.NewDecoder(resp2.Body).Decode(&derived); err != nil {
		t.Fatalf("decode source: %v", err)
	}
	if derived.Value != float64(14) || derived.Rank != 1 {
		t.Errorf("expected value 14 at rank 1, got %+v", derived)
	}

	missing, err := http.Get(ts.URL + "/sources/nope")
	if err != nil {
		t.Fatalf("get /sources/nope: %v", err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown source, got %d", missing.StatusCode)
	}
}

func TestWebSocketStream(t *testing.T) {
	s := New()
	count := cell.NewCell(1)
	s.Register("count", count)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// First message is the snapshot; once it arrives the subscription is
	// in place and later writes are guaranteed to stream.
	var snap Event
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snap.Type != "snapshot" || len(snap.Sources) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	count.Set(2)

	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != "event" || ev.Source != "count" {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.Old != float64(1) || ev.New != float64(2) {
		t.Errorf("expected 1 -> 2, got %v -> %v", ev.Old, ev.New)
	}
}
