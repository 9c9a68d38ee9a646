package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yegors/mp-director/internal/advisory"
	"github.com/yegors/mp-director/internal/tracker"
	"github.com/yegors/mp-director/pkg/logger"
)

func dialTestServer(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	hs := httptest.NewServer(http.HandlerFunc(s.HandleWS))
	t.Cleanup(hs.Close)

	url := "ws" + strings.TrimPrefix(hs.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestInboundSnapshot(t *testing.T) {
	received := make(chan tracker.Snapshot, 1)
	s := NewServer(func(snap tracker.Snapshot) { received <- snap }, logger.Nop())

	conn := dialTestServer(t, s)

	snap := tracker.Snapshot{
		Time: time.Now().UTC().Truncate(time.Second),
		Aircraft: []tracker.Record{
			{Callsign: "UAL123", Lat: 41, Lon: -75, AltitudeFt: 12000, IASKt: 250, Route: "A Arrival", FlightType: "ARRIVAL"},
		},
	}
	data, _ := json.Marshal(snap)
	msg, _ := json.Marshal(Message{Type: "snapshot", Data: data})
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case got := <-received:
		if len(got.Aircraft) != 1 || got.Aircraft[0].Callsign != "UAL123" {
			t.Errorf("snapshot = %+v", got)
		}
		if !got.Time.Equal(snap.Time) {
			t.Errorf("time = %v, want %v", got.Time, snap.Time)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot never reached the handler")
	}
}

func TestInboundMalformedIgnored(t *testing.T) {
	received := make(chan tracker.Snapshot, 1)
	s := NewServer(func(snap tracker.Snapshot) { received <- snap }, logger.Nop())

	conn := dialTestServer(t, s)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"snapshot","data":"garbage"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`not json`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-received:
		t.Fatal("malformed message reached the handler")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDeliverBroadcasts(t *testing.T) {
	s := NewServer(nil, logger.Nop())
	conn := dialTestServer(t, s)

	// connection registration races the dial return
	deadline := time.Now().Add(2 * time.Second)
	for s.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	alt := 10000.0
	err := s.Deliver(context.Background(), []*advisory.Advisory{
		{Callsign: "UAL123", TargetAltitudeFt: &alt, IssuedAt: time.Now()},
	})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if msg.Type != "advisories" {
		t.Errorf("type = %q, want advisories", msg.Type)
	}
	var advs []*advisory.Advisory
	if err := json.Unmarshal(msg.Data, &advs); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(advs) != 1 || advs[0].Callsign != "UAL123" {
		t.Errorf("payload = %+v", advs)
	}
}

func TestDeliverWithoutClients(t *testing.T) {
	s := NewServer(nil, logger.Nop())
	err := s.Deliver(context.Background(), []*advisory.Advisory{{Callsign: "UAL123"}})
	if err == nil {
		t.Error("expected an error with no clients connected")
	}
}
