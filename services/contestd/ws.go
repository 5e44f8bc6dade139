package contestd

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"stakecurate/core/events"
)

const wsWriteTimeout = 10 * time.Second

type eventFilter struct {
	types     map[string]struct{}
	contestID string
}

func parseEventFilter(r *http.Request) eventFilter {
	filter := eventFilter{contestID: strings.TrimSpace(r.URL.Query().Get("contest"))}
	if raw := strings.TrimSpace(r.URL.Query().Get("types")); raw != "" {
		filter.types = make(map[string]struct{})
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.types[t] = struct{}{}
			}
		}
	}
	return filter
}

func (f eventFilter) match(evt events.Event) bool {
	if f.types != nil {
		if _, ok := f.types[evt.EventType()]; !ok {
			return false
		}
	}
	if f.contestID == "" {
		return true
	}
	rec, ok := evt.(events.Record)
	return ok && rec.Attributes["contestId"] == f.contestID
}

// handleEvents streams ledger events over a websocket until the client leaves.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.feed == nil {
		http.Error(w, "event stream disabled", http.StatusServiceUnavailable)
		return
	}
	filter := parseEventFilter(r)
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	// Reads are discarded; CloseRead cancels ctx once the peer disconnects.
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, filter); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, filter eventFilter) error {
	sub := s.feed.Subscribe(s.eventBuffer)
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-sub.C():
			if !ok {
				return nil
			}
			if !filter.match(evt) {
				continue
			}
			if err := writeEvent(ctx, conn, evt); err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, evt events.Event) error {
	payload := map[string]any{"type": evt.EventType()}
	if rec, ok := evt.(events.Record); ok {
		payload["attributes"] = rec.Attributes
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
