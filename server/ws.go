package server

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/braidworks/braid/core"
	"github.com/braidworks/braid/wire"
)

type wsWriter interface {
	Write(ctx context.Context, msgType websocket.MessageType, data []byte) error
}

// handleEventsWS streams a run's events over a websocket, one wire document
// per text message. Follows the same replay-then-live semantics as the SSE
// stream and closes normally once the run's stream ends.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	events, err := s.follow(r.Context(), runID)
	if err != nil {
		s.writeLookupError(w, runID, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Warn("server.ws.accept", "run_id", runID, "error", err.Error())
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	if err := streamEvents(r.Context(), events, conn); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "stream error")
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "done")
}

func streamEvents(ctx context.Context, events <-chan core.Event, writer wsWriter) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			doc, err := wire.Marshal(ev)
			if err != nil {
				return err
			}
			if err := writer.Write(ctx, websocket.MessageText, doc); err != nil {
				return err
			}
		}
	}
}
