package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/braidworks/braid/wire"
)

// handleEventsSSE streams a run's events as server-sent events: one wire
// document per message under the event's kind. Active runs replay their
// history first and then follow live; finished runs replay the stored log
// and close. The stream ends with a terminating "done" event either way.
func (s *Server) handleEventsSSE(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	events, err := s.follow(r.Context(), runID)
	if err != nil {
		s.writeLookupError(w, runID, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("server.sse.disconnect", "run_id", runID)
			return
		case ev, ok := <-events:
			if !ok {
				fmt.Fprintf(w, "event: done\ndata: end of stream\n\n")
				flusher.Flush()
				return
			}
			doc, err := wire.Marshal(ev)
			if err != nil {
				s.logger.Error("server.sse.encode", "run_id", runID, "event_id", ev.ID, "error", err.Error())
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind(), doc)
			flusher.Flush()
		}
	}
}
