package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// handleTranscriptStream serves a Server-Sent Events stream of the session
// transcript. It polls the session and sends the full transcript whenever the
// last turn changes. A "cleared" event is sent when the turns are emptied.
func (s *Server) handleTranscriptStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	lastSeq := -1
	send := func() bool {
		t := s.transcript()
		seq := 0
		if n := len(t.Turns); n > 0 {
			seq = t.Turns[n-1].Seq
		}
		if seq == lastSeq {
			return true
		}
		if seq == 0 && lastSeq > 0 {
			fmt.Fprintf(w, "event: cleared\ndata: {}\n\n")
		} else {
			data, err := json.Marshal(t)
			if err != nil {
				return false
			}
			fmt.Fprintf(w, "event: transcript\ndata: %s\n\n", data)
		}
		lastSeq = seq
		flusher.Flush()
		return true
	}

	if !send() {
		return
	}

	tick := time.NewTicker(s.pollInterval)
	defer tick.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-tick.C:
		}
		if !send() {
			return
		}
	}
}
