package monitor

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"pidgin/internal/eventlog"
)

// tailLoop replays logPath from the beginning and then polls for newly
// appended events until closed is signalled (the client disconnected) or a
// write fails. It never holds logPath open for writing and never mutates
// it; one Tailer tracks the read offset for the connection, and each poll
// reopens the file read-only from that offset.
func tailLoop(conn *websocket.Conn, logPath string, closed <-chan struct{}) error {
	tailer, err := eventlog.NewTailer(logPath, true)
	if err != nil {
		return fmt.Errorf("monitor: open tailer: %w", err)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return nil
		case <-ticker.C:
			events, err := tailer.Poll()
			if err != nil {
				return fmt.Errorf("monitor: poll event log: %w", err)
			}
			for _, e := range events {
				if err := conn.WriteJSON(e); err != nil {
					return fmt.Errorf("monitor: write event: %w", err)
				}
			}
		}
	}
}
