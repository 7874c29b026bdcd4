package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/yasirdev/folio/internal/docstore"
)

const (
	wsWriteTimeout  = 5 * time.Second
	wsPingInterval  = 30 * time.Second
	wsMaxFrameBytes = 1 << 20
)

type feedEnvelope struct {
	Type        string                `json:"type"` // "snapshot" | "error"
	Submissions []docstore.Submission `json:"submissions,omitempty"`
	Message     string                `json:"message,omitempty"`
}

// handleFeedSocket streams submission snapshots to an admin client. The
// client never sends application data; its read side only detects close.
func handleFeedSocket(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		conn.SetReadLimit(wsMaxFrameBytes)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		var closeOnce sync.Once
		shutdown := func(code websocket.StatusCode, reason string) {
			closeOnce.Do(func() {
				_ = conn.Close(code, reason)
				cancel()
			})
		}

		snapshots, errs, cancelWatch := deps.Feed.Subscribe()
		defer cancelWatch()

		// Reads only to observe the peer closing.
		go func() {
			for {
				if _, _, err := conn.Read(ctx); err != nil {
					shutdown(websocket.StatusNormalClosure, "peer closed")
					return
				}
			}
		}()

		write := func(env feedEnvelope) bool {
			wctx, wcancel := context.WithTimeout(ctx, wsWriteTimeout)
			defer wcancel()
			if err := wsjson.Write(wctx, conn, env); err != nil {
				shutdown(websocket.StatusAbnormalClosure, "write failed")
				return false
			}
			return true
		}

		// Current view first, then live updates.
		if !write(feedEnvelope{Type: "snapshot", Submissions: deps.Feed.Items()}) {
			return
		}

		ping := time.NewTicker(wsPingInterval)
		defer ping.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case snap, ok := <-snapshots:
				if !ok {
					shutdown(websocket.StatusGoingAway, "feed closed")
					return
				}
				if !write(feedEnvelope{Type: "snapshot", Submissions: snap}) {
					return
				}

			case err, ok := <-errs:
				if !ok {
					shutdown(websocket.StatusGoingAway, "feed closed")
					return
				}
				if !write(feedEnvelope{Type: "error", Message: err.Error()}) {
					return
				}

			case <-ping.C:
				pctx, pcancel := context.WithTimeout(ctx, wsWriteTimeout)
				err := conn.Ping(pctx)
				pcancel()
				if err != nil {
					shutdown(websocket.StatusGoingAway, "heartbeat failed")
					return
				}
			}
		}
	}
}
