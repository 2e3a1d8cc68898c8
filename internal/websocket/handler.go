package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
)

// Handler upgrades a request to a WebSocket and streams hub events to it
// until the client disconnects.
func Handler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // household LAN; any origin may connect
		})
		if err != nil {
			hub.logger.Warn("websocket accept", slog.Any("error", err))
			return
		}
		defer conn.Close(ws.StatusNormalClosure, "")

		hub.logger.Debug("device connected", slog.String("remote", r.RemoteAddr))
		NewClient(hub, conn).Run(r.Context())
	}
}
