package broadcast

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// originPatterns lists the hosts overlay windows are served from.
var originPatterns = []string{"127.0.0.1:*", "localhost:*"}

// ServeWS upgrades the request and streams channelName to the client until
// either side goes away. Inbound messages are discarded.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, channelName string) {
	if !h.Has(channelName) {
		http.Error(w, "unknown channel", http.StatusNotFound)
		return
	}

	sub, err := h.Subscribe(channelName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns,
	})
	if err != nil {
		h.log.Debug().Err(err).Str("channel", channelName).Msg("WebSocket accept failed")
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.C:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := write(ctx, conn, msg); err != nil {
				h.log.Debug().Err(err).Str("channel", channelName).Msg("Client disconnected")
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, msg)
}
