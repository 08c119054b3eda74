package ws_test

import (
	"net/http"

	"github.com/alanyoungcy/lmsrmarket/internal/server/ws"
)

func httpHandler(h *ws.Hub) http.Handler {
	return http.HandlerFunc(h.HandleWS)
}
