package api

import (
	"log"
	"net/http"

	"skarbiec/internal/websocket"
)

// @Summary      Admin event feed
// @Description  Upgrades to a websocket and streams device-workflow and upload notifications. Admin sessions only.
// @Tags         events
// @Security     BearerAuth
// @Success      101  {string}  string "Switching Protocols"
// @Failure      403  {object}  ErrorResponse "FORBIDDEN"
// @Router       /ws [get]
func (s *Server) ServeWsHandler(w http.ResponseWriter, r *http.Request) {
	sc := GetSessionFromContext(r.Context())
	if sc == nil {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Missing authorization token")
		return
	}
	if !sc.User.IsAdmin {
		writeError(w, http.StatusForbidden, CodeForbidden, "Admin access required")
		return
	}

	conn, err := websocket.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ERROR: websocket upgrade failed: %v", err)
		return
	}

	client := websocket.NewClient(s.wsHub, conn, sc.User.ID)
	s.wsHub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
