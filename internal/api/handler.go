package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/matheodrd/httphelper/handler"
)

const version = "1.0.0"

type infoResponse struct {
	Status   string   `json:"status"`
	Message  string   `json:"message"`
	Version  string   `json:"version"`
	Rooms    []string `json:"rooms"`
	Features []string `json:"features"`
}

func (s *Server) wsHandler() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: s.originPatterns(),
		})
		if err != nil {
			// Accept has already written the failure response.
			s.logger.Warn("websocket accept failed", "remoteAddr", r.RemoteAddr, "error", err)
			return nil
		}

		s.WebsocketManager.HandleNewConnection(conn)
		return nil
	})
}

func (s *Server) infoHandler() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, _ *http.Request) error {
		return writeJSON(w, infoResponse{
			Status:  "online",
			Message: "Chatterbox WebSocket Chat Server",
			Version: version,
			Rooms:   s.WebsocketManager.Rooms(),
			Features: []string{
				"Real-time messaging",
				"Multiple chat rooms",
				"Typing indicators",
				"Join/leave notifications",
			},
		})
	})
}

func (s *Server) statsHandler() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, _ *http.Request) error {
		return writeJSON(w, s.WebsocketManager.Stats())
	})
}

func writeJSON(w http.ResponseWriter, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return handler.NewErrWithStatus(http.StatusInternalServerError, fmt.Errorf("encoding response: %w", err))
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	_, err = w.Write(data)
	return err
}
