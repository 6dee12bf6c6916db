package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/simbridge-dev/simbridge/pkg/component"
)

// wsSink adapts a WebSocket connection to the component.Sink contract:
// one text frame per telemetry message, bounded by the write deadline.
type wsSink struct {
	conn    *websocket.Conn
	timeout time.Duration
}

func (s *wsSink) WriteText(msg string) error {
	s.conn.SetWriteDeadline(time.Now().Add(s.timeout))
	return s.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

// handleStream upgrades the connection and drains the named component into
// it at the configured poll interval, until the client goes away or the
// server shuts down.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "component")

	c, ok := s.Component(name)
	if !ok {
		http.Error(w, ErrComponentNotFound.Error(), http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "stream", name, "error", err)
		return
	}
	defer conn.Close()

	s.logger.Info("stream opened", "stream", name, "remote", conn.RemoteAddr().String())
	s.serveStream(conn, name, c)
	s.logger.Info("stream closed", "stream", name)
}

// serveStream is the per-connection drain loop. The read side is pumped on
// its own goroutine purely to notice the client closing.
func (s *Server) serveStream(conn *websocket.Conn, name string, c *component.Component) {
	readerGone := make(chan struct{})
	go func() {
		defer close(readerGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	sink := &wsSink{conn: conn, timeout: s.config.WriteTimeout}
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdownCh:
			// Flush whatever is buffered, then let the client go.
			c.Drain(sink)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
				time.Now().Add(s.config.WriteTimeout))
			return

		case <-readerGone:
			return

		case <-ticker.C:
			if err := c.Drain(sink); err != nil {
				var te *component.TransportError
				if errors.As(err, &te) {
					// Transient: messages stay buffered for the next
					// connection. Only this stream ends.
					s.logger.Debug("stream drain failed", "stream", name, "error", err)
					return
				}
				s.logger.Error("stream drain error", "stream", name, "error", err)
				return
			}
		}
	}
}
