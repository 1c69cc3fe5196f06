package transport

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  maxLineSize,
	WriteBufferSize: maxLineSize,
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients speak the same line protocol; origin policy is
		// left to the fronting proxy.
		return true
	},
}

type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewWSConn adapts a WebSocket connection to the line transport: each
// text frame carries exactly one protocol line.
func NewWSConn(conn *websocket.Conn) Conn {
	conn.SetReadLimit(maxLineSize)
	return &wsConn{conn: conn}
}

func (c *wsConn) ReadLine() (string, error) {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		if msgType == websocket.TextMessage {
			return string(data), nil
		}
	}
}

func (c *wsConn) WriteLine(text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

func (c *wsConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// ListenWebSocket serves the optional WebSocket endpoint. Each upgraded
// connection is handed to handle on its own goroutine, same as an
// accepted TCP connection.
func ListenWebSocket(addr string, handle func(Conn)) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		go handle(NewWSConn(conn))
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("WebSocket server failed", "error", err)
		}
	}()

	return server, nil
}
