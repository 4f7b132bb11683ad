package chat

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ircv3TextProtocol is the IRCv3 WebSocket subprotocol carrying one UTF-8
// IRC line per text frame, without the trailing CRLF.
const ircv3TextProtocol = "text.ircv3.net"

func isWebSocketURL(server string) bool {
	return strings.HasPrefix(server, "ws://") || strings.HasPrefix(server, "wss://")
}

// wsStream adapts a WebSocket connection to the line-oriented byte stream the
// IRC client expects.
type wsStream struct {
	conn *websocket.Conn

	readMu sync.Mutex
	buf    bytes.Buffer

	writeMu sync.Mutex
	pending []byte
}

// DialWebSocket connects to an IRC server's WebSocket endpoint.
func DialWebSocket(ctx context.Context, url string) (io.ReadWriteCloser, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
		Subprotocols:     []string{ircv3TextProtocol},
		Proxy:            http.ProxyFromEnvironment,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	return newWSStream(conn), nil
}

func newWSStream(conn *websocket.Conn) *wsStream {
	return &wsStream{conn: conn}
}

// Read returns buffered frame data, each frame terminated with CRLF.
func (s *wsStream) Read(p []byte) (int, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	for s.buf.Len() == 0 {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		s.buf.Write(bytes.TrimRight(data, "\r\n"))
		s.buf.WriteString("\r\n")
	}
	return s.buf.Read(p)
}

// Write sends every complete line in p as its own text frame. Partial lines
// are held until their terminator arrives.
func (s *wsStream) Write(p []byte) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.pending = append(s.pending, p...)
	for {
		i := bytes.IndexByte(s.pending, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimRight(s.pending[:i], "\r")
		s.pending = s.pending[i+1:]
		if len(line) == 0 {
			continue
		}
		if err := s.conn.WriteMessage(websocket.TextMessage, line); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Close sends a close frame and closes the socket.
func (s *wsStream) Close() error {
	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.writeMu.Unlock()
	return s.conn.Close()
}
