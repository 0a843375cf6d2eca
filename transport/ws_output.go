package transport

import (
	"log"

	"github.com/gorilla/websocket"
)

// WebSocketOutput is a channel.Output that sends each frame as one binary
// websocket message. Message boundaries come for free, so no extra framing
// header is needed. Not goroutine-safe (gorilla permits one concurrent
// writer); wrap with SerializedOutput if needed.
type WebSocketOutput struct {
	conn *websocket.Conn
	buf  []byte
}

// NewWebSocketOutput creates an output sending on conn with the given
// maximum frame size.
func NewWebSocketOutput(conn *websocket.Conn, frameSize int) *WebSocketOutput {
	return &WebSocketOutput{conn: conn, buf: make([]byte, frameSize)}
}

func (o *WebSocketOutput) AcquireBuffer() []byte { return o.buf }

func (o *WebSocketOutput) Send(frame []byte) error {
	return o.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (o *WebSocketOutput) Release(frame []byte) {}

// ServeWebSocket reads binary messages from conn and feeds each one to
// process until the connection fails. Non-binary messages are skipped.
// Processing errors (malformed packets, unmatched responses) only drop that
// packet; a bad peer must not take the connection down.
func ServeWebSocket(conn *websocket.Conn, process func(data []byte) error) error {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		if err := process(data); err != nil {
			log.Printf("transport: dropping packet: %v", err)
		}
	}
}
