package client

import (
	"bufio"
	"bytes"
	"net"

	"github.com/gorilla/websocket"

	"github.com/chatchum/relay/pkg/protocol"
)

// tcpWire frames JSON objects as newline-delimited lines.
type tcpWire struct {
	conn   net.Conn
	reader *bufio.Reader
}

func dialTCP(address string) (wire, error) {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, err
	}
	return &tcpWire{conn: conn, reader: bufio.NewReader(conn)}, nil
}

func (w *tcpWire) ReadFrame() (*protocol.Frame, error) {
	line, err := w.reader.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	var frame protocol.Frame
	if err := frame.Decode(bytes.TrimRight(line, "\r\n")); err != nil {
		return nil, err
	}
	return &frame, nil
}

func (w *tcpWire) WriteFrame(frame *protocol.Frame) error {
	data, err := frame.Encode()
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.conn.Write(data)
	return err
}

func (w *tcpWire) Close() error {
	return w.conn.Close()
}

// wsWire frames JSON objects as WebSocket text messages.
type wsWire struct {
	conn *websocket.Conn
}

func dialWebSocket(url string) (wire, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return &wsWire{conn: conn}, nil
}

func (w *wsWire) ReadFrame() (*protocol.Frame, error) {
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var frame protocol.Frame
		if err := frame.Decode(data); err != nil {
			return nil, err
		}
		return &frame, nil
	}
}

func (w *wsWire) WriteFrame(frame *protocol.Frame) error {
	data, err := frame.Encode()
	if err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *wsWire) Close() error {
	_ = w.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return w.conn.Close()
}
