package mpv

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
)

// observed lists the properties mpv pushes to the event connection
var observed = []string{
	"time-pos",
	"duration",
	"pause",
	"eof-reached",
	"width",
	"height",
	"cache-buffering-state",
}

// eventListener keeps one persistent connection on which properties are
// observed and events are read
type eventListener struct {
	logger  *zap.Logger
	conn    net.Conn
	handler func(ipcMessage)
	done    chan struct{}
	once    sync.Once
}

// listen connects, subscribes to the observed properties and starts reading
func listen(logger *zap.Logger, socketPath string, handler func(ipcMessage)) (*eventListener, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("event listener connect: %w", err)
	}

	el := &eventListener{
		logger:  logger,
		conn:    conn,
		handler: handler,
		done:    make(chan struct{}),
	}

	// Subscriptions are per connection, so they go over this one
	for i, name := range observed {
		cmd := ipcCommand{Command: []any{"observe_property", i + 1, name}, RequestID: requestIDs.Add(1)}
		payload, err := json.Marshal(cmd)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("marshal observe %s: %w", name, err)
		}
		if _, err := conn.Write(append(payload, '\n')); err != nil {
			conn.Close()
			return nil, fmt.Errorf("observe %s: %w", name, err)
		}
	}

	go el.readLoop()

	logger.Debug("mpv event listener started", zap.Strings("observing", observed))
	return el, nil
}

// Close stops the read loop and waits for it to exit
func (el *eventListener) Close() error {
	var err error
	el.once.Do(func() {
		err = el.conn.Close()
		<-el.done
	})
	return err
}

func (el *eventListener) readLoop() {
	defer close(el.done)

	scanner := bufio.NewScanner(el.conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		msg, ok := parseMessage(scanner.Bytes())
		if !ok || msg.Event == "" {
			continue
		}
		el.handler(msg)
	}

	if err := scanner.Err(); err != nil {
		el.logger.Debug("mpv event listener stopped", zap.Error(err))
	}
}

// parseMessage decodes one newline-delimited JSON line
func parseMessage(line []byte) (ipcMessage, bool) {
	var msg ipcMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		return ipcMessage{}, false
	}
	return msg, true
}
