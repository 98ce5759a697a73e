package mpv

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
)

// ipcCommand is the JSON structure sent to mpv's IPC socket
type ipcCommand struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// ipcMessage is any line mpv writes: a reply carries request_id, an event carries event
type ipcMessage struct {
	Event     string `json:"event"`
	RequestID int64  `json:"request_id"`
	Data      any    `json:"data"`
	Error     string `json:"error"`
	Name      string `json:"name"`
	ID        int    `json:"id"`
	Reason    string `json:"reason"`
	FileError string `json:"file_error"`
}

const (
	dialAttempts = 3
	dialDelay    = 100 * time.Millisecond
	readDeadline = 1 * time.Second
)

var requestIDs atomic.Int64

// commandError is mpv rejecting a command. The socket worked, so it is never retried.
type commandError struct {
	command string
	reason  string
}

func (e *commandError) Error() string {
	return fmt.Sprintf("mpv rejected %s: %s", e.command, e.reason)
}

// sendCommand runs one JSON-IPC command over a fresh connection. Only the
// dial is retried, while mpv may still be creating its socket.
// Callers serialize through Engine.ipcMu.
func sendCommand(socketPath string, command []any) (any, error) {
	var conn net.Conn
	_, _, err := lo.AttemptWithDelay(dialAttempts, dialDelay, func(int, time.Duration) error {
		var dialErr error
		conn, dialErr = net.Dial("unix", socketPath)
		return dialErr
	})
	if err != nil {
		return nil, fmt.Errorf("connect after %d attempts: %w", dialAttempts, err)
	}
	defer conn.Close()

	return roundTrip(conn, command)
}

// roundTrip writes one command and reads lines until its reply arrives.
// mpv broadcasts some events to every client, so unrelated lines are skipped.
func roundTrip(conn net.Conn, command []any) (any, error) {
	id := requestIDs.Add(1)

	payload, err := json.Marshal(ipcCommand{Command: command, RequestID: id})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var msg ipcMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		if msg.Event != "" || msg.RequestID != id {
			continue
		}
		if msg.Error != "" && msg.Error != "success" {
			return nil, &commandError{command: fmt.Sprint(command[0]), reason: msg.Error}
		}
		return msg.Data, nil
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return nil, fmt.Errorf("read: connection closed before reply")
}
