package radio

import (
	"bufio"
	"encoding/json"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	ipcRetryInterval = time.Second
	ipcPollInterval  = time.Second
)

var getMetadata = []byte(`{ "command": ["get_property", "metadata"] }` + "\n")

type ipcReply struct {
	Event string          `json:"event"`
	Error string          `json:"error"`
	Data  json.RawMessage `json:"data"`
}

// observeTitle polls mpv for stream metadata over its IPC socket until the
// player stops. The socket appears shortly after mpv starts, so connection
// failures are retried.
func (p *Player) observeTitle() {
	for p.IsPlaying() {
		conn, err := net.Dial("unix", p.socketPath)
		if err != nil {
			time.Sleep(ipcRetryInterval)
			continue
		}
		p.pollMetadata(conn)
		conn.Close()
	}
}

func (p *Player) pollMetadata(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for p.IsPlaying() {
		if _, err := conn.Write(getMetadata); err != nil {
			return
		}
		// mpv interleaves asynchronous events with command replies on the
		// same socket. Skip lines until the reply carrying data arrives.
		for {
			if !scanner.Scan() {
				return
			}
			var reply ipcReply
			if err := json.Unmarshal(scanner.Bytes(), &reply); err != nil {
				logrus.Debugf("Malformed ipc line: %v", err)
				continue
			}
			if reply.Event != "" {
				continue
			}
			if reply.Error == "success" && len(reply.Data) > 0 {
				if title, ok := titleFromMetadata(reply.Data); ok {
					p.setTitle(title)
				}
			}
			break
		}
		time.Sleep(ipcPollInterval)
	}
}

// titleFromMetadata extracts the track title, preferring the icecast field
// the way streaming stations fill it.
func titleFromMetadata(raw json.RawMessage) (string, bool) {
	var metadata map[string]any
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return "", false
	}
	for _, key := range []string{"icy-title", "Title", "title"} {
		if v, ok := metadata[key].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}
