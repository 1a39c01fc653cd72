// Package radio plays an internet radio stream with mpv and tracks the
// current title over the mpv IPC socket.
package radio

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

type Player struct {
	lock sync.RWMutex

	url        string
	socketPath string

	cmd     *exec.Cmd
	running bool

	title   string
	titleCh chan string
}

func NewPlayer(url string) *Player {
	return &Player{
		url:        url,
		socketPath: filepath.Join(os.TempDir(), fmt.Sprintf("rockkit-mpv-%d.sock", os.Getpid())),
		titleCh:    make(chan string, 1),
	}
}

// Start launches mpv with an IPC socket and begins observing the stream
// title. The returned player must be stopped to reap the process.
func (p *Player) Start() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.running {
		return nil
	}

	logrus.Infof("Playing %s", p.url)
	p.cmd = exec.Command("mpv",
		"--no-video",
		"--idle=yes",
		"--input-ipc-server="+p.socketPath,
		p.url)
	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("radio: unable to start mpv: %w", err)
	}
	p.running = true

	cmd := p.cmd
	go func() {
		_ = cmd.Wait()
		p.lock.Lock()
		defer p.lock.Unlock()
		if p.cmd == cmd {
			p.cmd = nil
			p.running = false
		}
	}()

	go p.observeTitle()

	return nil
}

// TitleChannel delivers each title change. Slow receivers only miss
// intermediate titles, never the latest one.
func (p *Player) TitleChannel() <-chan string {
	return p.titleCh
}

func (p *Player) Title() string {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.title
}

func (p *Player) IsPlaying() bool {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.running
}

func (p *Player) setTitle(title string) {
	p.lock.Lock()
	if title == p.title {
		p.lock.Unlock()
		return
	}
	p.title = title
	p.lock.Unlock()

	// Drop the stale pending value so the send below cannot block.
	select {
	case <-p.titleCh:
	default:
	}
	select {
	case p.titleCh <- title:
	default:
	}
}

func (p *Player) Stop() {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.cmd != nil {
		if err := p.cmd.Process.Kill(); err != nil {
			logrus.Errorf("Failed to kill mpv: %v", err)
		}
		p.cmd = nil
	}
	p.running = false
	os.Remove(p.socketPath)
}
