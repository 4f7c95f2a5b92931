package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/acolita/termengine/internal/logging"
	"github.com/acolita/termengine/internal/pty"
	"github.com/acolita/termengine/internal/vt"
)

const (
	readBufferSize  = 32 * 1024
	eventBufferSize = 256
	inputBufferSize = 64

	// drainGrace bounds how long the waiter lets the reader flush output
	// written just before the child exited.
	drainGrace = 250 * time.Millisecond
)

// pump runs the three I/O loops of one session. The loops never call each
// other; they share the event channel, the input channel and ctx.
type pump struct {
	ctx    context.Context
	cancel context.CancelFunc

	id     string
	master pty.Master
	proc   pty.Process
	emu    *vt.Emulator
	rec    Recording
	mask   bool

	input  chan []byte
	events chan ShellEvent

	readerDone chan struct{}
	done       chan struct{}
	wg         sync.WaitGroup
}

func newPump(id string, master pty.Master, proc pty.Process, emu *vt.Emulator, rec Recording, mask bool) *pump {
	ctx, cancel := context.WithCancel(context.Background())
	return &pump{
		ctx:        ctx,
		cancel:     cancel,
		id:         id,
		master:     master,
		proc:       proc,
		emu:        emu,
		rec:        rec,
		mask:       mask,
		input:      make(chan []byte, inputBufferSize),
		events:     make(chan ShellEvent, eventBufferSize),
		readerDone: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// start launches the reader, writer and waiter. The event channel closes
// once all three have returned.
func (p *pump) start() {
	p.wg.Add(3)
	go p.read()
	go p.write()
	go p.wait()

	go func() {
		p.wg.Wait()
		if p.rec != nil {
			if err := p.rec.StopRecording(p.id); err != nil {
				slog.Warn("stop recording failed",
					slog.String("session_id", p.id),
					slog.String("error", err.Error()),
				)
			}
		}
		close(p.events)
		close(p.done)
	}()
}

// emit delivers ev, blocking while the consumer catches up. After shutdown
// it only delivers when there is room, so a departed consumer never wedges
// a loop.
func (p *pump) emit(ev ShellEvent) {
	select {
	case p.events <- ev:
	case <-p.ctx.Done():
		select {
		case p.events <- ev:
		default:
			slog.Debug("dropping event after shutdown", slog.String("session_id", p.id))
		}
	}
}

func (p *pump) read() {
	defer p.wg.Done()
	defer close(p.readerDone)

	buf := make([]byte, readBufferSize)
	for {
		n, err := p.master.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			p.handleOutput(data)
		}
		if err != nil {
			if !pty.IsEOF(err) && p.ctx.Err() == nil {
				slog.Warn("pty read failed",
					slog.String("session_id", p.id),
					slog.String("error", err.Error()),
				)
				p.emit(ErrorEvent{Message: err.Error()})
			}
			return
		}
		if n == 0 {
			return
		}
	}
}

func (p *pump) handleOutput(data []byte) {
	notices := p.emu.Feed(data)
	if p.rec != nil {
		p.rec.RecordOutput(p.id, string(data))
	}

	slog.Debug("pty output", slog.String("session_id", p.id), logging.Bytes("output", data))
	p.emit(Output{Bytes: data})
	for _, n := range notices {
		switch n.Kind {
		case vt.NoticeTitle:
			p.emit(TitleChanged{Title: n.Text})
		case vt.NoticeCwd:
			p.emit(CwdChanged{Path: n.Text})
		}
	}
}

func (p *pump) write() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case data := <-p.input:
			if _, err := p.master.Write(data); err != nil {
				if !pty.IsEOF(err) && p.ctx.Err() == nil {
					slog.Warn("pty write failed",
						slog.String("session_id", p.id),
						slog.String("error", err.Error()),
					)
					p.emit(ErrorEvent{Message: err.Error()})
				}
				return
			}
			slog.Debug("pty input", slog.String("session_id", p.id), logging.Bytes("input", data))
			if p.rec != nil {
				p.rec.RecordInput(p.id, string(data), p.mask)
			}
		}
	}
}

func (p *pump) wait() {
	defer p.wg.Done()

	status, err := p.proc.Wait()

	select {
	case <-p.readerDone:
	case <-time.After(drainGrace):
	case <-p.ctx.Done():
	}

	if err != nil {
		slog.Warn("wait for shell failed",
			slog.String("session_id", p.id),
			slog.String("error", err.Error()),
		)
		p.emit(ErrorEvent{Message: err.Error()})
	}

	attrs := []any{slog.String("session_id", p.id)}
	if status.Code != nil {
		attrs = append(attrs, slog.Int("code", int(*status.Code)))
	} else {
		attrs = append(attrs, slog.String("signal", status.Signal))
	}
	slog.Info("shell exited", attrs...)

	p.emit(Exited{Code: status.Code})
	p.proc.Reclaim()

	// A descendant outside the process group can keep the slave open.
	select {
	case <-p.readerDone:
	case <-time.After(drainGrace):
		_ = p.master.Close()
	}

	// Nothing left to write to; stop the writer and any blocked emitters.
	p.cancel()
}

// send queues input for the writer.
func (p *pump) send(data []byte) error {
	if p.ctx.Err() != nil {
		return ErrSessionExited
	}
	select {
	case p.input <- data:
		return nil
	case <-p.ctx.Done():
		return ErrSessionExited
	}
}

// shutdown tears the session down without waiting for the loops: the
// master is closed so the reader sees EOF, and the child's process group
// is notified and then reclaimed in the background.
func (p *pump) shutdown() {
	p.cancel()
	if err := p.proc.Hangup(); err != nil {
		slog.Debug("hangup failed", slog.String("session_id", p.id), slog.String("error", err.Error()))
	}
	if err := p.master.Close(); err != nil {
		slog.Debug("close master failed", slog.String("session_id", p.id), slog.String("error", err.Error()))
	}
	go p.proc.Reclaim()
}
