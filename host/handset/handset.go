// Package handset serves the wired hand control pendant. Each request frame
// is acked with its own sequence number, executed against the table and
// answered with a status frame.
package handset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"optable/kinematics"
	"optable/motion"
	"optable/pose"
	"optable/protocol"
	"optable/table"
)

// Controller is the part of the table a pendant can drive
type Controller interface {
	StartContinuous(target string, dir r3.Vec) error
	Stop(target string) error
	StopAll()
	Load(slot int, onDone func(motion.Report)) error
	Save(slot int, name string) error
	LoadPreset(name string, onDone func(motion.Report)) error
	SetReversed(r bool) error
	Status() table.Status
}

// maxReadErrors is how many consecutive failed reads take the link down
const maxReadErrors = 10

// Stats counts link traffic
type Stats struct {
	Frames      int
	Retransmits int
	Rejected    int
	Resyncs     int
	CRCErrors   int
}

// Link connects one pendant to a table
type Link struct {
	port   io.ReadWriteCloser
	ctl    Controller
	logger *slog.Logger

	dec *protocol.Decoder

	mu      sync.Mutex
	last    protocol.Frame
	hasLast bool
	result  protocol.Result
	stats   Stats
}

// NewLink creates a link serving port
func NewLink(port io.ReadWriteCloser, ctl Controller, logger *slog.Logger) *Link {
	if logger == nil {
		logger = slog.Default()
	}
	return &Link{
		port:   port,
		ctl:    ctl,
		logger: logger,
		dec:    protocol.NewDecoder(),
	}
}

// Run reads requests until ctx is done, the port is closed or reads keep
// failing. All motion is stopped when the link goes away so a released
// button is never missed.
func (l *Link) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = l.port.Close()
	})
	defer stop()
	defer l.ctl.StopAll()

	l.logger.Info("handset: link up")
	buf := make([]byte, 256)
	failures := 0
	for {
		n, err := l.port.Read(buf)
		if n > 0 {
			l.mu.Lock()
			frames := l.dec.Feed(buf[:n])
			l.mu.Unlock()
			for _, f := range frames {
				if werr := l.reply(f); werr != nil {
					l.logger.Warn("handset: reply failed", "seq", f.Seq, "error", werr)
				}
			}
		}
		if err == nil {
			failures = 0
			continue
		}
		if ctx.Err() != nil {
			l.logger.Info("handset: link down")
			return ctx.Err()
		}
		if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed) {
			l.logger.Info("handset: link closed")
			return nil
		}
		// serial reads that time out report io.EOF
		if errors.Is(err, io.EOF) {
			failures = 0
		} else {
			failures++
			l.logger.Warn("handset: read failed", "error", err, "failures", failures)
			if failures >= maxReadErrors {
				l.logger.Error("handset: link down", "error", err)
				return fmt.Errorf("handset: read: %w", err)
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// reply acks f, executes it and writes the status
func (l *Link) reply(f protocol.Frame) error {
	out, err := protocol.EncodeFrame(f.Seq, nil)
	if err != nil {
		return err
	}
	out, err = protocol.AppendFrame(out, f.Seq, l.Handle(f).Encode())
	if err != nil {
		return err
	}
	_, err = l.port.Write(out)
	return err
}

// Handle executes one request frame and returns the status to send back.
// A frame repeating the previous sequence and payload is a retransmit and is
// answered without running the command again.
func (l *Link) Handle(f protocol.Frame) protocol.Status {
	if f.IsAck() {
		return l.status()
	}

	l.mu.Lock()
	l.stats.Frames++
	retransmit := l.hasLast && f.Seq == l.last.Seq && string(f.Payload) == string(l.last.Payload)
	if retransmit {
		l.stats.Retransmits++
	}
	l.last, l.hasLast = f, true
	l.mu.Unlock()

	if retransmit {
		l.logger.Debug("handset: retransmit", "seq", f.Seq)
		return l.status()
	}

	res := protocol.ResultOK
	cmd, err := protocol.DecodeCommand(f.Payload)
	if err != nil {
		l.logger.Warn("handset: bad request", "seq", f.Seq, "error", err)
		res = protocol.ResultInvalid
	} else if err := l.execute(cmd); err != nil {
		res = classify(err)
		l.logger.Warn("handset: command rejected", "cmd", cmd.ID, "result", res, "error", err)
	}

	l.mu.Lock()
	l.result = res
	if res != protocol.ResultOK {
		l.stats.Rejected++
	}
	l.mu.Unlock()
	return l.status()
}

func (l *Link) execute(cmd protocol.Command) error {
	l.logger.Debug("handset: command", "cmd", cmd.ID, "target", cmd.Target, "slot", cmd.Slot)

	switch cmd.ID {
	case protocol.MsgButton:
		if !cmd.Pressed {
			return l.ctl.Stop(cmd.Target)
		}
		dir, err := direction(cmd.Axis)
		if err != nil {
			return err
		}
		return l.ctl.StartContinuous(cmd.Target, dir)
	case protocol.MsgStopAll:
		l.ctl.StopAll()
		return nil
	case protocol.MsgRecall:
		return l.ctl.Load(int(cmd.Slot), l.restored)
	case protocol.MsgStore:
		return l.ctl.Save(int(cmd.Slot), cmd.Name)
	case protocol.MsgPreset:
		return l.ctl.LoadPreset(cmd.Name, l.restored)
	case protocol.MsgReverse:
		return l.ctl.SetReversed(cmd.On)
	default:
		return protocol.ErrUnknownMessage
	}
}

func (l *Link) restored(r motion.Report) {
	l.logger.Info("handset: restore finished",
		"target", r.Target, "complete", r.Complete(), "elapsed", r.Elapsed())
}

// direction turns a signed axis label into a unit vector
func direction(axis int32) (r3.Vec, error) {
	sgn := 1.0
	if axis < 0 {
		sgn, axis = -1, -axis
	}
	l := kinematics.Label(axis)
	if axis > int32(kinematics.Z) || l == kinematics.Unknown {
		return r3.Vec{}, table.ErrNoAxis
	}
	return r3.Scale(sgn, l.Unit()), nil
}

func classify(err error) protocol.Result {
	switch {
	case errors.Is(err, table.ErrRestoring), errors.Is(err, motion.ErrRestoreInFlight):
		return protocol.ResultBusy
	case errors.Is(err, table.ErrUnknownTarget),
		errors.Is(err, table.ErrUnknownPreset),
		errors.Is(err, table.ErrNoAxis),
		errors.Is(err, pose.ErrInvalidSlot),
		errors.Is(err, pose.ErrLockedSlot),
		errors.Is(err, pose.ErrEmptySlot),
		errors.Is(err, protocol.ErrUnknownMessage):
		return protocol.ResultInvalid
	default:
		return protocol.ResultFailed
	}
}

func (l *Link) status() protocol.Status {
	st := l.ctl.Status()
	l.mu.Lock()
	res := l.result
	l.mu.Unlock()
	return protocol.Status{
		Restoring:   st.Restoring,
		Reversed:    st.Reversed,
		Deformation: int32(math.Round(st.Deformation)),
		Active:      int32(len(st.Active)),
		Result:      res,
	}
}

// Stats returns traffic counters
func (l *Link) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.stats
	s.Resyncs, s.CRCErrors = l.dec.Stats()
	return s
}
