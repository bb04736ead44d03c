package protocol

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

var (
	ErrAckTimeout    = errors.New("ack timeout")
	ErrStatusTimeout = errors.New("status timeout")
	ErrClosed        = errors.New("connection closed")
)

// DefaultTimeout bounds the wait for an ack and for the status reply
const DefaultTimeout = 2 * time.Second

// Conn is the hand control end of a link. It sends commands, waits for the
// ack carrying the same sequence and then for the status reply.
type Conn struct {
	port    io.ReadWriteCloser
	logger  *slog.Logger
	timeout time.Duration

	sendMu sync.Mutex
	seq    uint8

	acks     chan Frame
	statuses chan Status

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewConn starts reading from port in the background
func NewConn(port io.ReadWriteCloser, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Conn{
		port:     port,
		logger:   logger,
		timeout:  DefaultTimeout,
		seq:      SeqDest,
		acks:     make(chan Frame, 1),
		statuses: make(chan Status, 4),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// SetTimeout changes the ack and status wait
func (c *Conn) SetTimeout(d time.Duration) {
	c.sendMu.Lock()
	c.timeout = d
	c.sendMu.Unlock()
}

// Send transmits cmd and returns the table's status reply
func (c *Conn) Send(cmd Command) (Status, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	msg, err := EncodeFrame(c.seq, cmd.Encode())
	if err != nil {
		return Status{}, fmt.Errorf("failed to build %v: %w", cmd.ID, err)
	}
	if _, err := c.port.Write(msg); err != nil {
		return Status{}, fmt.Errorf("failed to write %v: %w", cmd.ID, err)
	}

	deadline := time.NewTimer(c.timeout)
	defer deadline.Stop()

	select {
	case ack := <-c.acks:
		if ack.Seq != c.seq {
			return Status{}, fmt.Errorf("sequence mismatch: expected 0x%02x, got 0x%02x", c.seq, ack.Seq)
		}
		c.seq = NextSeq(c.seq)
	case <-deadline.C:
		return Status{}, fmt.Errorf("%v: %w", cmd.ID, ErrAckTimeout)
	case <-c.stop:
		return Status{}, ErrClosed
	}

	select {
	case st := <-c.statuses:
		return st, nil
	case <-deadline.C:
		return Status{}, fmt.Errorf("%v: %w", cmd.ID, ErrStatusTimeout)
	case <-c.stop:
		return Status{}, ErrClosed
	}
}

func (c *Conn) readLoop() {
	defer close(c.done)

	dec := NewDecoder()
	buf := make([]byte, 256)
	for {
		n, err := c.port.Read(buf)
		if n > 0 {
			for _, f := range dec.Feed(buf[:n]) {
				c.dispatch(f)
			}
		}
		if err != nil {
			select {
			case <-c.stop:
				return
			default:
			}
			if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed) {
				c.logger.Debug("protocol: link closed", "error", err)
				return
			}
			// serial reads that time out report io.EOF
			if !errors.Is(err, io.EOF) {
				c.logger.Warn("protocol: read failed", "error", err)
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (c *Conn) dispatch(f Frame) {
	if f.IsAck() {
		select {
		case c.acks <- f:
		default:
			c.logger.Warn("protocol: unexpected ack dropped", "seq", f.Seq)
		}
		return
	}

	st, err := DecodeStatus(f.Payload)
	if err != nil {
		c.logger.Warn("protocol: bad reply", "seq", f.Seq, "error", err)
		return
	}
	select {
	case c.statuses <- st:
	default:
		// keep the newest status
		select {
		case <-c.statuses:
		default:
		}
		c.statuses <- st
	}
}

// Close stops the reader and closes the port
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		err = c.port.Close()
		<-c.done
	})
	return err
}
