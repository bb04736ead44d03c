package handset

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"optable/config"
	"optable/core"
	"optable/protocol"
	"optable/table"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	tbl   *table.Table
	sched *core.Scheduler
	conn  *protocol.Conn
	link  *Link
	done  chan error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sched := core.NewScheduler()
	tbl, err := table.New(config.DefaultTableConfig(), sched, nil, quietLogger())
	require.NoError(t, err)

	pendant, server := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())

	f := &fixture{
		tbl:   tbl,
		sched: sched,
		conn:  protocol.NewConn(pendant, quietLogger()),
		link:  NewLink(server, tbl, quietLogger()),
		done:  make(chan error, 1),
	}
	go func() { f.done <- f.link.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		f.conn.Close()
		select {
		case <-f.done:
		case <-time.After(time.Second):
			t.Error("link did not stop")
		}
	})
	return f
}

func (f *fixture) send(t *testing.T, cmd protocol.Command) protocol.Status {
	t.Helper()
	st, err := f.conn.Send(cmd)
	require.NoError(t, err)
	return st
}

func TestButtonDrivesAxis(t *testing.T) {
	f := newFixture(t)

	st := f.send(t, protocol.Command{ID: protocol.MsgButton, Target: "back", Axis: 1, Pressed: true})
	assert.Equal(t, protocol.ResultOK, st.Result)
	assert.Equal(t, int32(1), st.Active)

	f.sched.Advance(90 * time.Millisecond) // ticks at 0, 20, 40, 60, 80

	st = f.send(t, protocol.Command{ID: protocol.MsgButton, Target: "back", Axis: 1})
	assert.Equal(t, protocol.ResultOK, st.Result)
	assert.Zero(t, st.Active)

	v, err := f.tbl.GetCurrent("back.x")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, v, 1e-9)

	// negative axis reverses direction
	st = f.send(t, protocol.Command{ID: protocol.MsgButton, Target: "leg_left", Axis: -1, Pressed: true})
	assert.Equal(t, protocol.ResultOK, st.Result)
	f.sched.Advance(10 * time.Millisecond)

	st = f.send(t, protocol.Command{ID: protocol.MsgStopAll})
	assert.Equal(t, protocol.ResultOK, st.Result)
	assert.Zero(t, st.Active)

	v, err = f.tbl.GetCurrent("leg_left.x")
	require.NoError(t, err)
	assert.InDelta(t, -0.5, v, 1e-9)
}

func TestButtonRejectsBadTargets(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		cmd  protocol.Command
	}{
		{"unknown target", protocol.Command{ID: protocol.MsgButton, Target: "tail", Axis: 1, Pressed: true}},
		{"axis out of range", protocol.Command{ID: protocol.MsgButton, Target: "back", Axis: 7, Pressed: true}},
		{"zero axis", protocol.Command{ID: protocol.MsgButton, Target: "back", Pressed: true}},
		{"unbound axis", protocol.Command{ID: protocol.MsgButton, Target: "back", Axis: 3, Pressed: true}},
		{"release unknown", protocol.Command{ID: protocol.MsgButton, Target: "tail", Axis: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := f.send(t, tt.cmd)
			assert.Equal(t, protocol.ResultInvalid, st.Result)
			assert.Zero(t, st.Active)
		})
	}

	assert.Equal(t, len(tests), f.link.Stats().Rejected)
}

func TestStoreAndRecall(t *testing.T) {
	f := newFixture(t)

	_, err := f.tbl.Nudge("back", r3.Vec{X: 1}, 12)
	require.NoError(t, err)

	st := f.send(t, protocol.Command{ID: protocol.MsgStore, Slot: 1, Name: "mine"})
	assert.Equal(t, protocol.ResultOK, st.Result)
	assert.True(t, f.tbl.IsOccupied(1))

	st = f.send(t, protocol.Command{ID: protocol.MsgStore, Slot: 0, Name: "over"})
	assert.Equal(t, protocol.ResultInvalid, st.Result, "slot 0 holds a locked preset")

	st = f.send(t, protocol.Command{ID: protocol.MsgRecall, Slot: 5})
	assert.Equal(t, protocol.ResultInvalid, st.Result, "empty slot")

	st = f.send(t, protocol.Command{ID: protocol.MsgRecall, Slot: 99})
	assert.Equal(t, protocol.ResultInvalid, st.Result, "slot out of range")

	_, err = f.tbl.Nudge("back", r3.Vec{X: -1}, 12)
	require.NoError(t, err)

	st = f.send(t, protocol.Command{ID: protocol.MsgRecall, Slot: 1})
	assert.Equal(t, protocol.ResultOK, st.Result)
	assert.True(t, st.Restoring)

	f.sched.RunFor(5*time.Second, 20*time.Millisecond)
	assert.False(t, f.tbl.IsRestoring())

	v, err := f.tbl.GetCurrent("back.x")
	require.NoError(t, err)
	assert.InDelta(t, 12, v, 0.01)
}

func TestBusyWhileRestoring(t *testing.T) {
	f := newFixture(t)

	st := f.send(t, protocol.Command{ID: protocol.MsgPreset, Name: "Beach Chair"})
	assert.Equal(t, protocol.ResultOK, st.Result)
	assert.True(t, st.Restoring)

	for _, cmd := range []protocol.Command{
		{ID: protocol.MsgPreset, Name: "Flex"},
		{ID: protocol.MsgRecall, Slot: 0},
		{ID: protocol.MsgReverse, On: true},
		{ID: protocol.MsgButton, Target: "back", Axis: 1, Pressed: true},
	} {
		st = f.send(t, cmd)
		assert.Equal(t, protocol.ResultBusy, st.Result, "%v", cmd.ID)
		assert.True(t, st.Restoring)
		assert.False(t, st.Reversed)
	}

	st = f.send(t, protocol.Command{ID: protocol.MsgPreset, Name: "Nope"})
	assert.Equal(t, protocol.ResultInvalid, st.Result)
}

func TestReverse(t *testing.T) {
	f := newFixture(t)

	st := f.send(t, protocol.Command{ID: protocol.MsgReverse, On: true})
	assert.Equal(t, protocol.ResultOK, st.Result)
	assert.True(t, st.Reversed)
	assert.True(t, f.tbl.Reversed())

	st = f.send(t, protocol.Command{ID: protocol.MsgReverse})
	assert.False(t, st.Reversed)
}

func TestHandleRetransmit(t *testing.T) {
	sched := core.NewScheduler()
	tbl, err := table.New(config.DefaultTableConfig(), sched, nil, quietLogger())
	require.NoError(t, err)
	link := NewLink(nopPort{}, tbl, quietLogger())

	press := protocol.Frame{
		Seq:     protocol.SeqDest,
		Payload: protocol.Command{ID: protocol.MsgButton, Target: "height", Axis: 2, Pressed: true}.Encode(),
	}
	st := link.Handle(press)
	assert.Equal(t, int32(1), st.Active)
	sched.Advance(50 * time.Millisecond)

	// a repeated press must not restart the motion
	st = link.Handle(press)
	assert.Equal(t, int32(1), st.Active)
	assert.Equal(t, 1, link.Stats().Retransmits)
	assert.Equal(t, 2, link.Stats().Frames)

	st = link.Handle(protocol.Frame{Seq: protocol.SeqDest, Payload: []byte{0x7f}})
	assert.Equal(t, protocol.ResultInvalid, st.Result)

	// ack frames only report status
	st = link.Handle(protocol.Frame{Seq: protocol.NextSeq(protocol.SeqDest)})
	assert.Equal(t, protocol.ResultInvalid, st.Result)
	assert.Equal(t, 3, link.Stats().Frames)
}

func TestRunStopsMotionOnShutdown(t *testing.T) {
	sched := core.NewScheduler()
	tbl, err := table.New(config.DefaultTableConfig(), sched, nil, quietLogger())
	require.NoError(t, err)

	pendant, server := net.Pipe()
	link := NewLink(server, tbl, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- link.Run(ctx) }()

	conn := protocol.NewConn(pendant, quietLogger())
	defer conn.Close()
	_, err = conn.Send(protocol.Command{ID: protocol.MsgButton, Target: "slide", Axis: 3, Pressed: true})
	require.NoError(t, err)
	assert.True(t, tbl.IsActive("slide"))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("link did not stop")
	}
	assert.False(t, tbl.IsActive("slide"), "motion stops when the link goes down")
}

func TestRunGivesUpOnReadErrors(t *testing.T) {
	sched := core.NewScheduler()
	tbl, err := table.New(config.DefaultTableConfig(), sched, nil, quietLogger())
	require.NoError(t, err)
	require.NoError(t, tbl.StartContinuous("slide", r3.Vec{Z: 1}))

	port := &failingPort{err: errors.New("input/output error")}
	link := NewLink(port, tbl, quietLogger())

	done := make(chan error, 1)
	go func() { done <- link.Run(context.Background()) }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, port.err)
	case <-time.After(time.Second):
		t.Fatal("link kept retrying")
	}
	assert.Equal(t, maxReadErrors, port.reads())
	assert.False(t, tbl.IsActive("slide"))
}

type failingPort struct {
	err error

	mu sync.Mutex
	n  int
}

func (p *failingPort) Read([]byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	return 0, p.err
}

func (p *failingPort) reads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}

func (p *failingPort) Write(b []byte) (int, error) { return len(b), nil }
func (p *failingPort) Close() error                { return nil }

type nopPort struct{}

func (nopPort) Read([]byte) (int, error)    { return 0, io.EOF }
func (nopPort) Write(p []byte) (int, error) { return len(p), nil }
func (nopPort) Close() error                { return nil }
