package protocol

import (
	"errors"
	"fmt"
)

var ErrUnknownMessage = errors.New("unknown message id")

// MsgID identifies a hand control message
type MsgID int32

const (
	MsgButton  MsgID = iota + 1 // target, signed axis, pressed
	MsgStopAll                  // no arguments
	MsgRecall                   // slot
	MsgStore                    // slot, name
	MsgPreset                   // name
	MsgReverse                  // on
	MsgStatus                   // flags, deformation, active, result
)

func (id MsgID) String() string {
	switch id {
	case MsgButton:
		return "button"
	case MsgStopAll:
		return "stop_all"
	case MsgRecall:
		return "recall"
	case MsgStore:
		return "store"
	case MsgPreset:
		return "preset"
	case MsgReverse:
		return "reverse"
	case MsgStatus:
		return "status"
	default:
		return fmt.Sprintf("msg(%d)", int32(id))
	}
}

// Command is a request from the hand control. Axis is the joint axis label
// (1 x, 2 y, 3 z) signed by direction.
type Command struct {
	ID      MsgID
	Target  string
	Axis    int32
	Pressed bool
	Slot    int32
	Name    string
	On      bool
}

// Encode returns the message payload
func (c Command) Encode() []byte {
	out := AppendVLQ(nil, int32(c.ID))
	switch c.ID {
	case MsgButton:
		out = AppendVLQString(out, c.Target)
		out = AppendVLQ(out, c.Axis)
		out = AppendVLQ(out, boolInt(c.Pressed))
	case MsgRecall:
		out = AppendVLQ(out, c.Slot)
	case MsgStore:
		out = AppendVLQ(out, c.Slot)
		out = AppendVLQString(out, c.Name)
	case MsgPreset:
		out = AppendVLQString(out, c.Name)
	case MsgReverse:
		out = AppendVLQ(out, boolInt(c.On))
	}
	return out
}

// DecodeCommand parses a hand control request payload
func DecodeCommand(payload []byte) (Command, error) {
	data := payload
	id, err := DecodeVLQ(&data)
	if err != nil {
		return Command{}, err
	}

	c := Command{ID: MsgID(id)}
	var v int32
	switch c.ID {
	case MsgButton:
		if c.Target, err = DecodeVLQString(&data); err != nil {
			break
		}
		if c.Axis, err = DecodeVLQ(&data); err != nil {
			break
		}
		v, err = DecodeVLQ(&data)
		c.Pressed = v != 0
	case MsgStopAll:
	case MsgRecall:
		c.Slot, err = DecodeVLQ(&data)
	case MsgStore:
		if c.Slot, err = DecodeVLQ(&data); err != nil {
			break
		}
		c.Name, err = DecodeVLQString(&data)
	case MsgPreset:
		c.Name, err = DecodeVLQString(&data)
	case MsgReverse:
		v, err = DecodeVLQ(&data)
		c.On = v != 0
	default:
		return c, fmt.Errorf("%v: %w", c.ID, ErrUnknownMessage)
	}
	if err != nil {
		return c, fmt.Errorf("decode %v: %w", c.ID, err)
	}
	return c, nil
}

// Result of the last command, reported in status messages
type Result int32

const (
	ResultOK Result = iota
	ResultBusy
	ResultInvalid
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultBusy:
		return "busy"
	case ResultInvalid:
		return "invalid"
	default:
		return "failed"
	}
}

// Status is the table's reply to every hand control command
type Status struct {
	Restoring   bool
	Reversed    bool
	Deformation int32 // percent
	Active      int32 // targets in continuous motion
	Result      Result
}

const (
	flagRestoring = 1 << iota
	flagReversed
)

// Encode returns the status payload
func (s Status) Encode() []byte {
	var flags int32
	if s.Restoring {
		flags |= flagRestoring
	}
	if s.Reversed {
		flags |= flagReversed
	}
	out := AppendVLQ(nil, int32(MsgStatus))
	out = AppendVLQ(out, flags)
	out = AppendVLQ(out, s.Deformation)
	out = AppendVLQ(out, s.Active)
	return AppendVLQ(out, int32(s.Result))
}

// DecodeStatus parses a status payload
func DecodeStatus(payload []byte) (Status, error) {
	data := payload
	var vals [5]int32
	for i := range vals {
		v, err := DecodeVLQ(&data)
		if err != nil {
			return Status{}, fmt.Errorf("decode status: %w", err)
		}
		vals[i] = v
	}
	if MsgID(vals[0]) != MsgStatus {
		return Status{}, fmt.Errorf("%v: %w", MsgID(vals[0]), ErrUnknownMessage)
	}
	return Status{
		Restoring:   vals[1]&flagRestoring != 0,
		Reversed:    vals[1]&flagReversed != 0,
		Deformation: vals[2],
		Active:      vals[3],
		Result:      Result(vals[4]),
	}, nil
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
