package protocol

import (
	"strings"
)

// Command is a single request ready to be written to the wire.
// It is immutable once built: the connection reads it, never modifies it.
type Command struct {
	Name CmdType  // Command name: "put", "reserve", etc.
	Args []string // Header arguments, space-joined on the wire

	// Payload is the data block of payload-bearing commands (put).
	// HasPayload distinguishes an empty payload from no payload at all.
	Payload    []byte
	HasPayload bool

	// Expect is the status token that means success for this command.
	// StatusNone marks a command the server does not answer.
	Expect StatusType
}

// Validate checks that the command can be serialized without breaking the
// line framing of the request.
func (c Command) Validate() error {
	if c.Name == "" {
		return &InvalidCommandError{Message: "command name is empty"}
	}
	if strings.ContainsAny(string(c.Name), " \t\r\n") {
		return &InvalidCommandError{Command: c.Name, Message: "command name contains whitespace"}
	}
	for _, arg := range c.Args {
		if arg == "" {
			return &InvalidCommandError{Command: c.Name, Message: "empty argument"}
		}
		if strings.ContainsAny(arg, " \t\r\n") {
			return &InvalidCommandError{Command: c.Name, Message: "argument contains whitespace: " + arg}
		}
	}
	return nil
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return string(c.Name)
	}
	return string(c.Name) + Space + strings.Join(c.Args, Space)
}

// Descriptor is the static definition of a command: its name, the status
// that signals success and whether it carries a payload.
type Descriptor struct {
	Name         CmdType
	Expect       StatusType
	SendsPayload bool
}

// Command builds a Command for d with the given header arguments.
func (d Descriptor) Command(args ...string) Command {
	return Command{
		Name:       d.Name,
		Args:       args,
		Expect:     d.Expect,
		HasPayload: d.SendsPayload,
	}
}

// CommandWithPayload builds a Command for d carrying payload.
// The payload length is appended to the header arguments by WriteCommand.
func (d Descriptor) CommandWithPayload(payload []byte, args ...string) Command {
	if payload == nil {
		payload = []byte{}
	}
	return Command{
		Name:       d.Name,
		Args:       args,
		Payload:    payload,
		HasPayload: true,
		Expect:     d.Expect,
	}
}

// Command descriptors.
//
// The expected statuses follow the beanstalkd protocol: any other status
// token in the response is reported as a StatusError carrying that token.
var (
	Use                = Descriptor{Name: CmdUse, Expect: StatusUsing}
	Put                = Descriptor{Name: CmdPut, Expect: StatusInserted, SendsPayload: true}
	Watch              = Descriptor{Name: CmdWatch, Expect: StatusWatching}
	Ignore             = Descriptor{Name: CmdIgnore, Expect: StatusWatching}
	Reserve            = Descriptor{Name: CmdReserve, Expect: StatusReserved}
	ReserveWithTimeout = Descriptor{Name: CmdReserveWithTimeout, Expect: StatusReserved}
	Delete             = Descriptor{Name: CmdDelete, Expect: StatusDeleted}
	Release            = Descriptor{Name: CmdRelease, Expect: StatusReleased}
	Bury               = Descriptor{Name: CmdBury, Expect: StatusBuried}
	Touch              = Descriptor{Name: CmdTouch, Expect: StatusTouched}
	Kick               = Descriptor{Name: CmdKick, Expect: StatusKicked}
	KickJob            = Descriptor{Name: CmdKickJob, Expect: StatusKicked}
	Peek               = Descriptor{Name: CmdPeek, Expect: StatusFound}
	PeekReady          = Descriptor{Name: CmdPeekReady, Expect: StatusFound}
	PeekDelayed        = Descriptor{Name: CmdPeekDelayed, Expect: StatusFound}
	PeekBuried         = Descriptor{Name: CmdPeekBuried, Expect: StatusFound}
	ListTubeUsed       = Descriptor{Name: CmdListTubeUsed, Expect: StatusUsing}
	PauseTube          = Descriptor{Name: CmdPauseTube, Expect: StatusPaused}
	ListTubes          = Descriptor{Name: CmdListTubes, Expect: StatusOK}
	ListTubesWatched   = Descriptor{Name: CmdListTubesWatched, Expect: StatusOK}
	StatsJob           = Descriptor{Name: CmdStatsJob, Expect: StatusOK}
	StatsTube          = Descriptor{Name: CmdStatsTube, Expect: StatusOK}
	Stats              = Descriptor{Name: CmdStats, Expect: StatusOK}
	Quit               = Descriptor{Name: CmdQuit, Expect: StatusNone}
)

// Descriptors returns every known command descriptor.
func Descriptors() []Descriptor {
	return []Descriptor{
		Use, Put,
		Watch, Ignore, Reserve, ReserveWithTimeout, Delete, Release, Bury, Touch,
		Kick, KickJob, Peek, PeekReady, PeekDelayed, PeekBuried,
		ListTubeUsed, PauseTube, ListTubes, ListTubesWatched,
		StatsJob, StatsTube, Stats, Quit,
	}
}

// Lookup returns the descriptor registered for name.
func Lookup(name CmdType) (Descriptor, bool) {
	for _, d := range Descriptors() {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}
