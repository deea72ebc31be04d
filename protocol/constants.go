package protocol

// CmdType is the name of a beanstalkd command as written on the wire.
type CmdType string

// StatusType is the first token of a response header line.
type StatusType string

// BodyKind tells the parser whether a status carries a data block after its
// header line, and how that block is handed back to the caller.
type BodyKind int

const (
	BodyNone       BodyKind = iota // header line only
	BodyRaw                        // <bytes>\r\n follows, passed through untouched
	BodyStructured                 // <bytes>\r\n follows, decoded as a YAML document
)

// Protocol delimiters
const (
	CRLF  = "\r\n"
	Space = " "
)

// Producer commands
const (
	CmdUse CmdType = "use"
	CmdPut CmdType = "put"
)

// Worker commands
const (
	CmdWatch              CmdType = "watch"
	CmdIgnore             CmdType = "ignore"
	CmdReserve            CmdType = "reserve"
	CmdReserveWithTimeout CmdType = "reserve-with-timeout"
	CmdDelete             CmdType = "delete"
	CmdRelease            CmdType = "release"
	CmdBury               CmdType = "bury"
	CmdTouch              CmdType = "touch"
)

// Other commands
const (
	CmdKick             CmdType = "kick"
	CmdKickJob          CmdType = "kick-job"
	CmdPeek             CmdType = "peek"
	CmdPeekReady        CmdType = "peek-ready"
	CmdPeekDelayed      CmdType = "peek-delayed"
	CmdPeekBuried       CmdType = "peek-buried"
	CmdListTubeUsed     CmdType = "list-tube-used"
	CmdPauseTube        CmdType = "pause-tube"
	CmdListTubes        CmdType = "list-tubes"
	CmdListTubesWatched CmdType = "list-tubes-watched"
	CmdStatsJob         CmdType = "stats-job"
	CmdStatsTube        CmdType = "stats-tube"
	CmdStats            CmdType = "stats"
	CmdQuit             CmdType = "quit"
)

// Success statuses
const (
	StatusUsing    StatusType = "USING"    // use, list-tube-used: USING <tube>
	StatusInserted StatusType = "INSERTED" // put: INSERTED <id>
	StatusWatching StatusType = "WATCHING" // watch, ignore: WATCHING <count>
	StatusReserved StatusType = "RESERVED" // reserve: RESERVED <id> <bytes>\r\n<data>\r\n
	StatusDeleted  StatusType = "DELETED"
	StatusReleased StatusType = "RELEASED"
	StatusBuried   StatusType = "BURIED" // bury success, or put/release when the server is out of memory
	StatusTouched  StatusType = "TOUCHED"
	StatusKicked   StatusType = "KICKED" // kick: KICKED <count>, kick-job: KICKED
	StatusFound    StatusType = "FOUND"  // peek*: FOUND <id> <bytes>\r\n<data>\r\n
	StatusPaused   StatusType = "PAUSED"
	StatusOK       StatusType = "OK" // stats*, list-tubes*: OK <bytes>\r\n<yaml>\r\n

	// StatusNone is the expected status of a command the server never answers.
	StatusNone StatusType = ""
)

// Failure statuses
const (
	StatusNotFound       StatusType = "NOT_FOUND"
	StatusTimedOut       StatusType = "TIMED_OUT"
	StatusDeadlineSoon   StatusType = "DEADLINE_SOON"
	StatusNotIgnored     StatusType = "NOT_IGNORED"
	StatusOutOfMemory    StatusType = "OUT_OF_MEMORY"
	StatusInternalError  StatusType = "INTERNAL_ERROR"
	StatusBadFormat      StatusType = "BAD_FORMAT"
	StatusUnknownCommand StatusType = "UNKNOWN_COMMAND"
	StatusExpectedCRLF   StatusType = "EXPECTED_CRLF"
	StatusJobTooBig      StatusType = "JOB_TOO_BIG"
	StatusDraining       StatusType = "DRAINING"
)

// Defaults a beanstalkd server ships with. They seed Config values and are
// never consulted by the connection itself.
const (
	DefaultAddr    = "127.0.0.1:11300"
	DefaultPort    = 11300
	LowestPriority = 1000
)

// Protocol limits
const (
	MaxTubeNameLength = 200
)

var bodyKinds = map[StatusType]BodyKind{
	StatusReserved: BodyRaw,
	StatusFound:    BodyRaw,
	StatusOK:       BodyStructured,
}

// BodyKindOf returns how the response body of status must be read.
func BodyKindOf(status StatusType) BodyKind {
	return bodyKinds[status]
}
