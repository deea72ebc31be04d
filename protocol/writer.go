package protocol

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"sync"
)

// Buffer pool for building requests
var bufferPool = sync.Pool{
	New: func() any {
		// Most command lines are well under 128 bytes; put payloads grow the buffer
		return bytes.NewBuffer(make([]byte, 0, 256))
	},
}

// maxPooledBuffer keeps large put payloads from pinning memory in the pool.
const maxPooledBuffer = 64 * 1024

func getBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBuffer {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}

// WriteCommand serializes cmd to wire format and writes it to w.
// Format: <name> [<arg>]*[ <bytes>]\r\n[<payload>\r\n]
//
// For payload-bearing commands the payload length is appended as the last
// header argument and the payload follows the header line, terminated by CRLF.
//
// WriteCommand does not flush a *bufio.Writer: callers pipelining several
// commands flush once after the last one.
func WriteCommand(w io.Writer, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	if bw, ok := w.(*bufio.Writer); ok {
		return writeCommandBuffered(bw, cmd)
	}

	return writeCommandUnbuffered(w, cmd)
}

// writeCommandBuffered writes straight into the bufio.Writer.
func writeCommandBuffered(bw *bufio.Writer, cmd Command) error {
	var scratch [20]byte

	bw.WriteString(string(cmd.Name))
	for _, arg := range cmd.Args {
		bw.WriteString(Space)
		bw.WriteString(arg)
	}

	if cmd.HasPayload {
		bw.WriteString(Space)
		bw.Write(strconv.AppendInt(scratch[:0], int64(len(cmd.Payload)), 10))
	}

	bw.WriteString(CRLF)

	if cmd.HasPayload {
		bw.Write(cmd.Payload)
		bw.WriteString(CRLF)
	}

	// bufio.Writer keeps the first error, Flush or the next write reports it
	return nil
}

// writeCommandUnbuffered assembles the request in a pooled buffer and writes
// it with a single call, so a concurrent reader of w never sees half a line.
func writeCommandUnbuffered(w io.Writer, cmd Command) error {
	buf := getBuffer()
	defer putBuffer(buf)

	buf.Write(AppendCommand(buf.AvailableBuffer(), cmd))

	_, err := w.Write(buf.Bytes())
	return err
}

// AppendCommand appends the wire format of cmd to dst and returns the
// extended slice. It does not validate cmd.
func AppendCommand(dst []byte, cmd Command) []byte {
	dst = append(dst, cmd.Name...)
	for _, arg := range cmd.Args {
		dst = append(dst, ' ')
		dst = append(dst, arg...)
	}

	if cmd.HasPayload {
		dst = append(dst, ' ')
		dst = strconv.AppendInt(dst, int64(len(cmd.Payload)), 10)
	}

	dst = append(dst, CRLF...)

	if cmd.HasPayload {
		dst = append(dst, cmd.Payload...)
		dst = append(dst, CRLF...)
	}

	return dst
}
