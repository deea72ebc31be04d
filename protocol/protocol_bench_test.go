package protocol

import (
	"bufio"
	"io"
	"strings"
	"testing"
)

func BenchmarkParse(b *testing.B) {
	tests := []struct {
		name   string
		expect StatusType
		input  string
	}{
		{
			name:   "SimpleStatus",
			expect: StatusDeleted,
			input:  "DELETED\r\n",
		},
		{
			name:   "StatusWithArgs",
			expect: StatusInserted,
			input:  "INSERTED 12345\r\n",
		},
		{
			name:   "SmallBody",
			expect: StatusReserved,
			input:  "RESERVED 1 5\r\nhello\r\n",
		},
		{
			name:   "MediumBody",
			expect: StatusReserved,
			input:  "RESERVED 1 1024\r\n" + strings.Repeat("x", 1024) + "\r\n",
		},
		{
			name:   "LargeBody",
			expect: StatusReserved,
			input:  "RESERVED 1 102400\r\n" + strings.Repeat("x", 100*1024) + "\r\n",
		},
		{
			name:   "StructuredBody",
			expect: StatusOK,
			input:  "OK 44\r\n---\nid: 1\ntube: default\nstate: ready\npri: 0\n\r\n",
		},
	}

	for _, tt := range tests {
		b.Run(tt.name, func(b *testing.B) {
			buf := []byte(tt.input)
			for b.Loop() {
				var st ParseState
				Parse(buf, tt.expect, &st, DecodeYAML)
			}
		})
	}
}

func BenchmarkWriteCommand(b *testing.B) {
	largePayload := make([]byte, 100*1024)
	for i := range largePayload {
		largePayload[i] = byte(i % 256)
	}

	tests := []struct {
		name string
		cmd  Command
	}{
		{
			name: "Reserve",
			cmd:  Reserve.Command(),
		},
		{
			name: "Put_SmallPayload",
			cmd:  Put.CommandWithPayload([]byte("small_value"), "1024", "0", "60"),
		},
		{
			name: "Put_LargePayload",
			cmd:  Put.CommandWithPayload(largePayload, "1024", "0", "60"),
		},
		{
			name: "Delete",
			cmd:  Delete.Command("12345"),
		},
		{
			name: "StatsTube",
			cmd:  StatsTube.Command("default"),
		},
	}

	for _, tt := range tests {
		b.Run(tt.name, func(b *testing.B) {
			bw := bufio.NewWriter(io.Discard)
			for b.Loop() {
				WriteCommand(bw, tt.cmd)
			}
			bw.Flush()
		})

		b.Run(tt.name+"_Unbuffered", func(b *testing.B) {
			for b.Loop() {
				WriteCommand(io.Discard, tt.cmd)
			}
		})
	}
}
