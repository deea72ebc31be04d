package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateTubeName(t *testing.T) {
	tests := []struct {
		name    string
		tube    string
		wantErr bool
	}{
		{"default", "default", false},
		{"punctuation", "jobs+v2/eu;a.b$c_(d)", false},
		{"digits first", "42jobs", false},
		{"max length", strings.Repeat("a", 200), false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", 201), true},
		{"leading hyphen", "-jobs", true},
		{"inner hyphen", "my-jobs", false},
		{"space", "my jobs", true},
		{"newline", "jobs\r\n", true},
		{"non ascii", "jöbs", true},
		{"star", "jobs*", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTubeName(tt.tube)
			if tt.wantErr {
				var invalid *InvalidCommandError
				require.ErrorAs(t, err, &invalid)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
