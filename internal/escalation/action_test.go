package escalation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		in     string
		want   Action
		wantOK bool
	}{
		{"notify", ActionNotify, true},
		{"auto_approve", ActionAutoApprove, true},
		{"auto_reject", ActionAutoReject, true},
		{"delegate", ActionDelegate, true},
		{"", ActionNotify, true},
		{"escalate_to_ceo", ActionNotify, false},
		{"AUTO_APPROVE", ActionNotify, false},
	}
	for _, tt := range tests {
		t.Run("in="+tt.in, func(t *testing.T) {
			got, ok := ParseAction(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}
