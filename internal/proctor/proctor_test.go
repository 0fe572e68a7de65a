package proctor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talenthq/arena/internal/proctor"
)

func TestMonitor_Report(t *testing.T) {
	tests := map[string]struct {
		limit   int
		current int

		wantCount    int
		wantWarning  bool
		wantExceeded bool
		wantReason   string
	}{
		"first violation under a generous limit": {
			limit:   3,
			current: 0,

			wantCount: 1,
		},

		"one below the limit raises the final warning": {
			limit:   3,
			current: 1,

			wantCount:   2,
			wantWarning: true,
		},

		"reaching the limit terminates the attempt": {
			limit:   3,
			current: 2,

			wantCount:    3,
			wantExceeded: true,
			wantReason:   "Exceeded tab switch limit (3/3)",
		},

		"past the limit still reports exceeded": {
			limit:   3,
			current: 5,

			wantCount:    6,
			wantExceeded: true,
			wantReason:   "Exceeded tab switch limit (6/3)",
		},

		"limit zero disables enforcement": {
			limit:   0,
			current: 41,

			wantCount: 42,
		},

		"limit one flags immediately without a warning": {
			limit:   1,
			current: 0,

			wantCount:    1,
			wantExceeded: true,
			wantReason:   "Exceeded tab switch limit (1/1)",
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			d := proctor.Monitor{Limit: tt.limit}.Report(tt.current)

			assert.Equal(t, tt.wantCount, d.TabSwitches)
			assert.Equal(t, tt.wantWarning, d.Warning)
			assert.Equal(t, tt.wantExceeded, d.Exceeded)
			assert.Equal(t, tt.wantReason, d.Reason)
		})
	}
}
