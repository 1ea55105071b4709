package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewProgressEvent(t *testing.T) {
	taskID := uuid.New()
	event := NewProgressEvent(KindProgress, taskID, "world_nether")

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, taskID, event.TaskID)
	assert.Equal(t, KindProgress, event.Kind)
	assert.Equal(t, "world_nether", event.Region)
	assert.WithinDuration(t, time.Now(), event.CreatedAt, 2*time.Second)
}

func TestProgressEvent_Percent(t *testing.T) {
	tests := []struct {
		name   string
		offset int64
		total  int64
		want   float64
	}{
		{name: "empty total", offset: 0, total: 0, want: 0},
		{name: "start", offset: 0, total: 9, want: 0},
		{name: "quarter", offset: 25, total: 100, want: 25},
		{name: "done", offset: 1089, total: 1089, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &ProgressEvent{Offset: tt.offset, Total: tt.total}
			assert.InDelta(t, tt.want, event.Percent(), 1e-9)
		})
	}
}

func TestProgressEvent_ETA(t *testing.T) {
	event := &ProgressEvent{Offset: 40, Total: 100, Rate: 20}
	assert.Equal(t, 3*time.Second, event.ETA())

	event.Rate = 0
	assert.Equal(t, time.Duration(0), event.ETA(), "unknown rate")

	event.Rate = 20
	event.Offset = 100
	assert.Equal(t, time.Duration(0), event.ETA(), "nothing left")
}
