package queue

import (
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
)

func TestQueueFor(t *testing.T) {
	assert.Equal(t, "critical", queueFor(1))
	assert.Equal(t, "default", queueFor(2))
	assert.Equal(t, "low", queueFor(0))
	assert.Equal(t, "low", queueFor(7))
}

func TestConvertAsynqStatus(t *testing.T) {
	done := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		info  *asynq.TaskInfo
		state string
	}{
		{"pending", &asynq.TaskInfo{ID: "a", State: asynq.TaskStatePending}, StatusPending},
		{"scheduled", &asynq.TaskInfo{ID: "a", State: asynq.TaskStateScheduled}, StatusPending},
		{"active", &asynq.TaskInfo{ID: "a", State: asynq.TaskStateActive}, StatusRunning},
		{"completed", &asynq.TaskInfo{ID: "a", State: asynq.TaskStateCompleted, CompletedAt: done}, StatusCompleted},
		{"retry", &asynq.TaskInfo{ID: "a", State: asynq.TaskStateRetry, LastErr: "boom"}, StatusFailed},
		{"archived", &asynq.TaskInfo{ID: "a", State: asynq.TaskStateArchived, LastErr: "boom"}, StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := convertAsynqStatus(tt.info)
			assert.Equal(t, "a", got.TaskID)
			assert.Equal(t, tt.state, got.Status)
			if tt.state == StatusFailed {
				assert.Equal(t, "boom", got.Error)
			}
			if tt.state == StatusCompleted {
				assert.Equal(t, done, got.FinishedAt)
				assert.Equal(t, 1.0, got.Progress)
			}
		})
	}
}

func TestNewAsynqQueueRequiresAddress(t *testing.T) {
	_, err := NewAsynqQueue(&QueueConfig{})
	assert.Error(t, err)
}
