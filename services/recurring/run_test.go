package recurring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyRunSuccessResetsStreak(t *testing.T) {
	errMsg := "timeout"
	failure := RunFailure
	task := &Task{Status: StatusActive, RetryCount: 2, MaxRetries: 3, LastError: &errMsg, LastStatus: &failure}
	next := int64(500)

	applyRun(task, RunResult{Success: true, NextRunAt: &next}, 100)

	require.Equal(t, 0, task.RetryCount)
	require.Nil(t, task.LastError)
	require.Equal(t, RunSuccess, *task.LastStatus)
	require.Equal(t, int64(100), *task.LastRunAt)
	require.Equal(t, int64(500), *task.NextRunAt)
	require.Equal(t, StatusActive, task.Status)
}

func TestApplyRunFailureThreshold(t *testing.T) {
	cases := []struct {
		name       string
		retryCount int
		maxRetries int
		status     Status
		want       Status
	}{
		{"below threshold", 0, 3, StatusActive, StatusActive},
		{"one short", 1, 3, StatusActive, StatusActive},
		{"reaches threshold", 2, 3, StatusActive, StatusFailed},
		{"already past", 5, 3, StatusActive, StatusFailed},
		{"paused below threshold stays paused", 0, 3, StatusPaused, StatusPaused},
		{"single attempt", 0, 1, StatusActive, StatusFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			task := &Task{Status: tc.status, RetryCount: tc.retryCount, MaxRetries: tc.maxRetries}
			applyRun(task, RunResult{Error: "boom"}, 42)

			require.Equal(t, tc.retryCount+1, task.RetryCount)
			require.Equal(t, RunFailure, *task.LastStatus)
			require.Equal(t, "boom", *task.LastError)
			require.Equal(t, int64(42), *task.LastRunAt)
			require.Equal(t, tc.want, task.Status)
			require.Equal(t, task.RetryCount >= task.MaxRetries, task.Status == StatusFailed)
		})
	}
}

func TestApplyRunKeepsNextRunWhenAbsent(t *testing.T) {
	next := int64(900)
	task := &Task{Status: StatusActive, MaxRetries: 3, NextRunAt: &next}

	applyRun(task, RunResult{Success: true}, 1)
	require.Equal(t, int64(900), *task.NextRunAt)
}
