package recurring

// applyRun folds one run outcome into t. A success clears the failure
// streak; a failure extends it and flips the task to failed once the streak
// reaches maxRetries.
func applyRun(t *Task, res RunResult, now int64) {
	t.LastRunAt = &now
	t.UpdatedAt = now
	if res.NextRunAt != nil {
		next := *res.NextRunAt
		t.NextRunAt = &next
	}

	if res.Success {
		st := RunSuccess
		t.LastStatus = &st
		t.RetryCount = 0
		t.LastError = nil
		return
	}

	st := RunFailure
	t.LastStatus = &st
	t.RetryCount++
	msg := res.Error
	t.LastError = &msg
	if t.RetryCount >= t.MaxRetries {
		t.Status = StatusFailed
	}
}
