package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/image-scraper/pkg/models"
)

func TestNewJobManager(t *testing.T) {
	jm := NewJobManager()
	require.NotNil(t, jm)
	assert.Empty(t, jm.ListJobs())
}

func TestCreateJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(3)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, JobStatusRunning, job.Status)
	assert.Equal(t, 3, job.TotalCount)
	assert.False(t, job.StartedAt.IsZero())
	assert.True(t, job.CompletedAt.IsZero())
	assert.Nil(t, job.Result)

	other := jm.CreateJob(1)
	assert.NotEqual(t, job.ID, other.ID)
	assert.Len(t, jm.ListJobs(), 2)
}

func TestGetJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(1)

	t.Run("exists returns copy", func(t *testing.T) {
		got := jm.GetJob(job.ID)
		require.NotNil(t, got)
		got.Status = JobStatusCancelled
		assert.Equal(t, JobStatusRunning, jm.GetJob(job.ID).Status)
	})

	t.Run("missing returns nil", func(t *testing.T) {
		assert.Nil(t, jm.GetJob("nonexistent"))
	})
}

func TestFinish(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(2)
	ctx := jm.GetContext(job.ID)

	jm.Finish(job.ID, models.ImportResult{ImportedCount: 2, TotalCount: 2, Errors: []string{}})

	got := jm.GetJob(job.ID)
	assert.Equal(t, JobStatusCompleted, got.Status)
	assert.False(t, got.CompletedAt.IsZero())
	require.NotNil(t, got.Result)
	assert.Equal(t, 2, got.Result.ImportedCount)
	assert.Error(t, ctx.Err(), "context is released once the job is done")
}

func TestCancelJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(5)
	ctx := jm.GetContext(job.ID)

	assert.True(t, jm.CancelJob(job.ID))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.Equal(t, JobStatusCancelled, jm.GetJob(job.ID).Status)

	assert.False(t, jm.CancelJob(job.ID), "already cancelled")
	assert.False(t, jm.CancelJob("nonexistent"))

	// The import returns its partial result after cancellation
	jm.Finish(job.ID, models.ImportResult{ImportedCount: 1, TotalCount: 5, Errors: []string{"x"}})
	got := jm.GetJob(job.ID)
	assert.Equal(t, JobStatusCancelled, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, 1, got.Result.ImportedCount)
}

func TestCancelAll(t *testing.T) {
	jm := NewJobManager()
	a := jm.CreateJob(1)
	b := jm.CreateJob(1)
	jm.Finish(b.ID, models.ImportResult{TotalCount: 1, ImportedCount: 1, Errors: []string{}})

	jm.CancelAll()
	assert.Equal(t, JobStatusCancelled, jm.GetJob(a.ID).Status)
	assert.Equal(t, JobStatusCompleted, jm.GetJob(b.ID).Status)
}

func TestGetContext(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(1)
	assert.NoError(t, jm.GetContext(job.ID).Err())
	assert.Equal(t, context.Background(), jm.GetContext("missing"))
}
