package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-engine/internal/model"
)

func processingJob(total, processed int, started time.Time) *model.EnrichmentJob {
	return &model.EnrichmentJob{
		Status:         model.JobStatusProcessing,
		TotalLeads:     total,
		ProcessedLeads: processed,
		StartedAt:      &started,
	}
}

func TestEstimateRemaining_UndefinedCases(t *testing.T) {
	started := time.Now().UTC()

	assert.Nil(t, estimateRemainingAt(nil, started))
	assert.Nil(t, estimateRemainingAt(&model.EnrichmentJob{Status: model.JobStatusQueued}, started))
	assert.Nil(t, estimateRemainingAt(&model.EnrichmentJob{Status: model.JobStatusCompleted}, started))

	// Processing but no progress yet.
	assert.Nil(t, estimateRemainingAt(processingJob(10, 0, started), started.Add(time.Minute)))

	// Progress but no start time.
	job := &model.EnrichmentJob{Status: model.JobStatusProcessing, TotalLeads: 10, ProcessedLeads: 5}
	assert.Nil(t, estimateRemainingAt(job, started))

	// Clock skew: elapsed is not positive.
	assert.Nil(t, estimateRemainingAt(processingJob(10, 5, started), started))
}

func TestEstimateRemaining_Throughput(t *testing.T) {
	started := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	// 5 of 10 leads in 10 minutes: 2m per lead, 10m remaining.
	got := estimateRemainingAt(processingJob(10, 5, started), started.Add(10*time.Minute))
	require.NotNil(t, got)
	assert.Equal(t, "10 minutes", *got)

	// 9 of 10 leads in 9 seconds: about a second left.
	got = estimateRemainingAt(processingJob(10, 9, started), started.Add(9*time.Second))
	require.NotNil(t, got)
	assert.Equal(t, "less than 1 minute", *got)

	// 1 of 100 leads in 2 minutes: 198 minutes, rendered in hours.
	got = estimateRemainingAt(processingJob(100, 1, started), started.Add(2*time.Minute))
	require.NotNil(t, got)
	assert.Equal(t, "3h 18m", *got)
}

func TestFormatETA(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "less than 1 minute"},
		{time.Minute, "1 minute"},
		{90 * time.Second, "1 minute"},
		{2 * time.Minute, "2 minutes"},
		{59*time.Minute + 59*time.Second, "59 minutes"},
		{time.Hour, "1h 0m"},
		{time.Hour + 30*time.Minute, "1h 30m"},
		{3*time.Hour + 18*time.Minute, "3h 18m"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatETA(tt.d), tt.d.String())
	}
}
