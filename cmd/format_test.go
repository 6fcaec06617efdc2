package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/lead-engine/internal/model"
)

func TestShortID(t *testing.T) {
	assert.Equal(t, "12345678", shortID("12345678-abcd-efgh"))
	assert.Equal(t, "short", shortID("short"))
}

func TestFormatClusters(t *testing.T) {
	var buf bytes.Buffer
	formatClusters(&buf, []model.DuplicateCluster{
		{
			ID:               1,
			LeadIDs:          []string{"aaaaaaaa-1111", "bbbbbbbb-2222"},
			MaxSimilarity:    87.5,
			SuggestedPrimary: "aaaaaaaa-1111",
		},
	})

	out := buf.String()
	assert.Contains(t, out, "CLUSTER")
	assert.Contains(t, out, "aaaaaaaa,bbbbbbbb")
	assert.Contains(t, out, "87.5")
}

func TestFormatJob(t *testing.T) {
	started := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	completed := started.Add(90 * time.Second)
	job := &model.EnrichmentJob{
		ID:              "job_1_abcd",
		Status:          model.JobStatusCompleted,
		TotalLeads:      10,
		ProcessedLeads:  10,
		SuccessfulLeads: 8,
		FailedLeads:     2,
		StartedAt:       &started,
		CompletedAt:     &completed,
	}

	var buf bytes.Buffer
	formatJob(&buf, job)

	out := buf.String()
	assert.Contains(t, out, "job_1_abcd")
	assert.Contains(t, out, "10/10 (100%)")
	assert.Contains(t, out, "Successful: 8")
	assert.Contains(t, out, "1m30s")
}

func TestFormatJobsList(t *testing.T) {
	started := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	completed := started.Add(45 * time.Second)

	var buf bytes.Buffer
	formatJobsList(&buf, []model.EnrichmentJob{
		{
			ID:             "job_1_abcd",
			Status:         model.JobStatusCompleted,
			TotalLeads:     5,
			ProcessedLeads: 5,
			CreatedAt:      started,
			StartedAt:      &started,
			CompletedAt:    &completed,
		},
		{
			ID:         "job_2_efgh",
			Status:     model.JobStatusQueued,
			TotalLeads: 3,
			CreatedAt:  started,
		},
	})

	out := buf.String()
	assert.Contains(t, out, "job_1_abcd")
	assert.Contains(t, out, "45s")
	assert.Contains(t, out, "queued")
}

func TestFormatTopLeads_SortsDescending(t *testing.T) {
	leads := []model.Lead{
		{ID: "low-00000", BusinessName: "Low", Scores: model.LeadScores{Total: 10}},
		{ID: "high-0000", BusinessName: "High", Scores: model.LeadScores{Total: 90}},
		{ID: "mid-00000", BusinessName: "Mid", Scores: model.LeadScores{Total: 50}},
	}

	var buf bytes.Buffer
	formatTopLeads(&buf, leads, 2)

	out := buf.String()
	assert.Contains(t, out, "High")
	assert.Contains(t, out, "Mid")
	assert.NotContains(t, out, "Low")
}
