package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/triad3/irpf-import/internal/jobs"
)

func TestStore_ListJobs(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	seed := []*jobs.ImportDeclarationJob{
		{JobID: "1", AccountID: "a", DeclarationID: "d1", Status: jobs.JobStatusCompleted, CreatedAt: base},
		{JobID: "2", AccountID: "a", DeclarationID: "d2", Status: jobs.JobStatusPending, CreatedAt: base.Add(time.Minute)},
		{JobID: "3", AccountID: "b", DeclarationID: "d3", Status: jobs.JobStatusCompleted, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, j := range seed {
		if err := s.SaveJob(ctx, j); err != nil {
			t.Fatalf("SaveJob() unexpected error: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{name: "all newest first", filter: jobs.JobFilter{}, want: []string{"3", "2", "1"}},
		{name: "by account", filter: jobs.JobFilter{AccountID: "a"}, want: []string{"2", "1"}},
		{name: "by status", filter: jobs.JobFilter{Status: jobs.JobStatusCompleted}, want: []string{"3", "1"}},
		{name: "by declaration", filter: jobs.JobFilter{DeclarationID: "d2"}, want: []string{"2"}},
		{name: "limit", filter: jobs.JobFilter{Limit: 1}, want: []string{"3"}},
		{name: "offset past end", filter: jobs.JobFilter{Offset: 5}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListJobs() unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ListJobs() returned %d jobs, want %d", len(got), len(tt.want))
			}
			for i, j := range got {
				if j.JobID != tt.want[i] {
					t.Errorf("job[%d] = %s, want %s", i, j.JobID, tt.want[i])
				}
			}
		})
	}
}

func TestStore_SaveDropsDocumentAndCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	job := &jobs.ImportDeclarationJob{JobID: "x", Document: []byte("%PDF"), Status: jobs.JobStatusPending}
	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob() unexpected error: %v", err)
	}
	job.Status = jobs.JobStatusRunning

	got, err := s.GetJob(ctx, "x")
	if err != nil {
		t.Fatalf("GetJob() unexpected error: %v", err)
	}
	if got.Document != nil {
		t.Error("stored job should not keep the document bytes")
	}
	if got.Status != jobs.JobStatusPending {
		t.Errorf("Status = %s, stored copy should not follow caller mutation", got.Status)
	}
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if err := s.SaveJob(ctx, &jobs.ImportDeclarationJob{}); err == nil {
		t.Error("SaveJob() without ID should fail")
	}
	if _, err := s.GetJob(ctx, "missing"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("GetJob() error = %v, want ErrJobNotFound", err)
	}
	if err := s.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, "x"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("UpdateJobStatus() error = %v, want ErrJobNotFound", err)
	}
}
