package cli

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/osnit/pkg/repository/memory"
	"github.com/secmon-lab/osnit/pkg/service/worker"
	"github.com/secmon-lab/osnit/pkg/usecase"
)

func TestPipelineJobs(t *testing.T) {
	uc := usecase.New(memory.New())
	jobs := pipelineJobs(uc, "@every 15m", "*/5 * * * *")
	gt.A(t, jobs).Length(2)
	gt.Value(t, jobs[0].Name).Equal("ingest")
	gt.Value(t, jobs[1].Name).Equal("process")

	// schedules are accepted by the worker
	_, err := worker.NewPipelineWorker(jobs)
	gt.NoError(t, err)

	// no collectors: collection is a no-op
	gt.NoError(t, jobs[0].Run(t.Context()))
}

func TestPipelineJobs_InvalidSchedule(t *testing.T) {
	uc := usecase.New(memory.New())
	_, err := worker.NewPipelineWorker(pipelineJobs(uc, "every now and then", "@hourly"))
	gt.Error(t, err)
}
