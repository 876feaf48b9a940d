package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/1026465274/coze-workflow-app/internal/domain"
	"github.com/1026465274/coze-workflow-app/internal/queue"
	"github.com/1026465274/coze-workflow-app/internal/service"
	"github.com/1026465274/coze-workflow-app/internal/workflow"
)

// Progress milestones for the two pipeline stages. The workflow stage caps
// below the document stage to leave room for its steps.
const (
	progressWorkflowStart = 10
	progressStreamBase    = 20
	progressStreamCap     = 50
	progressWorkflowDone  = 60
	progressWebhook       = 70
	progressUpload        = 80
	progressDocumentDone  = 90
)

// Runner drives one external workflow call.
type Runner interface {
	Execute(ctx context.Context, input string, onEvent func(event string)) (*workflow.Result, error)
	Describe(input string, result *workflow.Result) *domain.WorkflowInfo
}

// Publisher produces the optional downloadable artifact.
type Publisher interface {
	Available() bool
	Publish(ctx context.Context, payload json.RawMessage, fileName string, onStep func(step string)) (*domain.DocumentResult, error)
}

// Processor consumes task messages and drives each job from pending to a
// terminal state. Job-level failures become failed records and are never
// redelivered; only delivery-level errors reach the queue's retry path.
type Processor struct {
	consumer  queue.Consumer
	jobs      *service.JobService
	runner    Runner
	publisher Publisher
	logger    *log.Logger
}

func NewProcessor(
	consumer queue.Consumer,
	jobs *service.JobService,
	runner Runner,
	publisher Publisher,
	logger *log.Logger,
) *Processor {
	return &Processor{
		consumer:  consumer,
		jobs:      jobs,
		runner:    runner,
		publisher: publisher,
		logger:    logger,
	}
}

func (p *Processor) Start(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := p.consumer.Consume(ctx, p.processMessage)
		if err == nil || ctx.Err() != nil {
			return
		}
		if p.logger != nil {
			p.logger.Printf("worker consume loop error: %v", err)
		}

		timer := time.NewTimer(2 * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (p *Processor) processMessage(ctx context.Context, message domain.TaskMessage) error {
	job, err := p.jobs.Get(ctx, message.JobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", message.JobID, err)
	}
	if job.Status.Terminal() {
		// Redelivered message for a finished job; transitions are forward-only.
		if p.logger != nil {
			p.logger.Printf("skipping terminal job job_id=%s status=%s", job.ID, job.Status)
		}
		return nil
	}

	p.jobs.Advance(ctx, job, progressWorkflowStart, "calling workflow")

	streamProgress := progressStreamBase
	runResult, runErr := p.runner.Execute(ctx, message.Input, func(event string) {
		if streamProgress < progressStreamCap {
			streamProgress += 5
		}
		p.jobs.Advance(ctx, job, streamProgress, fmt.Sprintf("processing workflow response (%s)", event))
	})
	if runErr != nil {
		p.jobs.Fail(ctx, job, runErr.Error())
		if p.logger != nil {
			p.logger.Printf("workflow run failed job_id=%s err=%v", job.ID, runErr)
		}
		return nil
	}

	info := p.runner.Describe(message.Input, runResult)
	p.jobs.Advance(ctx, job, progressWorkflowDone, "workflow complete, generating document")

	result := &domain.Result{
		Success:  true,
		OutData:  runResult.OutData,
		Info:     info,
		Document: nil,
	}
	result.Document = p.publishDocument(ctx, job, info)

	p.jobs.Complete(ctx, job, result)
	if p.logger != nil {
		p.logger.Printf("job processed job_id=%s has_document=%t", job.ID, result.Document != nil)
	}
	return nil
}

// publishDocument runs the optional artifact stage. Any failure here leaves
// the document result null; the workflow output was already produced and the
// job still completes.
func (p *Processor) publishDocument(ctx context.Context, job *domain.Job, info *domain.WorkflowInfo) *domain.DocumentResult {
	if p.publisher == nil || !p.publisher.Available() {
		return nil
	}
	if info == nil || len(info.Extracted) == 0 {
		return nil
	}

	steps := []int{progressWebhook, progressUpload}
	onStep := func(step string) {
		progress := progressDocumentDone
		if len(steps) > 0 {
			progress = steps[0]
			steps = steps[1:]
		}
		p.jobs.Advance(ctx, job, progress, step)
	}

	fileName := fmt.Sprintf("workflow_result_%d.docx", time.Now().UnixMilli())
	document, err := p.publisher.Publish(ctx, info.Extracted, fileName, onStep)
	if err != nil {
		if p.logger != nil {
			p.logger.Printf("document generation failed job_id=%s err=%v", job.ID, err)
		}
		return nil
	}

	p.jobs.Advance(ctx, job, progressDocumentDone, "document ready, assembling result")
	return document
}
