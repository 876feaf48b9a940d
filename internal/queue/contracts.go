package queue

import (
	"context"

	"github.com/1026465274/coze-workflow-app/internal/domain"
)

// Producer submits task messages to a queue backend.
type Producer interface {
	Enqueue(ctx context.Context, message domain.TaskMessage) error
}

// Consumer receives task messages and executes handlers. A handler error marks
// a delivery failure; handlers that record a terminal job state themselves
// must return nil so the message is never redelivered.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, domain.TaskMessage) error) error
}
