package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dispatch processes ticketID on a detached goroutine and returns the task id
// at once. The task is never cancelled; failures are logged and dropped.
func (p *Processor) Dispatch(ticketID int) string {
	taskID := uuid.NewString()
	logger := p.logger.With(zap.String("task_id", taskID), zap.Int("ticket_id", ticketID))

	p.wg.Add(1)
	p.metrics.TaskStarted()
	go func() {
		defer p.wg.Done()
		result := resultError
		defer func() {
			if r := recover(); r != nil {
				logger.Error("task panicked", zap.String("panic", fmt.Sprint(r)))
				result = resultError
			}
			p.metrics.TaskFinished(result)
		}()

		logger.Info("task started")
		err := p.process(context.Background(), ticketID, logger)
		switch {
		case err == nil:
			result = resultOK
		case errors.Is(err, ErrTicketNotFound):
			result = resultNotFound
		}
	}()
	return taskID
}

// Wait blocks until every dispatched task has finished.
func (p *Processor) Wait() {
	p.wg.Wait()
}
