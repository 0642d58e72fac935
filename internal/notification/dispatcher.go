package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"sacco/pkg/logger"
)

// Dispatcher sends notifications in the background after a unit of work has
// committed. Delivery errors are logged and never reach the caller.
// A nil *Dispatcher drops every notification.
type Dispatcher struct {
	notifier Service
	logger   logger.Logger
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewDispatcher(notifier Service, log logger.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Dispatcher{notifier: notifier, logger: log, timeout: timeout}
}

// Dispatch returns immediately.
func (d *Dispatcher) Dispatch(memberID uuid.UUID, eventType string, data map[string]interface{}) {
	if d == nil || d.notifier == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("Notification panicked", map[string]interface{}{
					"member_id": memberID,
					"type":      eventType,
					"panic":     r,
				})
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.notifier.Notify(ctx, memberID, eventType, data); err != nil {
			d.logger.Error("Failed to deliver notification", map[string]interface{}{
				"member_id": memberID,
				"type":      eventType,
				"error":     err,
			})
		}
	}()
}

// Wait blocks until every dispatched notification has finished.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
