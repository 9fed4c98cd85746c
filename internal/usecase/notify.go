package usecase

import (
	"context"
	"log"
	"time"

	"github.com/richdadretirement/leadrelay/internal/notification"
)

// enqueue hands n to the outbox, bounded by timeout. Failures are logged and
// returned; only the postback flow acts on them.
func enqueue(ctx context.Context, outbox notification.Outbox, timeout time.Duration, tag string, n notification.Notification) error {
	if outbox == nil {
		return nil
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := outbox.Enqueue(ctx, n); err != nil {
		log.Printf("❌ [%s] Could not enqueue %s notification %s: %v", tag, n.Type, n.ID, err)
		return err
	}
	return nil
}
