package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/game_store/pkg/events"
	"github.com/Skotchmaster/game_store/pkg/logging"
)

const publishTimeout = 5 * time.Second

// publish sends an event after the database work is committed. Failures are
// logged and never reach the caller.
func publish(ctx context.Context, p events.Publisher, topic, key string, ev events.Event) {
	if p == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.Publish(pubCtx, topic, key, ev); err != nil {
		logging.FromContext(ctx).Warn("publish_event_failed", "topic", topic, "type", ev.Type, "error", err)
	}
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}

func validation(err error) error {
	return fmt.Errorf("%w: %s", ErrValidation, err.Error())
}
