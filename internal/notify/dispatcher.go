// Package notify stores and delivers user notifications.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"twinsa/internal/metrics"
	"twinsa/internal/models"
)

// Quoted text longer than this is cut to fit.
const maxQuoteRunes = 50

// Event is something that happened to a user. TweetID is zero when no tweet is involved.
type Event struct {
	Type    models.NotificationType
	To      int64
	From    int64
	TweetID int64
	Content string
}

// Dispatcher turns events into stored notifications.
type Dispatcher struct {
	log    *Log
	logger *zap.Logger
	now    func() time.Time
}

func NewDispatcher(log *Log, logger *zap.Logger, now func() time.Time) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{log: log, logger: logger, now: now}
}

// Dispatch stores ev unless it is addressed to its own sender. A failed write is
// logged and returned; the notification is not kept.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	if ev.To == ev.From {
		return nil
	}
	n := models.Notification{
		ID:         uuid.New().String(),
		ToUserID:   ev.To,
		FromUserID: ev.From,
		Type:       ev.Type,
		Content:    ev.Content,
		CreatedAt:  d.now().UTC(),
	}
	if ev.TweetID != 0 {
		id := ev.TweetID
		n.TweetID = &id
	}

	if err := d.log.Append(ctx, n); err != nil {
		d.logger.Error("Failed to store notification",
			zap.String("type", string(ev.Type)),
			zap.Int64("to", ev.To),
			zap.Int64("from", ev.From),
			zap.Error(err))
		return err
	}
	metrics.IncNotification(string(ev.Type))
	d.logger.Debug("Notification stored",
		zap.String("id", n.ID),
		zap.String("type", string(ev.Type)),
		zap.Int64("to", ev.To))
	return nil
}

// ReplyContent quotes the comment being answered ahead of the reply text.
func ReplyContent(comment, reply string) string {
	return "\"" + Truncate(comment) + "\" " + Truncate(reply)
}

// Truncate cuts s to its first 47 runes plus "..." when it is longer than 50 runes.
func Truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxQuoteRunes {
		return s
	}
	return string(r[:maxQuoteRunes-3]) + "..."
}
