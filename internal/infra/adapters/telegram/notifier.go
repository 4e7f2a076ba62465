package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"offer-ai-service/internal/domain/model"
	"offer-ai-service/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*Notifier)(nil)

// sender is the slice of tgbotapi.BotAPI the notifier needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier posts a line to an operator chat when a job finishes.
type Notifier struct {
	bot    sender
	chatID int64
	log    *zerolog.Logger
}

func NewNotifier(token string, chatID int64, log *zerolog.Logger) (*Notifier, error) {
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return newNotifier(bot, chatID, log), nil
}

func newNotifier(bot sender, chatID int64, log *zerolog.Logger) *Notifier {
	if log == nil {
		l := zerolog.Nop()
		log = &l
	}
	return &Notifier{bot: bot, chatID: chatID, log: log}
}

func (n *Notifier) JobFinished(ctx context.Context, job *model.OfferJob, title string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	msg := tgbotapi.NewMessage(n.chatID, JobMessage(job, title))
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Warn().Err(err).Str("job_id", job.ID).Msg("telegram notify failed")
		return err
	}
	return nil
}

// JobMessage renders the notification text for a terminal job.
func JobMessage(job *model.OfferJob, title string) string {
	if job.Status == model.JobStatusFailed {
		return fmt.Sprintf("Offert misslyckades (%s): %s", job.ID, job.Error)
	}
	if title == "" {
		title = "Offert"
	}
	return fmt.Sprintf("Offert klar: %s (%s)", title, job.ID)
}

// NoopNotifier drops notifications; used when no bot token is configured.
type NoopNotifier struct{}

func (NoopNotifier) JobFinished(context.Context, *model.OfferJob, string) error { return nil }
