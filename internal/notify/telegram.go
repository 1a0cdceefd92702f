package notify

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/i474232898/weather-extraction/internal/extraction"
)

// messageSender is the part of tgbotapi.BotAPI used here.
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramPublisher delivers notifications as Telegram messages. The topic
// is the numeric chat id.
type TelegramPublisher struct {
	api messageSender
}

// NewTelegramPublisher connects to the Bot API with token.
func NewTelegramPublisher(token string) (*TelegramPublisher, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramPublisher{api: api}, nil
}

func (p *TelegramPublisher) Publish(ctx context.Context, topic, message string) (extraction.DeliveryResult, error) {
	chatID, err := strconv.ParseInt(topic, 10, 64)
	if err != nil {
		return extraction.DeliveryResult{}, fmt.Errorf("telegram topic %q is not a chat id: %w", topic, err)
	}
	if err := ctx.Err(); err != nil {
		return extraction.DeliveryResult{}, err
	}

	msg := tgbotapi.NewMessage(chatID, message)
	msg.DisableWebPagePreview = true

	sent, err := p.api.Send(msg)
	if err != nil {
		return extraction.DeliveryResult{}, fmt.Errorf("send telegram message: %w", err)
	}
	return extraction.DeliveryResult{MessageID: strconv.Itoa(sent.MessageID), Topic: topic}, nil
}
