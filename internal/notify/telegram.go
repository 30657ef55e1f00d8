package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/shrimpsizemoose/trekker/logger"
)

// Notifier pushes one-way sync outcomes to the club's telegram chats.
// Optional; a zero-config notifier swallows everything.
type Notifier struct {
	enabled bool
	api     *tgbotapi.BotAPI
	chatIDs []int64
}

func New(token string, chatIDs []int64) (*Notifier, error) {
	if token == "" || len(chatIDs) == 0 {
		return &Notifier{enabled: false}, nil
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	return &Notifier{
		enabled: true,
		api:     api,
		chatIDs: chatIDs,
	}, nil
}

// SyncOutcome reports how an operation ended. Delivery failures are
// logged, never surfaced: notification must not fail a finished sync.
func (n *Notifier) SyncOutcome(operation string, syncErr error) {
	if !n.enabled {
		return
	}

	text := fmt.Sprintf("✅ %s finished", operation)
	if syncErr != nil {
		text = fmt.Sprintf("⚠️ %s failed: %v", operation, syncErr)
	}

	for _, chatID := range n.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := n.api.Send(msg); err != nil {
			logger.Error.Printf("Failed to notify chat %d: %v", chatID, err)
		}
	}
}
