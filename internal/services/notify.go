package services

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"cardmarket-scanner/internal/models"
)

// Notifier pushes deal alerts to an external channel. Notification is best
// effort; the alert row in the database is the durable record.
type Notifier interface {
	NotifyDeal(alert models.DealAlert) error
}

// TelegramNotifier sends deal alerts to a Telegram chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (n *TelegramNotifier) NotifyDeal(alert models.DealAlert) error {
	text := fmt.Sprintf(
		"Deal: %s (%s)\nPrice: %.2f EUR (baseline %.2f, %.0f%% below)\nCondition: %s, seller: %s\n%s",
		alert.CardName, alert.CardKey,
		alert.Total, alert.Baseline, -alert.Discount*100,
		alert.Condition, alert.SellerName,
		alert.ArticleURL,
	)
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	return nil
}
