// Package bot provides the Telegram bot and the administrator notifier built on it
package bot

import (
	"fmt"
	"log"
	"sync/atomic"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"campus-locator/internal/models"
	"campus-locator/internal/services"
)

// Notifier sends administrator notifications to the authorized chat.
// A nil Notifier, or one without a bot, drops every message.
type Notifier struct {
	bot atomic.Pointer[Bot]
}

// NewNotifier creates a notifier for b, which may be nil
func NewNotifier(b *Bot) *Notifier {
	n := &Notifier{}
	n.Attach(b)
	return n
}

// Attach switches notifications to b
func (n *Notifier) Attach(b *Bot) {
	n.bot.Store(b)
}

func (n *Notifier) ready() *Bot {
	if n == nil {
		return nil
	}
	b := n.bot.Load()
	if b == nil || b.api == nil || b.targetChatID == 0 {
		return nil
	}
	return b
}

// SendNotification sends a notification to the admin chat
func (n *Notifier) SendNotification(message string) {
	b := n.ready()
	if b == nil {
		return
	}
	msg := tgbotapi.NewMessage(b.targetChatID, message)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Failed to send: %v", err)
	}
}

// NotifyPendingAccount asks the administrators to approve or decline a new account
func (n *Notifier) NotifyPendingAccount(account models.Account) {
	b := n.ready()
	if b == nil {
		return
	}
	msg := tgbotapi.NewMessage(b.targetChatID, pendingAccountText(account))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", callbackData("approve", account.Role, account.ID)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Decline", callbackData("decline", account.Role, account.ID)),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Failed to send approval request: %v", err)
	}
}

func pendingAccountText(account models.Account) string {
	text := fmt.Sprintf("🆕 *New %s account waiting for approval*\n\n%s", account.Role, accountLine(account))
	if account.Phone != "" {
		text += "\n  📞 " + escape(account.Phone)
	}
	return text
}

var _ services.Notifier = (*Notifier)(nil)
