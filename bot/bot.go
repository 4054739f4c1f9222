package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"campus-locator/internal/models"
	"campus-locator/internal/services"
)

// Directory is what the bot needs from the account service
type Directory interface {
	FindAccount(ctx context.Context, id string) (*models.Account, error)
	PendingApprovals(ctx context.Context) ([]models.Account, error)
	SetStatus(ctx context.Context, role models.Role, id string, status models.ApprovalStatus) error
	Dashboard(ctx context.Context) (models.DashboardStats, error)
}

// TeacherLister is what the bot needs from the locator
type TeacherLister interface {
	List(ctx context.Context) ([]models.TeacherLocation, error)
}

// sender is the part of *tgbotapi.BotAPI the bot uses
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot is the Telegram side channel: administrators approve accounts from the
// authorized chat and anyone can ask where a teacher is.
type Bot struct {
	api          sender
	self         *tgbotapi.BotAPI
	targetChatID int64
	directory    Directory
	teachers     TeacherLister
	now          func() time.Time
}

// Init connects to Telegram
func Init(token, authorizedChatID string, directory Directory, teachers TeacherLister) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = false
	log.Printf("Authorized on account %s", api.Self.UserName)

	b := newBot(api, parseChatID(authorizedChatID), directory, teachers)
	b.self = api
	return b, nil
}

func newBot(api sender, chatID int64, directory Directory, teachers TeacherLister) *Bot {
	return &Bot{
		api:          api,
		targetChatID: chatID,
		directory:    directory,
		teachers:     teachers,
		now:          time.Now,
	}
}

func parseChatID(raw string) int64 {
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("Warning: invalid AUTHORIZED_CHAT_ID %q: %v", raw, err)
		return 0
	}
	return id
}

// StartPolling starts the update loop; it ends with ctx
func (b *Bot) StartPolling(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.self.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		b.self.StopReceivingUpdates()
	}()

	go func() {
		for update := range updates {
			b.HandleUpdate(ctx, update)
		}
	}()
}

// HandleUpdate answers one update
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}

	msg := b.handleCommand(ctx, update.Message.Chat.ID, update.Message.Command(), update.Message.CommandArguments())
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Bot send error: %v", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, chatID int64, command, args string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, "")
	msg.ParseMode = tgbotapi.ModeMarkdown

	switch command {
	case "start":
		msg.Text = "🏫 *Campus Teacher Locator*\n\n" +
			"*Commands:*\n" +
			"/teachers - where teachers were last seen\n" +
			"/where <name> - find one teacher\n" +
			"/getid - this chat's ID\n\n" +
			"*Admin:*\n" +
			"/pending - accounts waiting for approval\n" +
			"/approve <id> - approve an account\n" +
			"/decline <id> - decline an account\n" +
			"/stats - dashboard"

	case "getid":
		msg.Text = fmt.Sprintf("Chat ID: `%d`", chatID)

	case "teachers":
		msg.Text = b.teacherList(ctx, "")

	case "where":
		name := strings.TrimSpace(args)
		if name == "" {
			msg.Text = "Usage: `/where <name>`"
			break
		}
		msg.Text = b.teacherList(ctx, name)

	case "pending", "approve", "decline", "stats":
		if !b.isAdminChat(chatID) {
			msg.Text = "⛔ This command is only available in the admin chat"
			break
		}
		b.handleAdminCommand(ctx, command, strings.TrimSpace(args), &msg)

	default:
		msg.Text = "Unknown command. Use /start"
	}
	return msg
}

func (b *Bot) isAdminChat(chatID int64) bool {
	return b.targetChatID != 0 && chatID == b.targetChatID
}

func (b *Bot) handleAdminCommand(ctx context.Context, command, args string, msg *tgbotapi.MessageConfig) {
	switch command {
	case "pending":
		pending, err := b.directory.PendingApprovals(ctx)
		if err != nil {
			msg.Text = fmt.Sprintf("❌ Error: %v", err)
			return
		}
		if len(pending) == 0 {
			msg.Text = "✅ No accounts waiting for approval"
			return
		}
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("⏳ *Pending approvals (%d)*\n\n", len(pending)))
		for _, a := range pending {
			sb.WriteString(accountLine(a))
			sb.WriteString("\n")
		}
		msg.Text = sb.String()

	case "approve", "decline":
		if args == "" {
			msg.Text = fmt.Sprintf("Usage: `/%s <id>`", command)
			return
		}
		status := models.StatusApproved
		if command == "decline" {
			status = models.StatusDeclined
		}
		msg.Text = b.decide(ctx, "", args, status)

	case "stats":
		stats, err := b.directory.Dashboard(ctx)
		if err != nil {
			msg.Text = fmt.Sprintf("❌ Error: %v", err)
			return
		}
		msg.Text = fmt.Sprintf("📊 *Dashboard*\nStudents: %d\nTeachers: %d\nPending: %d\nActive teachers: %d",
			stats.TotalStudents, stats.TotalTeachers, stats.PendingApprovals, stats.ActiveUsers)
	}
}

// decide applies an approval decision; an empty role is looked up from the id
func (b *Bot) decide(ctx context.Context, role models.Role, id string, status models.ApprovalStatus) string {
	if role == "" {
		account, err := b.directory.FindAccount(ctx, id)
		if err != nil {
			return fmt.Sprintf("❌ Account `%s` not found", escape(id))
		}
		role = account.Role
	}
	if err := b.directory.SetStatus(ctx, role, id, status); err != nil {
		if errors.Is(err, models.ErrInvalidRole) {
			return fmt.Sprintf("❌ %s accounts cannot be changed here", role)
		}
		return fmt.Sprintf("❌ Error: %v", err)
	}
	return fmt.Sprintf("✅ %s `%s` is now *%s*", role, escape(id), status)
}

func (b *Bot) teacherList(ctx context.Context, name string) string {
	teachers, err := b.teachers.List(ctx)
	if err != nil {
		return fmt.Sprintf("❌ Error: %v", err)
	}

	needle := strings.ToLower(name)
	now := b.now()
	var lines []string
	for _, t := range teachers {
		if needle != "" && !strings.Contains(strings.ToLower(t.Name), needle) {
			continue
		}
		location := t.CurrentLocation
		if location == "" {
			location = "unknown"
		}
		lines = append(lines, fmt.Sprintf("👤 *%s* - %s (%s)",
			escape(t.Name), escape(location), services.LastSeen(now, t.LastActiveTime)))
	}

	if len(lines) == 0 {
		if needle != "" {
			return fmt.Sprintf("No teacher matching \"%s\"", escape(name))
		}
		return "No teachers found"
	}
	return "📍 *Teachers:*\n" + strings.Join(lines, "\n")
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	answer := "OK"
	action, role, id, ok := parseCallbackData(query.Data)

	switch {
	case !ok:
		answer = "Unknown action"
	case query.Message == nil || !b.isAdminChat(query.Message.Chat.ID):
		answer = "Not allowed"
	default:
		status := models.StatusApproved
		if action == "decline" {
			status = models.StatusDeclined
		}
		text := b.decide(ctx, role, id, status)
		answer = string(status)

		// callback messages come back as plain text, so the original is rebuilt or escaped
		original := escape(query.Message.Text)
		if account, err := b.directory.FindAccount(ctx, id); err == nil {
			original = pendingAccountText(*account)
		}
		edit := tgbotapi.NewEditMessageText(query.Message.Chat.ID, query.Message.MessageID,
			original+"\n\n"+text)
		edit.ParseMode = tgbotapi.ModeMarkdown
		if _, err := b.api.Send(edit); err != nil {
			log.Printf("Bot edit error: %v", err)
		}
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, answer)); err != nil {
		log.Printf("Bot callback error: %v", err)
	}
}

func callbackData(action string, role models.Role, id string) string {
	return action + ":" + string(role) + ":" + id
}

func parseCallbackData(data string) (string, models.Role, string, bool) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) != 3 || parts[2] == "" {
		return "", "", "", false
	}
	if parts[0] != "approve" && parts[0] != "decline" {
		return "", "", "", false
	}
	role := models.Role(parts[1])
	if role != models.RoleStudent && role != models.RoleTeacher {
		return "", "", "", false
	}
	return parts[0], role, parts[2], true
}

func accountLine(a models.Account) string {
	line := fmt.Sprintf("• *%s* (%s) %s\n  `%s`", escape(a.Name), a.Role, escape(a.Email), a.ID)
	if a.Profession != "" {
		line += " " + escape(a.Profession)
	}
	return line
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}
