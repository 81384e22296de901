package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bicepspshop/newcoach/internal/session"
	"github.com/bicepspshop/newcoach/internal/store"
)

const maxListedClients = 10

func (b *Bot) mainMenu() tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👥 Clients", "clients"),
			tgbotapi.NewInlineKeyboardButtonData("💪 Workouts", "workouts"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Stats", "stats"),
		),
	}
	if b.webAppURL != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonWebApp("🌐 Open app", tgbotapi.WebAppInfo{URL: b.webAppURL}),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.handleStart(ctx, msg)
	case "stats":
		b.showStats(ctx, msg.Chat.ID, msg.From)
	default:
		b.send(tgbotapi.NewMessage(msg.Chat.ID, "Unknown command. Try /start."))
	}
}

// handleStart registers the coach on first contact and shows the main menu
func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	coach, err := b.coachFor(ctx, msg.From)
	if err != nil {
		b.logger.Error("coach resolution failed", "error", err)
		b.send(tgbotapi.NewMessage(msg.Chat.ID, "Something went wrong, please try again later."))
		return
	}

	text := fmt.Sprintf("👋 Welcome back, %s!\n\nPick an action:", coach.Name)
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyMarkup = b.mainMenu()
	b.send(reply)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	chatID := cq.Message.Chat.ID

	// always answer callback
	_, _ = b.api.Request(tgbotapi.NewCallback(cq.ID, ""))

	data := cq.Data
	switch {
	case data == "confirm:yes" || data == "confirm:no":
		if !b.deliverConfirmation(chatID, data == "confirm:yes") {
			b.send(tgbotapi.NewMessage(chatID, "Nothing to confirm."))
		}
	case data == "clients":
		b.showClients(ctx, chatID, cq.From)
	case data == "workouts":
		b.showWorkouts(ctx, chatID, cq.From)
	case data == "stats":
		b.showStats(ctx, chatID, cq.From)
	case data == "main_menu":
		reply := tgbotapi.NewMessage(chatID, "Pick an action:")
		reply.ReplyMarkup = b.mainMenu()
		b.send(reply)
	case strings.HasPrefix(data, "client_del:"):
		b.startClientDeletion(ctx, chatID, cq.From, strings.TrimPrefix(data, "client_del:"))
	}
}

// freshSnapshot refreshes the coach's session and returns the snapshot
func (b *Bot) freshSnapshot(ctx context.Context, user *tgbotapi.User) (*session.Snapshot, error) {
	coach, err := b.coachFor(ctx, user)
	if err != nil {
		return nil, err
	}
	return b.sessions.Session(*coach).Refresh(ctx)
}

func (b *Bot) showClients(ctx context.Context, chatID int64, user *tgbotapi.User) {
	snap, err := b.freshSnapshot(ctx, user)
	if err != nil {
		b.send(tgbotapi.NewMessage(chatID, "Could not load clients, please try again later."))
		return
	}

	if len(snap.Clients) == 0 {
		b.send(tgbotapi.NewMessage(chatID, "No clients yet. Add your first one in the app!"))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "👥 Your clients (%d):\n\n", len(snap.Clients))

	var rows [][]tgbotapi.InlineKeyboardButton
	for i, client := range snap.Clients {
		if i == maxListedClients {
			fmt.Fprintf(&sb, "…and %d more\n", len(snap.Clients)-maxListedClients)
			break
		}
		sb.WriteString("• " + client.Name)
		if client.Phone != "" {
			sb.WriteString(" (" + client.Phone + ")")
		}
		sb.WriteString("\n")

		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 "+client.Name, "client_del:"+strconv.FormatInt(client.ID, 10)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Menu", "main_menu"),
	))

	reply := tgbotapi.NewMessage(chatID, sb.String())
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(reply)
}

func (b *Bot) showWorkouts(ctx context.Context, chatID int64, user *tgbotapi.User) {
	snap, err := b.freshSnapshot(ctx, user)
	if err != nil {
		b.send(tgbotapi.NewMessage(chatID, "Could not load workouts, please try again later."))
		return
	}

	if len(snap.Workouts) == 0 {
		b.send(tgbotapi.NewMessage(chatID, "No workouts yet."))
		return
	}

	names := make(map[int64]string, len(snap.Clients))
	for _, client := range snap.Clients {
		names[client.ID] = client.Name
	}

	statusIcons := map[store.WorkoutStatus]string{
		store.StatusPlanned:   "🕐",
		store.StatusCompleted: "✅",
		store.StatusCancelled: "❌",
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "💪 Recent workouts (%d):\n\n", len(snap.Workouts))
	for i, workout := range snap.Workouts {
		if i == maxListedClients {
			fmt.Fprintf(&sb, "…and %d more\n", len(snap.Workouts)-maxListedClients)
			break
		}
		name := names[workout.ClientID]
		if name == "" {
			name = "Unknown client"
		}
		fmt.Fprintf(&sb, "%s %s — %s\n", statusIcons[workout.Status], name, workout.Date)
	}

	b.send(tgbotapi.NewMessage(chatID, sb.String()))
}

func (b *Bot) showStats(ctx context.Context, chatID int64, user *tgbotapi.User) {
	coach, err := b.coachFor(ctx, user)
	if err != nil {
		b.send(tgbotapi.NewMessage(chatID, "Could not load stats, please try again later."))
		return
	}

	// Stats degrade to zeros on failure rather than erroring
	stats := b.resolver.ResolveStats(ctx, coach.ID)

	text := fmt.Sprintf("📊 Your stats:\n\n👥 Clients: %d\n💪 Workouts: %d\n✅ Completed: %d",
		stats.ClientsCount, stats.WorkoutsCount, stats.CompletedWorkouts)
	b.send(tgbotapi.NewMessage(chatID, text))
}

// startClientDeletion confirms and deletes a client. The confirmation is the
// same ask-and-await-boolean flow the Mini App uses.
func (b *Bot) startClientDeletion(ctx context.Context, chatID int64, user *tgbotapi.User, rawID string) {
	clientID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return
	}

	snap, err := b.freshSnapshot(ctx, user)
	if err != nil {
		b.send(tgbotapi.NewMessage(chatID, "Could not load clients, please try again later."))
		return
	}

	var client *store.Client
	for i := range snap.Clients {
		if snap.Clients[i].ID == clientID {
			client = &snap.Clients[i]
			break
		}
	}
	if client == nil {
		b.send(tgbotapi.NewMessage(chatID, "Client not found."))
		return
	}

	go func() {
		confirmer := &ChatConfirmer{bot: b, chatID: chatID}
		ok, err := confirmer.Confirm(ctx, fmt.Sprintf("Delete client %q? This cannot be undone.", client.Name))
		if err != nil || !ok {
			b.send(tgbotapi.NewMessage(chatID, "Deletion cancelled."))
			return
		}

		if err := b.store.DeleteClient(ctx, clientID); err != nil {
			b.logger.Error("client deletion failed", "client_id", clientID, "error", err)
			b.send(tgbotapi.NewMessage(chatID, "Failed to delete client."))
			return
		}

		if _, err := b.freshSnapshot(ctx, user); err != nil {
			b.logger.Warn("post-deletion refresh failed", "error", err)
		}
		b.send(tgbotapi.NewMessage(chatID, fmt.Sprintf("Client %q deleted.", client.Name)))
	}()
}
