package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"notes-bot/internal/config"
	"notes-bot/internal/model"
	"notes-bot/internal/repository"
	"notes-bot/internal/service"
)

const (
	cbDeletePrefix = "delete:"
	buttonsPerRow  = 3
)

const (
	menuLabelNotes = "📝 Мои заметки"
	menuLabelHelp  = "ℹ️ Помощь"
)

const (
	msgEmptyNote       = "Пожалуйста, укажите текст заметки"
	msgNoteAdded       = "Заметка #%d добавлена!"
	msgNoteDeleted     = "Заметка #%d удалена."
	msgNoteNotFound    = "Заметка #%d не найдена."
	msgDeleteUsage     = "Укажите номер заметки: /delete_note 3"
	msgDeleteBadID     = "Номер заметки должен быть числом."
	msgUnknownCommand  = "Команда не поддерживается. Загляни в /help."
	msgNotUnderstood   = "Я пока не понял сообщение. Набери /add_note <текст>, чтобы добавить заметку, или /help для списка команд."
	msgCallbackUnknown = "Неизвестное действие"
)

// botAPI is the part of *tgbotapi.BotAPI the bot relies on.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot routes Telegram updates to the note service.
type Bot struct {
	api       botAPI
	userRepo  *repository.UserRepository
	noteSvc   *service.NoteService
	digestSvc *service.DigestService
	config    *config.Config
}

func New(token string, userRepo *repository.UserRepository, noteSvc *service.NoteService, digestSvc *service.DigestService, cfg *config.Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return newWithAPI(api, userRepo, noteSvc, digestSvc, cfg), nil
}

func newWithAPI(api botAPI, userRepo *repository.UserRepository, noteSvc *service.NoteService, digestSvc *service.DigestService, cfg *config.Config) *Bot {
	return &Bot{
		api:       api,
		userRepo:  userRepo,
		noteSvc:   noteSvc,
		digestSvc: digestSvc,
		config:    cfg,
	}
}

// Start polls updates until ctx is cancelled. Updates are handled one at a
// time, in arrival order.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("handle message: %v", err)
			}
		}
	}

	return ctx.Err()
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	switch strings.TrimSpace(msg.Text) {
	case menuLabelNotes:
		return b.handleListNotes(ctx, msg)
	case menuLabelHelp:
		return b.handleHelp(msg)
	}

	return b.sendText(msg.Chat.ID, msgNotUnderstood)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "add_note":
		return b.handleAddNote(ctx, msg)
	case "notes":
		return b.handleListNotes(ctx, msg)
	case "delete_note":
		return b.handleDeleteNote(ctx, msg)
	default:
		return b.sendText(msg.Chat.ID, msgUnknownCommand)
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	from := msg.From
	created, err := b.noteSvc.RegisterUser(ctx, from.ID, from.UserName, from.FirstName, from.LastName)
	if err != nil {
		return err
	}
	if created {
		log.Printf("[info] user registered id=%d", from.ID)
	}

	text, err := b.noteSvc.WelcomeMessage(ctx, from.ID)
	if err != nil {
		return err
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, b.noteSvc.HelpMessage())
}

func (b *Bot) handleAddNote(ctx context.Context, msg *tgbotapi.Message) error {
	text := strings.Join(strings.Fields(msg.CommandArguments()), " ")
	if text == "" {
		return b.sendText(msg.Chat.ID, msgEmptyNote)
	}

	noteID, err := b.noteSvc.AddNote(ctx, msg.From.ID, text)
	if err != nil {
		return err
	}

	log.Printf("[info] note created id=%d user=%d", noteID, msg.From.ID)
	return b.sendText(msg.Chat.ID, fmt.Sprintf(msgNoteAdded, noteID))
}

func (b *Bot) handleListNotes(ctx context.Context, msg *tgbotapi.Message) error {
	return b.sendNoteList(ctx, msg.Chat.ID, msg.From.ID)
}

func (b *Bot) handleDeleteNote(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, msgDeleteUsage)
	}

	noteID, err := strconv.ParseInt(strings.TrimPrefix(args, "#"), 10, 64)
	if err != nil || noteID <= 0 {
		return b.sendText(msg.Chat.ID, msgDeleteBadID)
	}

	deleted, err := b.noteSvc.DeleteNote(ctx, noteID, msg.From.ID)
	if err != nil {
		return err
	}
	return b.sendText(msg.Chat.ID, deleteReply(noteID, deleted))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}

	if !strings.HasPrefix(cb.Data, cbDeletePrefix) {
		return b.answerCallback(cb.ID, msgCallbackUnknown)
	}

	noteID, err := parseNoteID(cb.Data, cbDeletePrefix)
	if err != nil {
		return b.answerCallback(cb.ID, msgCallbackUnknown)
	}

	deleted, err := b.noteSvc.DeleteNote(ctx, noteID, cb.From.ID)
	if err != nil {
		return err
	}
	log.Printf("[info] delete via button note=%d user=%d deleted=%t", noteID, cb.From.ID, deleted)

	if err := b.answerCallback(cb.ID, deleteReply(noteID, deleted)); err != nil {
		return err
	}
	return b.sendNoteList(ctx, cb.Message.Chat.ID, cb.From.ID)
}

// SendDigests sends a notes summary to every registered user.
func (b *Bot) SendDigests(ctx context.Context) error {
	users, err := b.userRepo.ListAll(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	if b.config != nil && b.config.Location != nil {
		now = now.In(b.config.Location)
	}
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		text, ok, err := b.digestSvc.Summary(ctx, user, now)
		if err != nil {
			log.Printf("build digest for user %d: %v", user.UserID, err)
			continue
		}
		if !ok {
			continue
		}
		if err := b.sendText(user.UserID, text); err != nil {
			log.Printf("send digest to %d: %v", user.UserID, err)
		}
	}
	return nil
}

func (b *Bot) sendNoteList(ctx context.Context, chatID, userID int64) error {
	notes, err := b.noteSvc.GetUserNotes(ctx, userID)
	if err != nil {
		return err
	}

	text := service.FormatNotes(notes)
	if len(notes) == 0 {
		return b.sendText(chatID, text)
	}
	return b.sendWithReplyMarkup(chatID, text, deleteKeyboard(notes))
}

func (b *Bot) sendText(chatID int64, text string) error {
	return b.sendWithReplyMarkup(chatID, text, mainMenuKeyboard())
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) answerCallback(callbackID, text string) error {
	_, err := b.api.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}

func deleteReply(noteID int64, deleted bool) string {
	if deleted {
		return fmt.Sprintf(msgNoteDeleted, noteID)
	}
	return fmt.Sprintf(msgNoteNotFound, noteID)
}

func parseNoteID(data, prefix string) (int64, error) {
	raw := strings.TrimPrefix(data, prefix)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid note id %q", raw)
	}
	return id, nil
}

func deleteKeyboard(notes []model.Note) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, note := range notes {
		label := fmt.Sprintf("🗑 #%d", note.ID)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, cbDeletePrefix+strconv.FormatInt(note.ID, 10)))
		if len(row) == buttonsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNotes),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}
