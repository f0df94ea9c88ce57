package bot

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"notes-bot/internal/config"
	"notes-bot/internal/repository"
	"notes-bot/internal/service"
)

// fakeAPI records everything the bot sends instead of calling Telegram.
type fakeAPI struct {
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	updates  chan tgbotapi.Update
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) lastMessage(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatal("nothing was sent")
	}
	msg, ok := f.sent[len(f.sent)-1].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("unexpected chattable %T", f.sent[len(f.sent)-1])
	}
	return msg
}

func (f *fakeAPI) lastText(t *testing.T) string {
	t.Helper()
	return f.lastMessage(t).Text
}

type testEnv struct {
	bot   *Bot
	api   *fakeAPI
	notes *service.NoteService
	users *repository.UserRepository
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	userRepo := repository.NewUserRepository(db)
	noteRepo := repository.NewNoteRepository(db)
	noteSvc := service.NewNoteService(userRepo, noteRepo)
	api := &fakeAPI{}
	cfg := &config.Config{Location: time.UTC}

	return testEnv{
		bot:   newWithAPI(api, userRepo, noteSvc, service.NewDigestService(noteRepo), cfg),
		api:   api,
		notes: noteSvc,
		users: userRepo,
	}
}

func privateMessage(userID int64, text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		Text: text,
		From: &tgbotapi.User{ID: userID, FirstName: "Ann", UserName: "ann"},
		Chat: &tgbotapi.Chat{ID: userID, Type: "private"},
	}
	if strings.HasPrefix(text, "/") {
		cmdLen := len(text)
		if i := strings.IndexByte(text, ' '); i >= 0 {
			cmdLen = i
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}}
	}
	return msg
}

func (e testEnv) send(t *testing.T, userID int64, text string) string {
	t.Helper()
	if err := e.bot.handleMessage(context.Background(), privateMessage(userID, text)); err != nil {
		t.Fatalf("handle %q: %v", text, err)
	}
	return e.api.lastText(t)
}

func TestStartRegistersOnce(t *testing.T) {
	env := newTestEnv(t)

	reply := env.send(t, 42, "/start")
	if reply != "Привет, Ann! Я бот для заметок. Используй /help для списка команд." {
		t.Errorf("unexpected welcome: %q", reply)
	}
	env.send(t, 42, "/start")

	users, err := env.users.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("got %d users, want 1", len(users))
	}
}

func TestHelpCommandAndAlias(t *testing.T) {
	env := newTestEnv(t)

	want := env.notes.HelpMessage()
	if got := env.send(t, 1, "/help"); got != want {
		t.Errorf("/help: got %q", got)
	}
	if got := env.send(t, 1, menuLabelHelp); got != want {
		t.Errorf("menu alias: got %q", got)
	}
}

func TestAddNoteRejectsEmptyText(t *testing.T) {
	env := newTestEnv(t)

	for _, text := range []string{"/add_note", "/add_note    "} {
		if got := env.send(t, 42, text); got != msgEmptyNote {
			t.Errorf("%q: got %q", text, got)
		}
	}

	notes, err := env.notes.GetUserNotes(context.Background(), 42)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(notes) != 0 {
		t.Fatalf("empty note was stored: %+v", notes)
	}
}

func TestAddAndListNotes(t *testing.T) {
	env := newTestEnv(t)

	if got := env.send(t, 42, "/notes"); got != "У вас пока нет заметок" {
		t.Errorf("empty list: got %q", got)
	}

	if got := env.send(t, 42, "/add_note buy   milk"); got != "Заметка #1 добавлена!" {
		t.Errorf("add: got %q", got)
	}

	list := env.send(t, 42, "/notes")
	if !strings.HasPrefix(list, "Ваши заметки:\n#1: buy milk (") {
		t.Errorf("list: got %q", list)
	}

	markup, ok := env.api.lastMessage(t).ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("expected inline keyboard, got %T", env.api.lastMessage(t).ReplyMarkup)
	}
	button := markup.InlineKeyboard[0][0]
	if button.CallbackData == nil || *button.CallbackData != "delete:1" {
		t.Errorf("unexpected button data: %v", button.CallbackData)
	}

	if got := env.send(t, 42, menuLabelNotes); got != list {
		t.Errorf("menu alias: got %q", got)
	}
}

func TestDeleteNoteCommand(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, 42, "/add_note secret plan")

	cases := []struct {
		user int64
		text string
		want string
	}{
		{user: 42, text: "/delete_note", want: msgDeleteUsage},
		{user: 42, text: "/delete_note abc", want: msgDeleteBadID},
		{user: 7, text: "/delete_note 1", want: "Заметка #1 не найдена."},
		{user: 42, text: "/delete_note 99", want: "Заметка #99 не найдена."},
		{user: 42, text: "/delete_note 1", want: "Заметка #1 удалена."},
		{user: 42, text: "/delete_note 1", want: "Заметка #1 не найдена."},
	}
	for _, tc := range cases {
		if got := env.send(t, tc.user, tc.text); got != tc.want {
			t.Errorf("user %d %q: got %q, want %q", tc.user, tc.text, got, tc.want)
		}
	}
}

func TestDeleteViaCallback(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, 42, "/add_note first")
	env.send(t, 42, "/add_note second")

	cb := &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: 42},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42, Type: "private"}},
		Data:    "delete:1",
	}
	if err := env.bot.handleCallback(context.Background(), cb); err != nil {
		t.Fatalf("callback: %v", err)
	}

	if len(env.api.requests) != 1 {
		t.Fatalf("got %d callback answers, want 1", len(env.api.requests))
	}
	answer, ok := env.api.requests[0].(tgbotapi.CallbackConfig)
	if !ok || answer.CallbackQueryID != "cb-1" || answer.Text != "Заметка #1 удалена." {
		t.Errorf("unexpected answer: %+v", env.api.requests[0])
	}

	list := env.api.lastText(t)
	if strings.Contains(list, "#1: first") || !strings.Contains(list, "#2: second") {
		t.Errorf("list not refreshed: %q", list)
	}
}

func TestCallbackFromAnotherUser(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, 42, "/add_note mine")

	cb := &tgbotapi.CallbackQuery{
		ID:      "cb-2",
		From:    &tgbotapi.User{ID: 7},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 7, Type: "private"}},
		Data:    "delete:1",
	}
	if err := env.bot.handleCallback(context.Background(), cb); err != nil {
		t.Fatalf("callback: %v", err)
	}

	notes, _ := env.notes.GetUserNotes(context.Background(), 42)
	if len(notes) != 1 {
		t.Fatalf("note of user 42 was removed")
	}
}

func TestCallbackWithBadData(t *testing.T) {
	env := newTestEnv(t)

	for _, data := range []string{"delete:x", "complete:1"} {
		cb := &tgbotapi.CallbackQuery{
			ID:      data,
			From:    &tgbotapi.User{ID: 1},
			Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1, Type: "private"}},
			Data:    data,
		}
		if err := env.bot.handleCallback(context.Background(), cb); err != nil {
			t.Fatalf("%q: %v", data, err)
		}
	}
	if len(env.api.requests) != 2 || len(env.api.sent) != 0 {
		t.Errorf("requests=%d sent=%d", len(env.api.requests), len(env.api.sent))
	}
}

func TestUnknownInput(t *testing.T) {
	env := newTestEnv(t)

	if got := env.send(t, 1, "/complete 3"); got != msgUnknownCommand {
		t.Errorf("unknown command: got %q", got)
	}
	if got := env.send(t, 1, "hello"); got != msgNotUnderstood {
		t.Errorf("free text: got %q", got)
	}
}

func TestStartLoopSkipsGroupChats(t *testing.T) {
	env := newTestEnv(t)
	env.api.updates = make(chan tgbotapi.Update, 3)

	group := privateMessage(5, "/add_note from group")
	group.Chat = &tgbotapi.Chat{ID: -100, Type: "group"}
	env.api.updates <- tgbotapi.Update{UpdateID: 1, Message: group}
	env.api.updates <- tgbotapi.Update{UpdateID: 2, Message: privateMessage(5, "/add_note from private")}
	env.api.updates <- tgbotapi.Update{UpdateID: 3, Message: privateMessage(5, "/notes")}
	close(env.api.updates)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := env.bot.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	if len(env.api.sent) != 2 {
		t.Fatalf("got %d replies, want 2", len(env.api.sent))
	}
	list := env.api.lastText(t)
	if !strings.Contains(list, "#1: from private") || strings.Contains(list, "from group") {
		t.Errorf("unexpected list: %q", list)
	}
}

func TestSendDigests(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, 1, "/start")
	env.send(t, 2, "/start")
	env.send(t, 2, "/add_note water plants")
	env.api.sent = nil

	if err := env.bot.SendDigests(context.Background()); err != nil {
		t.Fatalf("digests: %v", err)
	}

	if len(env.api.sent) != 1 {
		t.Fatalf("got %d digests, want 1", len(env.api.sent))
	}
	msg := env.api.lastMessage(t)
	if msg.ChatID != 2 {
		t.Errorf("digest sent to %d, want 2", msg.ChatID)
	}
	if !strings.Contains(msg.Text, "#1: water plants") {
		t.Errorf("digest text: %q", msg.Text)
	}
}

func TestParseNoteID(t *testing.T) {
	if id, err := parseNoteID("delete:15", cbDeletePrefix); err != nil || id != 15 {
		t.Errorf("got %d, %v", id, err)
	}
	for _, data := range []string{"delete:", "delete:-1", "delete:0", "delete:1a"} {
		if _, err := parseNoteID(data, cbDeletePrefix); err == nil {
			t.Errorf("%q: expected error", data)
		}
	}
}
