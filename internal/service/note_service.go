package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"notes-bot/internal/model"
	"notes-bot/internal/repository"
)

const (
	welcomeUnregistered = "Добро пожаловать! Пожалуйста, зарегистрируйтесь с помощью команды /start."
	defaultDisplayName  = "Пользователь"
	noNotesText         = "У вас пока нет заметок"
	createdAtLayout     = "2006-01-02 15:04:05"
)

// NoteService wraps registration and note business logic.
type NoteService struct {
	userRepo *repository.UserRepository
	noteRepo *repository.NoteRepository
}

func NewNoteService(userRepo *repository.UserRepository, noteRepo *repository.NoteRepository) *NoteService {
	return &NoteService{userRepo: userRepo, noteRepo: noteRepo}
}

// RegisterUser stores the user on first contact. It returns false and leaves
// the existing row untouched when the id is already registered.
func (s *NoteService) RegisterUser(ctx context.Context, userID int64, username, firstName, lastName string) (bool, error) {
	user := model.User{
		UserID:    userID,
		Username:  optional(username),
		FirstName: optional(firstName),
		LastName:  optional(lastName),
	}
	return s.userRepo.CreateIfAbsent(ctx, &user)
}

// AddNote does not check that userID is registered.
func (s *NoteService) AddNote(ctx context.Context, userID int64, text string) (int64, error) {
	note := model.Note{UserID: userID, Text: text}
	if err := s.noteRepo.Create(ctx, &note); err != nil {
		return 0, err
	}
	return note.ID, nil
}

func (s *NoteService) GetUserNotes(ctx context.Context, userID int64) ([]model.Note, error) {
	return s.noteRepo.ListByUser(ctx, userID)
}

func (s *NoteService) DeleteNote(ctx context.Context, noteID, userID int64) (bool, error) {
	return s.noteRepo.Delete(ctx, noteID, userID)
}

// GetUser returns nil without error for an unknown id.
func (s *NoteService) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find user: %w", err)
	}
}

func (s *NoteService) WelcomeMessage(ctx context.Context, userID int64) (string, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return welcomeUnregistered, nil
	}

	name := user.DisplayName()
	if name == "" {
		name = defaultDisplayName
	}
	return fmt.Sprintf("Привет, %s! Я бот для заметок. Используй /help для списка команд.", name), nil
}

func (s *NoteService) HelpMessage() string {
	return "Доступные команды:\n" +
		"/start - начать работу с ботом\n" +
		"/help - показать это сообщение\n" +
		"/add_note <текст> - добавить заметку\n" +
		"/notes - показать все заметки\n" +
		"/delete_note <id> - удалить заметку"
}

// FormatNotes renders the /notes reply.
func FormatNotes(notes []model.Note) string {
	if len(notes) == 0 {
		return noNotesText
	}

	var builder strings.Builder
	builder.WriteString("Ваши заметки:")
	for _, note := range notes {
		builder.WriteByte('\n')
		builder.WriteString(formatNoteLine(note))
	}
	return builder.String()
}

func formatNoteLine(note model.Note) string {
	return fmt.Sprintf("#%d: %s (%s)", note.ID, note.Text, note.CreatedAt.UTC().Format(createdAtLayout))
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
