package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"notes-bot/internal/model"
	"notes-bot/internal/repository"
)

const digestLimit = 10

// DigestService builds the periodic reminder of a user's latest notes.
type DigestService struct {
	noteRepo *repository.NoteRepository
}

func NewDigestService(noteRepo *repository.NoteRepository) *DigestService {
	return &DigestService{noteRepo: noteRepo}
}

// Summary returns false when the user has nothing to be reminded about.
func (s *DigestService) Summary(ctx context.Context, user model.User, now time.Time) (string, bool, error) {
	total, err := s.noteRepo.CountByUser(ctx, user.UserID)
	if err != nil {
		return "", false, err
	}
	if total == 0 {
		return "", false, nil
	}

	notes, err := s.noteRepo.ListByUser(ctx, user.UserID)
	if err != nil {
		return "", false, err
	}

	var builder strings.Builder
	builder.WriteString("🗒 Сводка заметок\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n", now.Format("02.01.2006")))
	builder.WriteString(fmt.Sprintf("Всего заметок: %d\n", total))

	shown := notes
	if len(shown) > digestLimit {
		shown = shown[:digestLimit]
		builder.WriteString(fmt.Sprintf("Последние %d:\n", digestLimit))
	}
	builder.WriteByte('\n')
	for _, note := range shown {
		builder.WriteString(formatNoteLine(note))
		builder.WriteByte('\n')
	}

	return strings.TrimSpace(builder.String()), true, nil
}
