package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"notes-bot/internal/model"
)

// NoteRepository handles CRUD for notes.
type NoteRepository struct {
	db *gorm.DB
}

func NewNoteRepository(db *gorm.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

func (r *NoteRepository) Create(ctx context.Context, note *model.Note) error {
	if err := r.db.WithContext(ctx).Create(note).Error; err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	return nil
}

// ListByUser returns the user's notes, newest first.
func (r *NoteRepository) ListByUser(ctx context.Context, userID int64) ([]model.Note, error) {
	notes := []model.Note{}
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

// Delete removes a note only when it belongs to userID.
func (r *NoteRepository) Delete(ctx context.Context, noteID, userID int64) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", noteID, userID).Delete(&model.Note{})
	if res.Error != nil {
		return false, fmt.Errorf("delete note: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *NoteRepository) CountByUser(ctx context.Context, userID int64) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Note{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count notes: %w", err)
	}
	return count, nil
}
