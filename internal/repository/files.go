// Package repository implements catalog.Repository on top of gorm
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bitwise74/file-api/internal/catalog"
	"bitwise74/file-api/internal/model"

	"gorm.io/gorm"
)

type Files struct {
	db *gorm.DB
}

func NewFiles(db *gorm.DB) *Files {
	return &Files{db: db}
}

var _ catalog.Repository = (*Files)(nil)

func (r *Files) Insert(ctx context.Context, f *model.File) error {
	if err := r.db.WithContext(ctx).Create(f).Error; err != nil {
		return fmt.Errorf("failed to insert file, %w", err)
	}

	return nil
}

// Update writes every column of f, including zero values
func (r *Files) Update(ctx context.Context, f *model.File) error {
	res := r.db.
		WithContext(ctx).
		Model(&model.File{}).
		Where("id = ?", f.ID).
		Select("*").
		Omit("id", "uploader_id", "created_at").
		Updates(f)
	if res.Error != nil {
		return fmt.Errorf("failed to update file, %w", res.Error)
	}

	if res.RowsAffected == 0 {
		return catalog.ErrNotFound
	}

	return nil
}

func (r *Files) FindByID(ctx context.Context, id string) (*model.File, error) {
	var f model.File

	err := r.db.
		WithContext(ctx).
		Where("id = ?", id).
		First(&f).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalog.ErrNotFound
		}

		return nil, fmt.Errorf("failed to fetch file, %w", err)
	}

	return &f, nil
}

func (r *Files) FindAll(ctx context.Context, filter catalog.ListFilter) ([]model.File, error) {
	q := r.db.WithContext(ctx).Model(&model.File{})

	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.UploaderID != "" {
		q = q.Where("uploader_id = ?", filter.UploaderID)
	}
	if filter.Location != "" {
		q = q.Where("location = ?", filter.Location)
	}

	if filter.Query != "" {
		like := "%" + strings.ToLower(filter.Query) + "%"
		q = q.Where("(LOWER(title) LIKE ? OR LOWER(origin_name) LIKE ?)", like, like)
	}

	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}

	if filter.NewestFirst {
		q = q.Order("created_at desc").Order("id asc")
	} else {
		q = q.Order("id asc")
	}

	files := []model.File{}
	if err := q.Find(&files).Error; err != nil {
		return nil, fmt.Errorf("failed to list files, %w", err)
	}

	return files, nil
}
