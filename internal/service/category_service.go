package service

import (
	"context"
	"fmt"
	"strings"

	"reminder-bot/internal/model"
	"reminder-bot/internal/repository"
)

// CategoryService provides helpers around categories.
type CategoryService struct {
	repo *repository.CategoryRepository
}

func NewCategoryService(repo *repository.CategoryRepository) *CategoryService {
	return &CategoryService{repo: repo}
}

func (s *CategoryService) List(ctx context.Context, user *model.User) ([]model.Category, error) {
	return s.repo.ListByUser(ctx, user.ID)
}

func (s *CategoryService) Get(ctx context.Context, user *model.User, categoryID uint) (*model.Category, error) {
	return s.repo.FindByID(ctx, user.ID, categoryID)
}

// GetOrCreate reuses an existing category with the same name instead of
// creating a duplicate.
func (s *CategoryService) GetOrCreate(ctx context.Context, user *model.User, name string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("category name is required")
	}
	return s.repo.GetOrCreate(ctx, user.ID, name)
}

func (s *CategoryService) Rename(ctx context.Context, user *model.User, categoryID uint, name string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("category name is required")
	}
	category, err := s.repo.FindByID(ctx, user.ID, categoryID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Rename(ctx, category, name); err != nil {
		return nil, err
	}
	return category, nil
}

// Delete detaches the category from all referencing tasks, then removes it.
// Tasks keep firing, just without a category.
func (s *CategoryService) Delete(ctx context.Context, user *model.User, categoryID uint) error {
	category, err := s.repo.FindByID(ctx, user.ID, categoryID)
	if err != nil {
		return err
	}
	return s.repo.DeleteAndDetach(ctx, category.ID)
}
