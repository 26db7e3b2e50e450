package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reminder-bot/internal/model"
	"reminder-bot/internal/repository"
)

func newTestNotifier(t *testing.T, storeTimeout time.Duration) (*Notifier, *repository.CategoryRepository) {
	t.Helper()

	db, err := repository.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	categoryRepo := repository.NewCategoryRepository(db)
	return NewNotifier(nil, categoryRepo, storeTimeout, zap.NewNop()), categoryRepo
}

func TestCategoryNameResolves(t *testing.T) {
	n, categories := newTestNotifier(t, time.Second)

	category, err := categories.GetOrCreate(context.Background(), 1, "Дом")
	require.NoError(t, err)

	task := model.Task{ID: 7, CategoryID: &category.ID, Title: "полить цветы"}
	assert.Equal(t, "Дом", n.categoryName(task))
}

func TestCategoryNameDegradesGracefully(t *testing.T) {
	n, _ := newTestNotifier(t, time.Second)

	// No category on the task at all.
	assert.Empty(t, n.categoryName(model.Task{ID: 7}))

	// A dangling reference degrades the message instead of blocking it.
	missing := uint(999)
	assert.Empty(t, n.categoryName(model.Task{ID: 7, CategoryID: &missing}))
}

func TestCategoryNameHonorsStoreTimeout(t *testing.T) {
	n, categories := newTestNotifier(t, -time.Second)

	category, err := categories.GetOrCreate(context.Background(), 1, "Дом")
	require.NoError(t, err)

	// An already-expired deadline means the lookup fails and the name is
	// dropped rather than the reminder stalling.
	task := model.Task{ID: 7, CategoryID: &category.ID}
	assert.Empty(t, n.categoryName(task))
}
