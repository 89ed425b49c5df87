package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/open-syllabus/open-syllabus-sub001/internal/testutil"
)

func TestPodcastRepository_GetByKey(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewPodcastRepository(db)
	cached := testutil.TestPodcast(t, db, "guide_1", "nova", 1.0)

	t.Run("hit on the exact rendition key", func(t *testing.T) {
		found, err := repo.GetByKey("guide_1", "nova", 1.0)
		require.NoError(t, err)
		assert.Equal(t, cached.ID, found.ID)
		assert.Equal(t, cached.AudioURL, found.AudioURL)
	})

	t.Run("other voice misses", func(t *testing.T) {
		_, err := repo.GetByKey("guide_1", "onyx", 1.0)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("other speed misses", func(t *testing.T) {
		_, err := repo.GetByKey("guide_1", "nova", 1.5)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("other guide misses", func(t *testing.T) {
		_, err := repo.GetByKey("guide_2", "nova", 1.0)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}
