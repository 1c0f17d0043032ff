package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedShop(t, db, "shop1")

	storagePath := filepath.Join(t.TempDir(), "backups")
	cfg := config.BackupConfig{Enabled: true, StoragePath: storagePath, RetentionDays: 1}
	logger := zerolog.Nop()
	s := NewBackupService(db, cfg, &logger)

	t.Run("PerformBackup", func(t *testing.T) {
		path, err := s.PerformBackup(ctx)
		require.NoError(t, err)
		assert.FileExists(t, path)

		restored, err := NewDB(path, &logger)
		require.NoError(t, err)
		defer restored.Close()

		shop, err := restored.GetShop(ctx, "shop1")
		require.NoError(t, err)
		assert.Equal(t, "Barbearia shop1", shop.Name)
	})

	t.Run("CleanupOldBackups", func(t *testing.T) {
		oldFile := filepath.Join(storagePath, backupPrefix+"old.db")
		require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
		unrelated := filepath.Join(storagePath, "notes.txt")
		require.NoError(t, os.WriteFile(unrelated, []byte("keep"), 0o644))

		oldTime := time.Now().AddDate(0, 0, -2)
		require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))
		require.NoError(t, os.Chtimes(unrelated, oldTime, oldTime))

		s.CleanupOldBackups()

		assert.NoFileExists(t, oldFile)
		assert.FileExists(t, unrelated)
	})
}

func TestBackupService_Disabled(t *testing.T) {
	logger := zerolog.Nop()
	s := NewBackupService(nil, config.BackupConfig{Enabled: false}, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NotPanics(t, func() { s.Start(ctx) })
}
