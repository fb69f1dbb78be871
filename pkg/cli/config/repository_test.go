package config_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/osnit/pkg/cli/config"
)

func TestRepository_Configure(t *testing.T) {
	t.Run("unknown backend", func(t *testing.T) {
		cfg := config.NewRepositoryForTest("mysql", "", "")
		_, err := cfg.Configure(t.Context())
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("firestore requires project", func(t *testing.T) {
		cfg := config.NewRepositoryForTest("firestore", "", "")
		_, err := cfg.Configure(t.Context())
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("memory", func(t *testing.T) {
		cfg := config.NewRepositoryForTest("memory", "", "")
		repo, err := cfg.Configure(t.Context())
		gt.NoError(t, err).Required()
		gt.NoError(t, repo.Close())
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := config.NewRepositoryForTest("sqlite", "", t.TempDir()+"/osnit.db")
		repo, err := cfg.Configure(t.Context())
		gt.NoError(t, err).Required()
		gt.NoError(t, repo.Close())
	})
}
