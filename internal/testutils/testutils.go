package testutils

import (
	"fmt"
	"testing"

	"content-market/internal/database"
	"content-market/pkg/logging"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens an isolated in-memory SQLite database with the real schema.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open("", dsn, logger.Silent)
	if err != nil {
		t.Fatalf("open test database: %s", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test database: %s", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// SetupTestStore returns a store over a fresh test database.
func SetupTestStore(t *testing.T) *database.Store {
	t.Helper()
	return database.NewStore(SetupTestDB(t))
}

func SetupTestRouter() *gin.Engine {
	return gin.New()
}

func InitTestMain() {
	gin.SetMode(gin.TestMode)
	logging.Silence()
}
