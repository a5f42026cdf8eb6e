package database

import (
	"fmt"
	"log"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database instance
var DB *gorm.DB

// Connect establishes a database connection. The driver is selected from the
// DSN scheme: "postgres://..." uses PostgreSQL, anything else is treated as a
// SQLite path (including ":memory:").
func Connect(dsn string, logLevel logger.LogLevel) error {
	var (
		dialector gorm.Dialector
		err       error
	)

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(strings.TrimPrefix(dsn, "sqlite://"))
	}

	DB, err = gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connection established")
	return nil
}

// AutoMigrate runs database migrations
func AutoMigrate() error {
	return Migrate(DB)
}

// Migrate runs migrations against the given database handle.
// Split out from AutoMigrate so tests can migrate an in-memory instance.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&SourceConfig{},
		&SourceHealth{},
		&AckState{},
		&SilenceRule{},
		&AppSettings{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// GetOrCreateAppSettings retrieves or creates the settings singleton.
// Accepts a db parameter to support transaction contexts and testing.
func GetOrCreateAppSettings(db *gorm.DB) (*AppSettings, error) {
	var settings AppSettings
	result := db.First(&settings)
	if result.Error == gorm.ErrRecordNotFound {
		settings = *NewDefaultAppSettings()
		if err := db.Create(&settings).Error; err != nil {
			return nil, err
		}
	} else if result.Error != nil {
		return nil, result.Error
	}
	return &settings, nil
}

// UpdateAppSettings persists the settings singleton
func UpdateAppSettings(db *gorm.DB, settings *AppSettings) error {
	return db.Save(settings).Error
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// Close closes the database connection
func Close() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
