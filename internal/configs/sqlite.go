package config

import (
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	model "taskforce-bot.com/taskforce-bot/internal/models"
)

// New opens the sqlite database and migrates the schema. TranslateError is
// required: the assignment create path relies on unique-constraint
// violations surfacing as gorm.ErrDuplicatedKey.
func New(dsn string) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	if err := db.AutoMigrate(
		&model.User{},
		&model.Task{},
		&model.Assignment{},
		&model.Comment{},
		&model.Reminder{},
	); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	return db
}
