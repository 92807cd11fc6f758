// Command migrate runs schema operations for the blog database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/models"

	"gorm.io/gorm"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate <up|status>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.Ping(ctx, db); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(flag.Arg(0))) {
	case "up":
		if err := database.Migrate(db.WithContext(ctx)); err != nil {
			return err
		}
		log.Println("migrations applied")
	case "status":
		for _, name := range pendingTables(db) {
			log.Printf("pending: %s", name)
		}
		log.Println("status check complete")
	default:
		return usage()
	}
	return nil
}

// pendingTables lists model tables that do not exist yet.
func pendingTables(db *gorm.DB) []string {
	var pending []string
	for _, model := range []any{&models.User{}, &models.Post{}, &models.Comment{}, &models.Like{}} {
		if !db.Migrator().HasTable(model) {
			stmt := &gorm.Statement{DB: db}
			if err := stmt.Parse(model); err == nil {
				pending = append(pending, stmt.Schema.Table)
			} else {
				pending = append(pending, fmt.Sprintf("%T", model))
			}
		}
	}
	return pending
}
