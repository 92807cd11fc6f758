// Command seed fills a development database with fake blog content.
package main

import (
	"flag"
	"log"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of users to create")
	numPosts := flag.Int("posts", 100, "Number of posts to create")
	maxComments := flag.Int("comments", 5, "Maximum comments per post")
	maxDays := flag.Int("days", 90, "Spread post dates over this many days")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Build the data without writing it")
	fast := flag.Bool("fast", false, "Skip bcrypt (users cannot log in)")
	randSeed := flag.Int64("seed", 0, "Random seed (0 uses the clock)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s, err := seed.NewSeeder(db, seed.Options{
		Users:              *numUsers,
		Posts:              *numPosts,
		MaxCommentsPerPost: *maxComments,
		MaxDays:            *maxDays,
		Clean:              *shouldClean,
		DryRun:             *dryRun,
		SkipBcrypt:         *fast,
		RandSeed:           *randSeed,
	})
	if err != nil {
		log.Fatalf("Failed to prepare seeder: %v", err)
	}

	res, err := s.Run()
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Created %d users, %d posts, %d comments, %d likes", res.Users, res.Posts, res.Comments, res.Likes)
	if !*fast {
		log.Printf("All seeded users have the password: %s", seed.DefaultPassword)
	}
}
