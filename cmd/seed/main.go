package main

import (
	"fmt"
	"os"
	"time"

	"github.com/oggyb/campus-match/internal/config"
	"github.com/oggyb/campus-match/internal/db"
	"github.com/oggyb/campus-match/internal/identity"
	"github.com/oggyb/campus-match/internal/logger"
)

func main() {
	// Load configuration
	cfg := config.New()
	logger.InitFromConfig(cfg)
	log := logger.L()

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	ids, err := db.SeedTestData(database)
	if err != nil {
		log.Error("failed to seed", "err", err)
		os.Exit(1)
	}

	// dev sessions for the first demo users and the moderator
	verifier := identity.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, 7*24*time.Hour)
	sessions := []identity.Identity{
		{UserID: ids[0], Email: ids[0] + "@campus.test", EmailVerified: true, Role: identity.RoleUser},
		{UserID: ids[len(ids)-1], Email: ids[len(ids)-1] + "@campus.test", EmailVerified: true, Role: identity.RoleUser},
		{UserID: db.DemoAdminID, Email: "moderator@campus.test", EmailVerified: true, Role: identity.RoleAdmin},
	}
	for _, s := range sessions {
		tok, _, err := verifier.Issue(s)
		if err != nil {
			log.Error("failed to issue dev token", "user", s.UserID, "err", err)
			os.Exit(1)
		}
		fmt.Printf("%s (%s): %s\n", s.UserID, s.Role, tok)
	}

	log.Info("seeding completed", "profiles", len(ids))
}
