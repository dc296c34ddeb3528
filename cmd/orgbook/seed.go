package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alecgard/orgbook/internal/auth"
	"github.com/alecgard/orgbook/internal/config"
	"github.com/alecgard/orgbook/internal/organisation"
	"github.com/alecgard/orgbook/internal/user"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed a demo user and organisation",
	RunE:  runSeed,
}

var seedPassword string

func init() {
	seedCmd.Flags().StringVar(&seedPassword, "password", "orgbook-demo", "password for the demo user")
	rootCmd.AddCommand(seedCmd)
}

var demoUser = user.RegisterInput{
	FirstName: "Demo",
	LastName:  "User",
	Email:     "demo@orgbook.local",
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	userStore := user.NewStore(pool)
	orgStore := organisation.NewStore(pool)
	tokens := auth.NewTokenService([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	users := user.NewService(userStore, tokens)
	orgs := organisation.NewService(orgStore, orgStore, userStore)

	// Check if seed has already run.
	if _, err := userStore.GetByEmail(ctx, demoUser.Email); err == nil {
		slog.Info("demo data already exists, skipping seed")
		return nil
	} else if !errors.Is(err, user.ErrNotFound) {
		return fmt.Errorf("checking demo user: %w", err)
	}

	in := demoUser
	in.Password = seedPassword
	res, err := users.Register(ctx, in)
	if err != nil {
		return fmt.Errorf("creating demo user: %w", err)
	}
	slog.Info("created demo user", "id", res.User.ID, "email", res.User.Email)

	desc := "Created by orgbook seed"
	org, err := orgs.Create(ctx, res.User.ID, organisation.CreateOrganisationInput{
		Name:        "Demo's Organisation",
		Description: &desc,
	})
	if err != nil {
		return fmt.Errorf("creating demo organisation: %w", err)
	}
	slog.Info("created demo organisation", "id", org.ID, "name", org.Name)

	fmt.Printf("\n=== Demo Data Seeded ===\n")
	fmt.Printf("User:          %s (%s)\n", res.User.Email, res.User.ID)
	fmt.Printf("Organisation:  %s (%s)\n", org.Name, org.ID)
	fmt.Printf("Access token:  %s\n", res.AccessToken)
	fmt.Printf("\nTry it:\n")
	fmt.Printf("  curl -H 'Authorization: Bearer %s' http://localhost:%d/organisations\n", res.AccessToken, cfg.Server.Port)

	return nil
}
