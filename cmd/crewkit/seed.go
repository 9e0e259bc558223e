package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/crewkit/crewkit/internal/catalog"
	"github.com/crewkit/crewkit/internal/config"
	"github.com/crewkit/crewkit/internal/user"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed an admin account and demo catalog products",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

const adminEmail = "admin@crewkit.local"

var demoProducts = []catalog.CreateProductInput{
	{
		ProductName: "Starter Pack",
		Description: "Entry bundle for new teams: base allocation at list price.",
	},
	{
		ProductName: "Growth Pack",
		Description: "Mid-tier bundle with volume discounts for growing teams.",
	},
	{
		ProductName: "Enterprise Pack",
		Description: "Large-volume bundle with negotiated pricing.",
	},
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	catalogStore := catalog.NewStore(pool)

	// Check if seed has already run.
	var adminExists bool
	err = pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, adminEmail).Scan(&adminExists)
	if err != nil {
		return fmt.Errorf("checking admin account: %w", err)
	}
	if adminExists {
		slog.Info("seed data already exists, skipping")
		return nil
	}

	for _, input := range demoProducts {
		p, err := catalogStore.Create(ctx, input)
		if err != nil {
			return fmt.Errorf("creating product %q: %w", input.ProductName, err)
		}
		slog.Info("created product", "name", p.ProductName, "id", p.ID)
	}

	password := os.Getenv("CREWKIT_ADMIN_PASSWORD")
	generated := false
	if password == "" {
		b := make([]byte, 12)
		if _, err := rand.Read(b); err != nil {
			return fmt.Errorf("generating admin password: %w", err)
		}
		password = hex.EncodeToString(b)
		generated = true
	}

	hash, err := user.HashPassword(password)
	if err != nil {
		return err
	}

	var adminID string
	err = pool.QueryRow(ctx,
		`INSERT INTO users (name, email, password_hash, number, role)
		 VALUES ('Administrator', $1, $2, '', $3)
		 RETURNING id`,
		adminEmail, hash, user.RoleAdmin,
	).Scan(&adminID)
	if err != nil {
		return fmt.Errorf("creating admin account: %w", err)
	}

	slog.Info("created admin account", "id", adminID, "email", adminEmail)
	fmt.Printf("\n=== Demo Data Seeded ===\n")
	fmt.Printf("Products:  %d registered\n", len(demoProducts))
	fmt.Printf("Admin:     %s\n", adminEmail)
	if generated {
		fmt.Printf("Password:  %s\n", password)
	}
	fmt.Printf("\nTry it:\n")
	fmt.Printf("  curl -X POST http://localhost:8080/api/v1/auth/login -d '{\"email\":\"%s\",\"password\":\"...\"}'\n", adminEmail)

	return nil
}
