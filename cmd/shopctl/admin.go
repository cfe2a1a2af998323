package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/Skotchmaster/game_store/internal/models"
	"github.com/Skotchmaster/game_store/internal/repo"
	"github.com/Skotchmaster/game_store/internal/search"
	"github.com/Skotchmaster/game_store/internal/service"
	"github.com/Skotchmaster/game_store/internal/transport"
	"github.com/Skotchmaster/game_store/pkg/config"
	pkgdb "github.com/Skotchmaster/game_store/pkg/db"
	"github.com/Skotchmaster/game_store/pkg/events"
)

func openDB(ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	db, err := pkgdb.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.DBAutoMigrate {
		if err := models.AutoMigrate(db); err != nil {
			_ = pkgdb.Close(db)
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}
	return db, nil
}

func createAdminCmd() *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Long: `Create an administrator account.

The password is read from --password or ADMIN_PASSWORD.

Examples:
  shopctl create-admin --email admin@shop.com --name Admin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("ADMIN_PASSWORD")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			cfg := config.Load()
			db, err := openDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer pkgdb.Close(db)

			svc := &service.AuthService{Repo: &repo.GormRepo{DB: db}, Events: events.Nop{}}
			user, err := svc.Register(ctx, transport.RegisterRequest{
				Name:     name,
				Email:    email,
				Password: password,
				Role:     string(models.RoleAdmin),
			}, string(models.RoleAdmin))
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "admin %s created with id %d\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "Admin", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "login password")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func reindexCmd() *cobra.Command {
	var batch int

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the product search index from the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.ESURL == "" {
				return fmt.Errorf("ES_URL is empty")
			}

			ctx := cmd.Context()
			db, err := openDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer pkgdb.Close(db)

			es, err := search.NewClient(ctx, cfg.ESURL, cfg.ESUser, cfg.ESPassword)
			if err != nil {
				return err
			}
			idx := search.NewIndex(es, cfg.ESIndex)
			if err := idx.EnsureIndex(ctx); err != nil {
				return err
			}

			svc := &service.CatalogService{Repo: &repo.GormRepo{DB: db}, Events: events.Nop{}, Index: idx}
			n, err := svc.Reindex(ctx, batch)
			if err != nil {
				return fmt.Errorf("reindex after %d products: %w", n, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d products into %s\n", n, cfg.ESIndex)
			return nil
		},
	}

	cmd.Flags().IntVar(&batch, "batch", 100, "products per page")

	return cmd
}
