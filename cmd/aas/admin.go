package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Surfinbird-star/aas2/internal/auth"
	"github.com/Surfinbird-star/aas2/internal/model"
	"github.com/Surfinbird-star/aas2/internal/store"
)

// defaultAdminEmail is used when serve creates a fresh database.
const defaultAdminEmail = "admin@localhost"

var adminEmail string

var revokeAdmin bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database and an administrator account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closeLog, err := loadConfig()
		if err != nil {
			return err
		}
		defer closeLog()

		path := cfg.Database.Path
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("database %s already exists", path)
		}

		database, err := openDatabase(cmd.Context(), path)
		if err != nil {
			return err
		}
		defer database.Close()

		password, err := createAdmin(cmd.Context(), database, adminEmail)
		if err != nil {
			database.Close()
			os.Remove(path)
			return err
		}

		printInitResult(path, adminEmail, password)
		return nil
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote <email>",
	Short: "Grant or revoke administrator rights",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closeLog, err := loadConfig()
		if err != nil {
			return err
		}
		defer closeLog()

		ctx := cmd.Context()
		database, err := openDatabase(ctx, cfg.Database.Path)
		if err != nil {
			return err
		}
		defer database.Close()

		email := strings.ToLower(strings.TrimSpace(args[0]))
		profile, err := store.GetProfileByEmail(ctx, database, email)
		if err != nil {
			return err
		}
		if profile == nil {
			return fmt.Errorf("no account with email %s", email)
		}

		if err := store.SetAdmin(ctx, database, profile.ID, !revokeAdmin); err != nil {
			return err
		}

		slog.Info("admin flag changed", "user_id", profile.ID, "email", email, "is_admin", !revokeAdmin)
		if revokeAdmin {
			fmt.Printf("%s is no longer an administrator.\n", email)
		} else {
			fmt.Printf("%s is now an administrator.\n", email)
		}
		fmt.Println("Running servers pick up the change once their admin cache expires.")
		return nil
	},
}

func init() {
	initCmd.Flags().StringVarP(&adminEmail, "email", "e", defaultAdminEmail, "administrator email")
	promoteCmd.Flags().BoolVar(&revokeAdmin, "revoke", false, "remove administrator rights instead")
}

// createAdmin inserts an administrator with a generated password and returns
// the password.
func createAdmin(ctx context.Context, database *sql.DB, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", errors.New("admin email is required")
	}

	password, err := auth.GeneratePassword(16)
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	in := model.ProfileInput{FirstName: "Администратор", Email: email}
	if _, err := store.CreateProfile(ctx, database, "", in, hash, true); err != nil {
		return "", fmt.Errorf("creating admin account: %w", err)
	}
	return password, nil
}

// printInitResult prints the database initialization result to stdout.
func printInitResult(dbPath, email, password string) {
	fmt.Printf("Database created: %s\n", dbPath)
	fmt.Println("Schema migrated.")
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Email:    %s\n", email)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
}
