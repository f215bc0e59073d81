package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/secsim/phishportal/internal/auth"
	"github.com/secsim/phishportal/internal/config"
	"github.com/secsim/phishportal/internal/db"
	"github.com/secsim/phishportal/internal/models"
	"github.com/secsim/phishportal/internal/repository"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "User management commands",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user",
	RunE:  runUserCreate,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	RunE:  runUserList,
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete [username]",
	Short: "Delete a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserDelete,
}

var userResetPasswordCmd = &cobra.Command{
	Use:   "reset-password [username]",
	Short: "Reset user password",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserResetPassword,
}

var (
	userUsername string
	userEmail    string
	userPassword string
	userRole     string
)

func init() {
	userCreateCmd.Flags().StringVar(&userUsername, "username", "", "Login name")
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "User email")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "User password (will prompt if not provided)")
	userCreateCmd.Flags().StringVar(&userRole, "role", models.RoleViewer, "Role: ADMIN, INSTRUCTOR or VIEWER")
	userCreateCmd.MarkFlagRequired("username")
	userCreateCmd.MarkFlagRequired("email")

	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userDeleteCmd)
	userCmd.AddCommand(userResetPasswordCmd)

	userCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/phishportal/config.yaml", "Path to configuration file")
}

func openUserRepo() (*db.DB, *repository.UserRepository, *config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, nil, err
	}
	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, err
	}
	return database, repository.NewUserRepository(database.DB), cfg, nil
}

func promptPassword() (string, error) {
	fmt.Print("Enter password: ")
	pwBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println()

	fmt.Print("Confirm password: ")
	pwBytes2, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println()

	if string(pwBytes) != string(pwBytes2) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(pwBytes), nil
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	database, users, cfg, err := openUserRepo()
	if err != nil {
		return err
	}
	defer database.Close()

	role := strings.ToUpper(userRole)
	if !models.ValidRole(role) {
		return fmt.Errorf("invalid role %q (want ADMIN, INSTRUCTOR or VIEWER)", userRole)
	}

	password := userPassword
	if password == "" {
		password, err = promptPassword()
		if err != nil {
			return err
		}
	}
	if len(password) < cfg.Auth.MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters", cfg.Auth.MinPasswordLen)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	u := &models.User{
		Username:     userUsername,
		Email:        userEmail,
		PasswordHash: hash,
		Role:         role,
	}
	if err := users.Create(u); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("user %s already exists", userUsername)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("User %s (%s) created successfully\n", u.Username, u.Role)
	return nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	database, users, _, err := openUserRepo()
	if err != nil {
		return err
	}
	defer database.Close()

	list, err := users.List()
	if err != nil {
		return err
	}

	fmt.Printf("%-36s  %-20s  %-30s  %-10s  %s\n", "ID", "Username", "Email", "Role", "Created")
	fmt.Println(strings.Repeat("-", 110))
	for _, u := range list {
		fmt.Printf("%-36s  %-20s  %-30s  %-10s  %s\n",
			u.ID, u.Username, u.Email, u.Role, u.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runUserDelete(cmd *cobra.Command, args []string) error {
	username := args[0]

	database, users, _, err := openUserRepo()
	if err != nil {
		return err
	}
	defer database.Close()

	fmt.Printf("Are you sure you want to delete user %s? [y/N]: ", username)
	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	if response != "y" && response != "yes" {
		fmt.Println("Cancelled")
		return nil
	}

	if err := users.Delete(username); err != nil {
		return err
	}
	fmt.Printf("User %s deleted\n", username)
	return nil
}

func runUserResetPassword(cmd *cobra.Command, args []string) error {
	username := args[0]

	database, users, cfg, err := openUserRepo()
	if err != nil {
		return err
	}
	defer database.Close()

	u, err := users.GetByUsername(username)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("user %s not found", username)
	}

	password, err := promptPassword()
	if err != nil {
		return err
	}
	if len(password) < cfg.Auth.MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters", cfg.Auth.MinPasswordLen)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := users.UpdatePassword(u.ID, hash); err != nil {
		return err
	}

	fmt.Printf("Password for %s updated\n", username)
	return nil
}
