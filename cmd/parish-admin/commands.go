package main

import (
	"fmt"
	"io"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/stbhakita/parish/internal/auth"
	"github.com/stbhakita/parish/internal/config"
	"github.com/stbhakita/parish/internal/db"
	"github.com/stbhakita/parish/internal/db/repository"
	"github.com/stbhakita/parish/internal/logging"
	"github.com/stbhakita/parish/internal/models"
)

// cli holds flag values and the opened store for one invocation
type cli struct {
	configPath string

	cfg      *config.Config
	database *db.DB
	users    *repository.UserRepository
	tokens   *repository.TokenRepository
	audit    *repository.AuditRepository
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "parish-admin",
		Short:         "Parish server administration tool",
		Long:          "Administrative tool for managing parish users, session tokens and audit logs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Config file path")

	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	userCmd.AddCommand(c.userCreateCmd(), c.userListCmd())

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage session tokens",
	}
	tokenCmd.AddCommand(c.tokenPurgeCmd())

	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit log",
	}
	auditCmd.AddCommand(c.auditListCmd())

	root.AddCommand(userCmd, tokenCmd, auditCmd)
	return root
}

func (c *cli) open() error {
	_ = godotenv.Load()

	cfg, err := config.LoadWithEnv(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	c.cfg = cfg

	logging.Init(logging.Config{Level: "warn", Format: "text"})

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.RunMigrations(database); err != nil {
		database.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	c.database = database
	c.users = repository.NewUserRepository(database.DB)
	c.tokens = repository.NewTokenRepository(database.DB)
	c.audit = repository.NewAuditRepository(database.DB)
	return nil
}

func (c *cli) close() {
	if c.database != nil {
		c.database.Close()
	}
}

func (c *cli) service() (*auth.Service, error) {
	return auth.NewService(c.users, c.tokens,
		auth.WithTokenTTL(c.cfg.GetTokenTTLDuration()),
		auth.WithBcryptCost(c.cfg.Auth.BcryptCost),
	)
}

func (c *cli) userCreateCmd() *cobra.Command {
	var username, email, password, role string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.open(); err != nil {
				return err
			}
			defer c.close()

			svc, err := c.service()
			if err != nil {
				return err
			}

			user, err := svc.CreateUser(cmd.Context(), username, email, password, role)
			if err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "User created successfully!\n")
			fmt.Fprintf(out, "User ID:  %d\n", user.ID)
			fmt.Fprintf(out, "Username: %s\n", user.Username)
			fmt.Fprintf(out, "Email:    %s\n", user.Email)
			fmt.Fprintf(out, "Role:     %s\n", user.Role)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (required)")
	cmd.Flags().StringVarP(&email, "email", "e", "", "Email (required)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (required)")
	cmd.Flags().StringVar(&role, "role", models.RoleUser, "Role: admin or user")

	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func (c *cli) userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all users",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.open(); err != nil {
				return err
			}
			defer c.close()

			users, err := c.users.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list users: %w", err)
			}

			sessions := make(map[int64]int, len(users))
			now := time.Now()
			for _, u := range users {
				n, err := c.tokens.CountActiveByUserID(cmd.Context(), u.ID, now)
				if err != nil {
					return fmt.Errorf("failed to count sessions: %w", err)
				}
				sessions[u.ID] = n
			}

			printUsers(cmd.OutOrStdout(), users, sessions)
			return nil
		},
	}
}

func printUsers(out io.Writer, users []*models.User, sessions map[int64]int) {
	if len(users) == 0 {
		fmt.Fprintln(out, "No users found")
		return
	}

	fmt.Fprintf(out, "\nTotal users: %d\n\n", len(users))
	fmt.Fprintf(out, "%-5s %-20s %-30s %-6s %-9s %s\n", "ID", "Username", "Email", "Role", "Sessions", "Created")
	fmt.Fprintln(out, "--------------------------------------------------------------------------------")

	for _, user := range users {
		fmt.Fprintf(out, "%-5d %-20s %-30s %-6s %-9d %s\n",
			user.ID,
			user.Username,
			user.Email,
			user.Role,
			sessions[user.ID],
			user.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}
}

func (c *cli) tokenPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired session tokens now",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.open(); err != nil {
				return err
			}
			defer c.close()

			svc, err := c.service()
			if err != nil {
				return err
			}

			n, err := svc.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d expired token(s)\n", n)
			return nil
		},
	}
}

func (c *cli) auditListCmd() *cobra.Command {
	var action string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent audit events",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			if err := c.open(); err != nil {
				return err
			}
			defer c.close()

			logs, err := c.audit.List(cmd.Context(), action, limit)
			if err != nil {
				return fmt.Errorf("failed to list audit logs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(logs) == 0 {
				fmt.Fprintln(out, "No audit events found")
				return nil
			}

			fmt.Fprintf(out, "%-20s %-13s %-30s %-15s %s\n", "Time", "Action", "Username", "Client IP", "Result")
			for _, l := range logs {
				result := "ok"
				if !l.Success {
					result = "failed"
					if l.ErrorMsg != "" {
						result += ": " + l.ErrorMsg
					}
				}
				fmt.Fprintf(out, "%-20s %-13s %-30s %-15s %s\n",
					l.Timestamp.Format("2006-01-02 15:04:05"),
					l.Action,
					l.Username,
					l.ClientIP,
					result,
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&action, "action", "", "Filter by action (login, login_failed, register, logout)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of events")

	return cmd
}
