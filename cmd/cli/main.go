package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/content-aggregator/internal/ai"
	"github.com/content-aggregator/internal/config"
	"github.com/content-aggregator/internal/export"
	"github.com/content-aggregator/internal/fetch"
	"github.com/content-aggregator/internal/models"
	"github.com/content-aggregator/internal/platform"
	"github.com/content-aggregator/internal/platform/github"
	"github.com/content-aggregator/internal/platform/medium"
	"github.com/content-aggregator/internal/platform/reddit"
	"github.com/content-aggregator/internal/platform/zsxq"
	"github.com/content-aggregator/internal/scheduler"
	"github.com/content-aggregator/internal/storage"
	"github.com/content-aggregator/internal/storage/sqlite"
	"github.com/content-aggregator/internal/task"
	"github.com/content-aggregator/internal/users"
	"github.com/content-aggregator/pkg/logger"
	"github.com/content-aggregator/pkg/ratelimit"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
	repo    storage.Repository
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "aggregator",
		Short: "Multi-platform content aggregator",
		Long: `Tracks users across content platforms (GitHub, Reddit, Medium, ZSXQ)
and aggregates everything they publish into one local store.`,
		PersistentPreRunE: initializeApp,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(platformsCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(tasksCmd())
	rootCmd.AddCommand(contentsCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(scheduleCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initializeApp(cmd *cobra.Command, args []string) error {
	var err error

	// Load config
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	repo, err = sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Run migrations
	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func buildRegistry() *platform.Registry {
	limiter := ratelimit.NewDefaultLimiter()
	return platform.NewRegistry(log,
		github.New(limiter, log),
		reddit.New(limiter, log),
		medium.New(limiter, log),
		zsxq.New(limiter, log),
	)
}

func buildOrchestrator(registry *platform.Registry) *fetch.Orchestrator {
	tracker := task.NewTracker(repo, log)
	return fetch.NewOrchestrator(repo, registry, tracker, fetch.Options{
		PageSize:      cfg.Fetch.PageSize,
		MaxPages:      cfg.Fetch.MaxPages,
		RunTimeout:    cfg.Fetch.RunTimeout,
		RetryAttempts: cfg.Fetch.RetryAttempts,
		RetryBackoff:  cfg.Fetch.RetryBackoff,
		Workers:       cfg.Fetch.Workers,
	}, log)
}

// parseKV turns key=value pairs into a platform config bag
func parseKV(pairs []string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config pair %q, expected key=value", pair)
		}
		out[parts[0]] = parts[1]
	}
	return out, nil
}

// ============ PLATFORM COMMANDS ============

func platformsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "platforms",
		Short: "Platform management commands",
	}

	cmd.AddCommand(platformsAddCmd())
	cmd.AddCommand(platformsListCmd())
	cmd.AddCommand(platformsTestCmd())
	return cmd
}

func platformsAddCmd() *cobra.Command {
	var name, platformType string
	var configPairs []string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a platform instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			registry := buildRegistry()
			if !registry.IsSupported(platformType) {
				return fmt.Errorf("unsupported platform type %q (supported: %s)",
					platformType, strings.Join(registry.SupportedTypes(), ", "))
			}

			platConfig, err := parseKV(configPairs)
			if err != nil {
				return err
			}

			p := &models.Platform{
				Name:   name,
				Type:   platformType,
				Config: models.JSON(platConfig),
				Status: models.PlatformStatusActive,
			}
			if err := repo.CreatePlatform(ctx, p); err != nil {
				return err
			}

			fmt.Printf("Platform %s (%s) registered with ID %s\n", p.Name, p.Type, p.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Unique platform instance name")
	cmd.Flags().StringVar(&platformType, "type", "", "Platform type (github, reddit, medium, zsxq)")
	cmd.Flags().StringSliceVar(&configPairs, "set", nil, "Platform config as key=value (repeatable)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("type")
	return cmd
}

func platformsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered platforms",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			platforms, err := repo.ListPlatforms(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Platforms (%d) ===\n", len(platforms))
			for _, p := range platforms {
				fmt.Printf("%s  %-10s %-20s %s\n", p.ID, p.Type, p.Name, p.Status)
			}
			return nil
		},
	}
}

func platformsTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test <platform-name>",
		Short: "Test connectivity for a platform",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			p, err := repo.GetPlatformByName(ctx, args[0])
			if err != nil {
				return err
			}
			registry := buildRegistry()
			adapter, err := registry.Resolve(p.Type)
			if err != nil {
				return err
			}

			if err := adapter.TestConnection(ctx, map[string]interface{}(p.Config)); err != nil {
				fmt.Printf("Connection FAILED: %v\n", err)
				return err
			}
			fmt.Println("Connection OK")
			return nil
		},
	}
}

// ============ USER COMMANDS ============

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Tracked user management commands",
	}

	cmd.AddCommand(usersAddCmd())
	cmd.AddCommand(usersListCmd())
	cmd.AddCommand(usersActivateCmd(true))
	cmd.AddCommand(usersActivateCmd(false))
	cmd.AddCommand(usersRemoveCmd())
	return cmd
}

func usersAddCmd() *cobra.Command {
	var tags []string

	cmd := &cobra.Command{
		Use:   "add <platform-name> <platform-user-id>",
		Short: "Start tracking a platform user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			p, err := repo.GetPlatformByName(ctx, args[0])
			if err != nil {
				return err
			}

			svc := users.NewService(repo, buildRegistry(), log)
			user, err := svc.AddUser(ctx, p.ID, args[1], tags)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Tracked User ===\n")
			fmt.Printf("ID:       %s\n", user.ID)
			fmt.Printf("Username: %s\n", user.Username)
			fmt.Printf("Name:     %s\n", user.DisplayName)
			fmt.Printf("Profile:  %s\n", user.ProfileURL)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Tags to attach to the user")
	return cmd
}

func usersListCmd() *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked users",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			list, err := repo.ListTrackedUsers(ctx, storage.UserFilter{ActiveOnly: activeOnly})
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Tracked Users (%d) ===\n", len(list))
			for _, u := range list {
				status := "active"
				if !u.IsActive {
					status = "inactive"
				}
				watermark := "never"
				if u.LastFetchedAt != nil {
					watermark = u.LastFetchedAt.Format(time.RFC3339)
				}
				fmt.Printf("%s  %-20s %-8s last fetched: %s\n", u.ID, u.Username, status, watermark)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "Show only active users")
	return cmd
}

func usersActivateCmd(activate bool) *cobra.Command {
	use, short := "activate <user-id>", "Enable fetching for a user"
	if !activate {
		use, short = "deactivate <user-id>", "Disable fetching for a user"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user ID: %w", err)
			}

			svc := users.NewService(repo, buildRegistry(), log)
			if err := svc.SetActive(ctx, id, activate); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		},
	}
}

func usersRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <user-id>",
		Short: "Stop tracking a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user ID: %w", err)
			}
			if err := repo.DeleteTrackedUser(ctx, id); err != nil {
				return err
			}
			fmt.Println("Removed")
			return nil
		},
	}
}

// ============ FETCH COMMANDS ============

func fetchCmd() *cobra.Command {
	var startStr, endStr string
	var all bool
	var cursor string

	cmd := &cobra.Command{
		Use:   "fetch [user-id]",
		Short: "Fetch content for a user (or all active users)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			orchestrator := buildOrchestrator(buildRegistry())
			defer orchestrator.Shutdown()

			if all {
				active, err := repo.ListTrackedUsers(ctx, storage.UserFilter{ActiveOnly: true})
				if err != nil {
					return err
				}
				ids := make([]uuid.UUID, 0, len(active))
				for _, u := range active {
					ids = append(ids, u.ID)
				}

				result, err := orchestrator.FetchBatch(ctx, ids, models.TaskTypeManual)
				if err != nil {
					return err
				}
				fmt.Printf("\n=== Batch Fetch ===\n")
				fmt.Printf("Succeeded: %d\n", result.Submitted)
				fmt.Printf("Skipped:   %d\n", result.Skipped)
				fmt.Printf("Failed:    %d\n", result.Failed)
				return nil
			}

			if len(args) != 1 {
				return fmt.Errorf("provide a user ID or --all")
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user ID: %w", err)
			}

			start, err := parseTimeFlag(startStr)
			if err != nil {
				return err
			}
			end, err := parseTimeFlag(endStr)
			if err != nil {
				return err
			}

			result, err := orchestrator.FetchSync(ctx, id, models.TaskTypeManual, start, end, cursor)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Fetch Results ===\n")
			fmt.Printf("Task:       %s\n", result.TaskID)
			fmt.Printf("Fetched:    %d\n", result.Fetched)
			fmt.Printf("New:        %d\n", result.New)
			fmt.Printf("Duplicates: %d\n", result.Duplicates)
			fmt.Printf("Pages:      %d\n", result.Pages)
			return nil
		},
	}

	cmd.Flags().StringVar(&startStr, "start", "", "Window start (RFC3339), default is the user's watermark")
	cmd.Flags().StringVar(&endStr, "end", "", "Window end (RFC3339), default is now")
	cmd.Flags().BoolVar(&all, "all", false, "Fetch all active users")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Resume pagination from this platform cursor")
	return cmd
}

func parseTimeFlag(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid time %q, expected RFC3339: %w", s, err)
	}
	return &t, nil
}

// ============ TASK COMMANDS ============

func tasksCmd() *cobra.Command {
	var userIDStr string
	var limit int

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List fetch tasks, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			filter := storage.DefaultTaskFilter()
			filter.Limit = limit
			if userIDStr != "" {
				id, err := uuid.Parse(userIDStr)
				if err != nil {
					return fmt.Errorf("invalid user ID: %w", err)
				}
				filter.UserID = &id
			}

			tasks, err := repo.ListFetchTasks(ctx, filter)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Fetch Tasks (%d) ===\n", len(tasks))
			for _, t := range tasks {
				line := fmt.Sprintf("%s  %-9s %-9s fetched=%d new=%d dup=%d",
					t.ID, t.TaskType, t.Status, t.FetchedCount, t.NewCount, t.DuplicateCount)
				if t.Status == models.TaskStatusFailed {
					line += fmt.Sprintf("  [%s] %s", t.ErrorKind, t.ErrorMessage)
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userIDStr, "user", "", "Filter by user ID")
	cmd.Flags().IntVar(&limit, "limit", 20, "Max tasks to show")
	return cmd
}

// ============ CONTENT COMMANDS ============

func contentsCmd() *cobra.Command {
	var userIDStr string
	var limit int

	cmd := &cobra.Command{
		Use:   "contents",
		Short: "List stored contents, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			filter := storage.DefaultContentFilter()
			filter.Limit = limit
			if userIDStr != "" {
				id, err := uuid.Parse(userIDStr)
				if err != nil {
					return fmt.Errorf("invalid user ID: %w", err)
				}
				filter.UserID = &id
			}

			contents, err := repo.ListContents(ctx, filter)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Contents (%d) ===\n", len(contents))
			for _, c := range contents {
				published := ""
				if c.PublishedAt != nil {
					published = c.PublishedAt.Format("2006-01-02")
				}
				title := c.Title
				if title == "" {
					title = c.Body
				}
				if len(title) > 70 {
					title = title[:70] + "..."
				}
				fmt.Printf("%s  %-10s %-10s %s\n", c.ID, c.ContentType, published, title)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userIDStr, "user", "", "Filter by user ID")
	cmd.Flags().IntVar(&limit, "limit", 20, "Max contents to show")
	return cmd
}

// ============ EXPORT COMMANDS ============

func exportCmd() *cobra.Command {
	var format, destination string

	cmd := &cobra.Command{
		Use:   "export <user-id>",
		Short: "Export a user's contents to CSV or Google Sheets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user ID: %w", err)
			}

			tracker := task.NewTracker(repo, log)
			writers := []export.Writer{export.NewCSVWriter(cfg.Export.CSVDir)}
			if cfg.Export.SheetsEnabled {
				sw, err := export.NewSheetsWriter(ctx, export.SheetsConfig{
					Enabled:            true,
					SpreadsheetID:      cfg.Export.SpreadsheetID,
					SheetName:          cfg.Export.SheetName,
					CredentialsFile:    cfg.Export.CredentialsFile,
					ServiceAccountJSON: cfg.Export.ServiceAccountJSON,
				}, log)
				if err != nil {
					return err
				}
				writers = append(writers, sw)
			}

			svc := export.NewService(repo, tracker, log, writers...)
			t, err := svc.Export(ctx, id, models.ExportFormat(format), destination)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Export ===\n")
			fmt.Printf("Task:        %s\n", t.ID)
			fmt.Printf("Status:      %s\n", t.Status)
			fmt.Printf("Exported:    %d\n", t.ExportedCount)
			fmt.Printf("Destination: %s\n", t.Destination)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "csv", "Export format (csv or sheets)")
	cmd.Flags().StringVar(&destination, "dest", "", "Destination (file path for csv, sheet tab for sheets)")
	return cmd
}

// ============ ANALYZE COMMANDS ============

func analyzeCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "analyze <user-id>",
		Short: "Extract keywords and summaries from a user's recent contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if !cfg.Anthropic.Enabled {
				return fmt.Errorf("AI analysis is disabled, set anthropic.enabled in config")
			}

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user ID: %w", err)
			}
			user, err := repo.GetTrackedUserByID(ctx, id)
			if err != nil {
				return err
			}
			plat, err := repo.GetPlatformByID(ctx, user.PlatformID)
			if err != nil {
				return err
			}

			filter := storage.DefaultContentFilter()
			filter.UserID = &id
			filter.Limit = limit
			contents, err := repo.ListContents(ctx, filter)
			if err != nil {
				return err
			}
			if len(contents) == 0 {
				fmt.Println("No contents to analyze")
				return nil
			}

			limiter := ratelimit.NewDefaultLimiter()
			client := ai.NewClient(cfg.Anthropic, limiter, log)
			analyses, err := client.AnalyzeBatch(ctx, plat.Type, contents)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Analysis for %s ===\n", user.Username)
			for i, c := range contents {
				a := analyses[i]
				if a == nil {
					continue
				}
				title := c.Title
				if title == "" && len(c.Body) > 50 {
					title = c.Body[:50] + "..."
				}
				fmt.Printf("\n%s\n", title)
				fmt.Printf("  Keywords:  %s\n", strings.Join(a.Keywords, ", "))
				fmt.Printf("  Summary:   %s\n", a.Summary)
				fmt.Printf("  Sentiment: %s\n", a.Sentiment)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Max contents to analyze")
	return cmd
}

// ============ SCHEDULE COMMANDS ============

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Schedule gate commands",
	}

	cmd.AddCommand(scheduleSetCmd(true))
	cmd.AddCommand(scheduleSetCmd(false))
	cmd.AddCommand(scheduleStatusCmd())
	return cmd
}

func scheduleSetCmd(enable bool) *cobra.Command {
	var userIDStr, cronSpec string

	use, short := "enable", "Enable scheduled fetching (globally or for one user)"
	if !enable {
		use, short = "disable", "Disable scheduled fetching (globally or for one user)"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			trigger := scheduler.NewTrigger(repo, buildOrchestrator(buildRegistry()), log)
			if userIDStr != "" {
				id, err := uuid.Parse(userIDStr)
				if err != nil {
					return fmt.Errorf("invalid user ID: %w", err)
				}
				if err := trigger.SetUserEnabled(ctx, id, enable); err != nil {
					return err
				}
			} else {
				if err := trigger.SetGlobalEnabled(ctx, enable, cronSpec); err != nil {
					return err
				}
			}
			fmt.Println("OK")
			return nil
		},
	}

	cmd.Flags().StringVar(&userIDStr, "user", "", "Apply to one user instead of globally")
	if enable {
		cmd.Flags().StringVar(&cronSpec, "cron", "", "Cron expression for the global schedule")
	}
	return cmd
}

func scheduleStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the global schedule gate",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			global, err := repo.GetGlobalSchedule(ctx)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					fmt.Println("No global schedule configured (ticks are no-ops)")
					return nil
				}
				return err
			}

			state := "disabled"
			if global.IsEnabled {
				state = "enabled"
			}
			fmt.Printf("Global schedule: %s", state)
			if global.Cron != "" {
				fmt.Printf(" (cron %q)", global.Cron)
			}
			fmt.Println()
			return nil
		},
	}
}
