package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaultscope/vaultscope/internal/config"
	"github.com/vaultscope/vaultscope/internal/history"
	"github.com/vaultscope/vaultscope/internal/logging"
	"github.com/vaultscope/vaultscope/internal/pam"
	"github.com/vaultscope/vaultscope/internal/report"
)

// RegisterReportCommands adds the report extraction command.
func RegisterReportCommands(root *cobra.Command) {
	var (
		baseURL    string
		accounts   bool
		users      bool
		safes      bool
		pageSize   int
		maxRetries int
		retryDelay time.Duration
		timeout    time.Duration
		outDir     string
		perSafe    bool
		noHistory  bool
	)

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Extract vault inventory reports to CSV",
		Long: `Extract one or more inventory reports from the vault API. With no report
switch all three reports run. Each report fails independently: a transient
safes outage does not discard a completed accounts export. Exit status is 0
only when every selected report succeeded.`,
	}

	reportCmd.Flags().StringVar(&baseURL, "base-url", "", "Vault API base URL (overrides config)")
	reportCmd.Flags().BoolVar(&accounts, "accounts", false, "Produce the accounts report")
	reportCmd.Flags().BoolVar(&users, "users", false, "Produce the users report")
	reportCmd.Flags().BoolVar(&safes, "safes", false, "Produce the safes report")
	reportCmd.Flags().IntVar(&pageSize, "page-size", 0, "Records per page request")
	reportCmd.Flags().IntVar(&maxRetries, "max-retries", 0, "Attempts per request before giving up")
	reportCmd.Flags().DurationVar(&retryDelay, "retry-delay", 0, "First backoff delay; doubles per retry")
	reportCmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-request timeout")
	reportCmd.Flags().StringVar(&outDir, "out", "", "Output directory for CSV files")
	reportCmd.Flags().BoolVar(&perSafe, "per-safe", false, "Extract accounts safe by safe (avoids the cross-safe record cap)")
	reportCmd.Flags().BoolVar(&noHistory, "no-history", false, "Skip recording this run in the history database")

	reportCmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		// Flags override config.
		if baseURL != "" {
			cfg.BaseURL = baseURL
		}
		if pageSize > 0 {
			cfg.PageSize = pageSize
		}
		if maxRetries > 0 {
			cfg.MaxRetries = maxRetries
		}
		if outDir != "" {
			cfg.OutputDir = outDir
		}

		if cfg.BaseURL == "" {
			return fmt.Errorf("--base-url is required (or set base_url in config)")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		var kinds []report.Kind
		if accounts {
			kinds = append(kinds, report.KindAccounts)
		}
		if users {
			kinds = append(kinds, report.KindUsers)
		}
		if safes {
			kinds = append(kinds, report.KindSafes)
		}

		logger := logging.NewLogger(cfg.LogLevel)

		store, cleanup, err := openCredentialStore(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}

		var hist *history.Store
		if !noHistory {
			if err := os.MkdirAll(config.Dir(), 0700); err != nil {
				return fmt.Errorf("creating config directory: %w", err)
			}
			hist, err = history.Open(filepath.Join(config.Dir(), history.DBFileName))
			if err != nil {
				return fmt.Errorf("opening run history: %w", err)
			}
			defer hist.Close()
		}

		// Durations stay as flag values end to end; converting through the
		// config's second-granularity fields would truncate sub-second values.
		effTimeout := overrideDuration(cfg.Timeout(), timeout)
		effRetryDelay := overrideDuration(cfg.RetryDelay(), retryDelay)

		session := pam.NewAuthSession(cfg.BaseURL, cfg.AuthProvider, store, effTimeout, logger)
		requester := pam.NewRequester(session, effTimeout, cfg.MaxRetries, effRetryDelay, logger)
		client := pam.NewClient(cfg.BaseURL, session, requester, logger)

		orch := report.NewOrchestrator(client, report.Options{
			OutputDir: cfg.OutputDir,
			PageSize:  cfg.PageSize,
			GCEvery:   cfg.GCEveryRecords,
			PerSafe:   perSafe,
		}, hist, logger)

		jobs, exit, err := orch.Run(context.Background(), kinds)
		if err != nil {
			return err
		}

		for _, job := range jobs {
			if job.Status == report.StatusSucceeded {
				fmt.Printf("  %-10s %d records -> %v\n", job.Kind, job.Records, job.Files)
			} else {
				fmt.Printf("  %-10s FAILED: %v\n", job.Kind, job.Err)
			}
		}

		if exit != 0 {
			return fmt.Errorf("one or more reports failed")
		}
		return nil
	}

	root.AddCommand(reportCmd)
}
