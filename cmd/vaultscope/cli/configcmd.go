package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaultscope/vaultscope/internal/config"
)

// RegisterConfigCommands adds configuration management.
func RegisterConfigCommands(root *cobra.Command) {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage vaultscope configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}

	var (
		baseURL      string
		provider     string
		secretMode   string
		awsSecretARN string
		awsRegion    string
		outputDir    string
		logLevel     string
	)

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Update configuration values",
	}
	setCmd.Flags().StringVar(&baseURL, "base-url", "", "Vault API base URL")
	setCmd.Flags().StringVar(&provider, "auth-provider", "", "Logon provider (Cyberark, LDAP, RADIUS, Windows)")
	setCmd.Flags().StringVar(&secretMode, "secret-mode", "", "Credential store backend (local, aws_sm)")
	setCmd.Flags().StringVar(&awsSecretARN, "aws-secret-arn", "", "Secrets Manager ARN holding the logon credential")
	setCmd.Flags().StringVar(&awsRegion, "aws-region", "", "AWS region for the aws_sm backend")
	setCmd.Flags().StringVar(&outputDir, "output-dir", "", "Default output directory for reports")
	setCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	setCmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		if baseURL != "" {
			cfg.BaseURL = baseURL
		}
		if provider != "" {
			cfg.AuthProvider = provider
		}
		if secretMode != "" {
			cfg.SecretMode = secretMode
		}
		if awsSecretARN != "" {
			cfg.AWSSecretARN = awsSecretARN
		}
		if awsRegion != "" {
			cfg.AWSRegion = awsRegion
		}
		if outputDir != "" {
			cfg.OutputDir = outputDir
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}

		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return err
		}
		fmt.Println("Configuration saved")
		return nil
	}

	configCmd.AddCommand(showCmd, setCmd)
	root.AddCommand(configCmd)
}
