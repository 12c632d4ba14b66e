package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vaultscope/vaultscope/internal/logging"
	"github.com/vaultscope/vaultscope/internal/secrets"
)

// RegisterCredsCommands adds management of the stored vault logon credential.
func RegisterCredsCommands(root *cobra.Command) {
	credsCmd := &cobra.Command{
		Use:   "creds",
		Short: "Manage the stored vault logon credential",
	}

	var username string

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Store the vault logon credential in the local encrypted store",
	}
	setCmd.Flags().StringVar(&username, "username", "", "Vault logon username (required)")
	setCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if username == "" {
			return fmt.Errorf("--username is required")
		}

		store, err := openLocalStoreForEdit()
		if err != nil {
			return err
		}
		defer store.Close()

		fmt.Fprint(os.Stderr, "Vault logon password: ")
		passBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		fmt.Fprintln(os.Stderr)

		cred := secrets.Credential{Username: username, Password: string(passBytes)}
		if err := store.PutLogonCredential(cred); err != nil {
			return err
		}

		fmt.Printf("Stored logon credential for %s\n", username)
		return nil
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the stored credential (password redacted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openLocalStoreForEdit()
			if err != nil {
				return err
			}
			defer store.Close()

			cred, err := store.LogonCredential(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("Username: %s\n", cred.Username)
			fmt.Printf("Password: %s\n", logging.RedactValue(cred.Password))
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove the stored credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openLocalStoreForEdit()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(secrets.LogonKey); err != nil {
				return err
			}
			fmt.Println("Stored credential removed")
			return nil
		},
	}

	credsCmd.AddCommand(setCmd, showCmd, deleteCmd)
	root.AddCommand(credsCmd)
}
