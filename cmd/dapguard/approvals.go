package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dapguard/dapguard/internal/audit"
	"github.com/dapguard/dapguard/internal/consent"
)

func newApprovalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approvals",
		Short: "Manage persistently approved launch configurations",
	}

	cmd.AddCommand(newApprovalsListCmd())
	cmd.AddCommand(newApprovalsRevokeCmd())
	cmd.AddCommand(newApprovalsClearCmd())

	return cmd
}

// openAuthority opens the approval store for offline management. No
// prompter is wired; these commands never launch anything.
func openAuthority() (*consent.Authority, *consent.FileStore, error) {
	cfg, err := loadConfigLenient()
	if err != nil {
		return nil, nil, err
	}

	store, err := consent.NewFileStore(cfg.StorePath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open approval store: %w", err)
	}

	return consent.NewAuthority(store, consent.DenyAll(), audit.Nop()), store, nil
}

func newApprovalsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List approved configuration names",
		RunE: func(cmd *cobra.Command, args []string) error {
			authority, store, err := openAuthority()
			if err != nil {
				return err
			}
			defer store.Close()

			approved := authority.Approved()
			if len(approved) == 0 {
				fmt.Println("No approved configurations.")
				return nil
			}
			for _, name := range approved {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func newApprovalsRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <name>",
		Short: "Revoke approval for one configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			authority, store, err := openAuthority()
			if err != nil {
				return err
			}
			defer store.Close()

			if !authority.IsApproved(name) {
				fmt.Printf("%q is not approved.\n", name)
				return nil
			}
			if !confirm(fmt.Sprintf("Revoke approval for %q?", name)) {
				fmt.Println("Aborted.")
				return nil
			}
			if err := authority.Revoke(name); err != nil {
				return err
			}
			fmt.Printf("Revoked %q.\n", name)
			return nil
		},
	}
}

func newApprovalsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear all approved configurations",
		RunE: func(cmd *cobra.Command, args []string) error {
			authority, store, err := openAuthority()
			if err != nil {
				return err
			}
			defer store.Close()

			approved := authority.Approved()
			if len(approved) == 0 {
				fmt.Println("No approved configurations.")
				return nil
			}
			if !confirm(fmt.Sprintf("Clear all %d approved configurations?", len(approved))) {
				fmt.Println("Aborted.")
				return nil
			}
			if err := authority.Clear(); err != nil {
				return err
			}
			fmt.Println("Cleared.")
			return nil
		},
	}
}
