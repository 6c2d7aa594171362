package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/RobbeRDG/chirpnet-project/pkg/auth"
	"github.com/RobbeRDG/chirpnet-project/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the xeno-canto API key",
	Long: `Manage the stored xeno-canto API key.

The key is stored in the system keychain when one is available. The
` + auth.EnvAPIKey + ` environment variable works as a read-only fallback.

Your API key is shown on your xeno-canto account page after logging in.`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the xeno-canto API key securely",
	Long: `Prompt for the xeno-canto API key and store it in the system keychain.

The key is hidden while you type.`,
	Args: cobra.NoArgs,
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored API key",
	Args:  cobra.NoArgs,
	Run:   runLogout,
}

// statusCmd represents the auth status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where the API key is stored",
	Args:  cobra.NoArgs,
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager := auth.NewManager()

	fmt.Print("xeno-canto API key: ")
	keyBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		ui.PrintError("Failed to read API key", err.Error())
		os.Exit(1)
	}

	apiKey := strings.TrimSpace(string(keyBytes))
	if apiKey == "" {
		ui.PrintError("API key is required")
		os.Exit(1)
	}

	if err := manager.Store(apiKey); err != nil {
		ui.PrintError("Failed to store API key", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("API key stored")
}

func runLogout(cmd *cobra.Command, args []string) {
	err := auth.NewManager().Delete()
	if err != nil {
		if errors.Is(err, auth.ErrKeyNotFound) {
			ui.PrintWarning("No API key stored")
			return
		}
		ui.PrintError("Failed to remove API key", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("API key removed")
}

func runStatus(cmd *cobra.Command, args []string) {
	source, err := auth.NewManager().Source()
	if err != nil {
		if errors.Is(err, auth.ErrKeyNotFound) {
			ui.PrintWarning("No API key stored")
			ui.PrintDim("Run 'chirpnet auth login' or set " + auth.EnvAPIKey)
			return
		}
		ui.PrintError("Failed to check API key", err.Error())
		os.Exit(1)
	}

	ui.PrintInfo("API key source", source)
}
