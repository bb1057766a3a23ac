package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/threadkeeper/internal/auth"
	"github.com/ibeckermayer/threadkeeper/internal/config"
)

func authManager() (*auth.Manager, error) {
	_, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	return auth.NewManager(auth.NewCookieStore(auth.DefaultCookieStorePath(dir)), logger), nil
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Open a browser to log in to X and store the session cookies",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := authManager()
		if err != nil {
			return err
		}
		if err := m.Login(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("logged in")
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Delete the stored X session",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := authManager()
		if err != nil {
			return err
		}
		return m.Logout()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether a valid X session is stored",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := authManager()
		if err != nil {
			return err
		}
		if m.IsAuthenticated() {
			fmt.Println("session: valid")
		} else {
			fmt.Println("session: missing or expired")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, statusCmd)
}
