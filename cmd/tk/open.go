package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/chromedp/chromedp"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	tkbrowser "github.com/ibeckermayer/threadkeeper/internal/browser"
	"github.com/ibeckermayer/threadkeeper/internal/config"
)

var openCmd = &cobra.Command{
	Use:       "open <config|cache>",
	Short:     "Open the config file or the cache directory",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"config", "cache"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			path string
			err  error
		)
		switch args[0] {
		case "config":
			path, err = config.ConfigPath()
			if err == nil {
				err = ensureConfig(path)
			}
		case "cache":
			path, err = config.CacheDir()
		}
		if err != nil {
			return fmt.Errorf("failed to get path: %w", err)
		}
		return browser.OpenFile(path)
	},
}

// ensureConfig writes the defaults when no config file exists yet.
func ensureConfig(path string) error {
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return config.Default().SaveFile(path)
}

var botTestCmd = &cobra.Command{
	Use:   "bot-test",
	Short: "Open bot.sannysoft.com to audit the browser fingerprint",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := tkbrowser.New(cmd.Context(), false)
		defer cancel()

		slog.Info("opening fingerprint audit page")
		go func() {
			if err := chromedp.Run(ctx, chromedp.Navigate("https://bot.sannysoft.com")); err != nil {
				slog.Error("failed to navigate", "error", err)
			}
		}()

		fmt.Println("Press Enter to end program...")
		fmt.Scanln()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(openCmd, botTestCmd)
}
