package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/r1cksync/poils-cli/internal/config"
	"github.com/r1cksync/poils-cli/internal/mcpbridge"
	"github.com/r1cksync/poils-cli/internal/session"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check backend reachability and session health",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		printStatus("Backend", "%s", a.cfg.API.BaseURL)

		a.sess.Init(cmd.Context())
		switch a.sess.State() {
		case session.StateAuthenticated:
			user, _ := a.sess.Current()
			printSuccess("Signed in as %s", user.Email)
		default:
			printWarning("Not signed in")
		}
		return nil
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve chats and documents over MCP on stdin/stdout",
	Long: `Serve chats and documents over MCP on stdin/stdout.

Point an MCP-capable assistant at this command to let it browse your
conversations and documents and send messages on your behalf. Requires a
signed-in session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		// Notifications would corrupt the protocol stream.
		a.sess.SetNotifier(nil)
		a.sess.SetNavigator(nil)
		if _, err := a.requireAuth(cmd.Context()); err != nil {
			return err
		}

		return mcpbridge.ServeStdio(mcpbridge.Deps{
			Client:  a.client,
			Session: a.sess,
		})
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
