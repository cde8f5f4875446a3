package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/r1cksync/poils-cli/internal/api"
	"github.com/r1cksync/poils-cli/internal/cache"
	"github.com/r1cksync/poils-cli/internal/chatctl"
	"github.com/r1cksync/poils-cli/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat window",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		notices := tui.NewNotices()
		a.sess.SetNotifier(notices)
		// The chat window reacts to session state itself.
		a.sess.SetNavigator(nil)

		user, err := a.requireAuth(cmd.Context())
		if err != nil {
			return err
		}

		ctrlOpts := chatctl.Options{
			Notifier: notices,
			UserID:   user.ID,
			Logger:   a.logger,
		}
		// A typed nil in the interface would defeat the controller's
		// nil check, so only set the cache when it actually opened.
		if store := openCache(a); store != nil {
			defer store.Close()
			ctrlOpts.Cache = store
		}
		ctrl := chatctl.New(a.client, ctrlOpts)
		ctrl.LoadCached()

		markdown := a.cfg.TUI.Markdown
		return tui.New(ctrl, a.sess, a.client, tui.Options{
			Notices:  notices,
			Markdown: markdown,
			Logger:   a.logger,
		}).Run()
	},
}

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "Manage conversations",
}

var chatsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		user, err := a.requireAuth(cmd.Context())
		if err != nil {
			return err
		}

		cached, _ := cmd.Flags().GetBool("cached")

		var chats []api.Chat
		if cached {
			store := openCache(a)
			if store == nil {
				return fmt.Errorf("cache unavailable")
			}
			defer store.Close()
			if chats, err = store.Chats(user.ID); err != nil {
				return err
			}
		} else {
			if chats, err = a.client.Chats.List(cmd.Context()); err != nil {
				return err
			}
		}

		if len(chats) == 0 {
			printWarning("No conversations yet, run `poils chat` to start one")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tMESSAGES\tUPDATED")
		for _, c := range chats {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				c.ID, c.Title, c.MessageCount, c.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var chatsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a conversation's full message history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if _, err := a.requireAuth(cmd.Context()); err != nil {
			return err
		}

		chat, err := a.client.Chats.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Println(colorize(colorBold, chat.Title))
		for _, m := range chat.Messages {
			ts := m.Timestamp.Local().Format(time.Kitchen)
			label := m.Role
			if m.Role == api.RoleUser {
				label = colorize(colorCyan, "you")
			} else if m.Role == api.RoleAssistant {
				label = colorize(colorGreen, "poils")
			}
			fmt.Printf("[%s] %s: %s\n", ts, label, m.Content)
		}
		return nil
	},
}

var chatsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if _, err := a.requireAuth(cmd.Context()); err != nil {
			return err
		}

		if err := a.client.Chats.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		printSuccess("Deleted chat %s", args[0])
		return nil
	},
}

func init() {
	chatsListCmd.Flags().Bool("cached", false, "list from the local cache without contacting the backend")

	chatsCmd.AddCommand(chatsListCmd)
	chatsCmd.AddCommand(chatsShowCmd)
	chatsCmd.AddCommand(chatsDeleteCmd)
}

// openCache opens the local display cache; a failure downgrades to no
// caching rather than blocking the command.
func openCache(a *app) *cache.Store {
	store, err := cache.Open(a.cfg.Cache.DataDir)
	if err != nil {
		a.logger.Debug("cache unavailable", "error", err)
		return nil
	}
	return store
}
