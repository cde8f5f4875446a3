package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/r1cksync/poils-cli/internal/session"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the Poils backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")

		var err error
		if email == "" {
			if email, err = promptLine("Email"); err != nil {
				return err
			}
		}
		if password == "" {
			if password, err = promptPassword("Password"); err != nil {
				return err
			}
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		// The session notifies success or failure itself.
		if err := a.sess.Login(cmd.Context(), email, password); err != nil {
			return errSilent
		}
		return nil
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create a Poils account and sign in",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")

		var err error
		if name == "" {
			if name, err = promptLine("Name"); err != nil {
				return err
			}
		}
		if email == "" {
			if email, err = promptLine("Email"); err != nil {
				return err
			}
		}
		if password == "" {
			if password, err = promptPassword("Password"); err != nil {
				return err
			}
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.sess.Signup(cmd.Context(), name, email, password); err != nil {
			return errSilent
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and discard the saved token",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		a.sess.Init(cmd.Context())
		a.sess.Logout(cmd.Context())
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		token := a.tokens.Token()
		if token == "" {
			printWarning("Not signed in")
			return nil
		}

		// The token itself carries identity and expiry; show those even
		// when the backend is unreachable.
		if claims, err := session.PeekClaims(token); err == nil {
			if claims.Email != "" {
				printStatus("Email", "%s", claims.Email)
			}
			if claims.Subject != "" {
				printStatus("User", "%s", claims.Subject)
			}
			if !claims.ExpiresAt.IsZero() {
				printStatus("Token expires", "%s", claims.ExpiresAt.Local().Format(time.RFC1123))
			}
		}

		user, err := a.requireAuth(cmd.Context())
		if err != nil {
			printWarning("Saved token was rejected by the backend")
			return nil
		}
		printStatus("Name", "%s", user.Name)
		printStatus("Email", "%s", user.Email)
		printStatus("Role", "%s", user.Role)
		return nil
	},
}

func init() {
	loginCmd.Flags().String("email", "", "account email")
	loginCmd.Flags().String("password", "", "account password (prompted when omitted)")

	signupCmd.Flags().String("name", "", "display name")
	signupCmd.Flags().String("email", "", "account email")
	signupCmd.Flags().String("password", "", "account password (prompted when omitted)")
}

func promptLine(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

func promptPassword(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return strings.TrimSpace(line), nil
	}
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}
