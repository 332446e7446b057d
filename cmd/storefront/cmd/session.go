package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Sentinel-Gate/storefront/internal/adapter/outbound/httpapi"
)

var loginPassword string

var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Sign in and store the session",
	Long: `Sign in with username and password. The issued token pair is stored in
the configured session backend and reused by every later command.

The password is read from --password, then $STOREFRONT_PASSWORD, then an
interactive prompt.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := bufio.NewReader(cmd.InOrStdin())
		out := cmd.OutOrStdout()

		username := ""
		if len(args) == 1 {
			username = args[0]
		} else {
			fmt.Fprint(out, "Username: ")
			line, err := in.ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			username = strings.TrimSpace(line)
		}
		if username == "" {
			return errors.New("username is required")
		}

		password, err := readPassword("Password: ", loginPassword, "STOREFRONT_PASSWORD", cmd.InOrStdin(), in, out)
		if err != nil {
			return err
		}

		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.sf.Login(ctx, username, password); err != nil {
				if errors.Is(err, httpapi.ErrUnauthorized) {
					return errors.New("login failed: wrong username or password")
				}
				return err
			}
			st := a.sf.Status()
			fmt.Fprintf(out, "Signed in as %s. Cart: %d item(s), wishlist: %d product(s).\n",
				username, st.CartCount, st.WishlistCount)
			return nil
		})
	},
}

// readPassword resolves a password from flagValue, then $envKey, then a
// prompt. The prompt hides input when src is a terminal.
func readPassword(prompt, flagValue, envKey string, src io.Reader, in *bufio.Reader, out io.Writer) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if p := os.Getenv(envKey); p != "" {
		return p, nil
	}

	fmt.Fprint(out, prompt)
	if fd, ok := terminalFd(src); ok {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.sf.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session, cart and wishlist summary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backend:  %s\n", a.sf.Client.BaseURL())
			fmt.Fprintf(out, "Session:  %s\n", a.cfg.Session.Backend)
			if !a.sf.Session.IsAuthenticated() {
				fmt.Fprintln(out, "Signed in: no")
				return nil
			}
			if err := a.sf.Start(ctx); err != nil {
				if httpapi.IsSessionExpired(err) {
					return nil
				}
				a.logger.Warn("could not load cart or wishlist", "error", err)
			}
			if profile, err := a.sf.Client.Profile(ctx); err == nil {
				fmt.Fprintf(out, "Signed in: yes (%s)\n", profile.Username)
			} else {
				fmt.Fprintln(out, "Signed in: yes")
			}
			st := a.sf.Status()
			fmt.Fprintf(out, "Cart:     %d item(s)\n", st.CartCount)
			fmt.Fprintf(out, "Wishlist: %d product(s)\n", st.WishlistCount)
			return nil
		})
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "password (prefer $STOREFRONT_PASSWORD or the prompt)")
	rootCmd.AddCommand(loginCmd, logoutCmd, statusCmd)
}
