package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// loginTimeout bounds how long the browser callback listener waits.
const loginTimeout = 5 * time.Minute

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate against the platform",
	}
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())
	return cmd
}

func newLoginCmd() *cobra.Command {
	var noBrowser bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and store a token for a context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			name, cctx, err := store.Resolve(contextFlag)
			if err != nil {
				return err
			}

			token := tokenFlag
			if token == "" {
				if noBrowser {
					token, err = promptToken()
				} else {
					token, err = browserLogin(cmd.Context(), cctx.ResolveAuthURL())
				}
				if err != nil {
					return err
				}
			}
			if token == "" {
				return errors.New("no token received")
			}

			credsFile, err := openCredentials()
			if err != nil {
				return err
			}
			if err := credsFile.Save(name, token); err != nil {
				return err
			}
			fmt.Printf("Successfully authenticated for context '%s'\n", name)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Prompt for a token instead of using the browser flow")
	return cmd
}

// promptToken reads a token from the terminal without echoing it.
func promptToken() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal; pass --token instead")
	}
	fmt.Print("Token: ")
	data, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return string(data), nil
}

// browserLogin starts a loopback listener, points the user's browser
// at the platform web app with the callback address, and waits for
// the app to deliver the token.
func browserLogin(ctx context.Context, authURL string) (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("starting callback listener: %w", err)
	}
	defer listener.Close()

	tokens := make(chan string, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		fmt.Fprintln(w, "Authentication complete. You can close this tab.")
		select {
		case tokens <- token:
		default:
		}
	})
	srv := &http.Server{Handler: mux}
	go srv.Serve(listener)
	defer srv.Close()

	callback := fmt.Sprintf("http://%s/callback", listener.Addr().String())
	loginURL := fmt.Sprintf("%s/cli-login?redirect=%s", authURL, url.QueryEscape(callback))
	fmt.Printf("Open the following URL in your browser to authenticate:\n\n  %s\n\nWaiting for authentication...\n", loginURL)

	select {
	case token := <-tokens:
		return token, nil
	case <-time.After(loginTimeout):
		return "", errors.New("timed out waiting for browser authentication")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func newLogoutCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Clear stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			credsFile, err := openCredentials()
			if err != nil {
				return err
			}
			if all {
				if err := credsFile.Clear(""); err != nil {
					return err
				}
				fmt.Println("Cleared all credentials")
				return nil
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			name, _, err := store.Resolve(contextFlag)
			if err != nil {
				return err
			}
			if err := credsFile.Clear(name); err != nil {
				return err
			}
			fmt.Printf("Logged out of context '%s'\n", name)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Clear credentials for all contexts")
	return cmd
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show authentication status per context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			contexts, err := store.List()
			if err != nil {
				return err
			}
			credsFile, err := openCredentials()
			if err != nil {
				return err
			}
			tokens, err := credsFile.Load()
			if err != nil {
				return err
			}
			if len(tokens) == 0 {
				fmt.Println("No stored credentials found. Run 'pragma auth login' to authenticate.")
				return nil
			}

			fmt.Println("Authentication Status")
			for _, c := range contexts {
				marker := " "
				if c.Current {
					marker = "*"
				}
				status := "Not authenticated"
				if _, ok := tokens[c.Name]; ok {
					status = "Authenticated"
				}
				fmt.Printf("%s %-20s %-40s %s\n", marker, c.Name, c.Context.APIURL, status)
			}
			// Tokens stored for contexts no longer configured.
			configured := make(map[string]bool, len(contexts))
			for _, c := range contexts {
				configured[c.Name] = true
			}
			for name := range tokens {
				if !configured[name] {
					fmt.Printf("  %-20s %-40s Authenticated (context not configured)\n", name, "-")
				}
			}
			return nil
		},
	}
}
