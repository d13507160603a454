package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/conalog/patch-cli/internal/api"
	"github.com/conalog/patch-cli/internal/config"
	"github.com/conalog/patch-cli/internal/iocontext"
	"github.com/conalog/patch-cli/internal/validation"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored PATCH credentials",
		Long:  "Store PATCH account credentials in your OS keychain. Sessions are never stored; each command logs in with the active profile.",
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthStatusCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthProfilesCmd())

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var (
		account       string
		password      string
		passwordStdin bool
		loginAPI      string
		envFile       string
		noVerify      bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Verify and save credentials to a profile",
		Example: strings.TrimSpace(`
  # Manager login (an email selects the manager account type)
  patchctl auth login --base-url https://patch.example.com --account ops@example.com --password-stdin < pw.txt

  # Viewer login through the v2 endpoint into a named profile
  patchctl auth login --profile site-a --account field01 --login-api v2

  # Read PATCH_BASE_URL, PATCH_ACCOUNT and PATCH_PASSWORD from a .env file
  patchctl auth login --env-file .env
`),
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			baseURL := flags.BaseURL
			profile := flags.Profile

			env := map[string]string{}
			if envFile != "" {
				vars, err := godotenv.Read(envFile)
				if err != nil {
					return fmt.Errorf("failed to read --env-file %q: %w", envFile, err)
				}
				env = vars
			}
			lookup := func(key string) string {
				if v := strings.TrimSpace(env[key]); v != "" {
					return v
				}
				return strings.TrimSpace(os.Getenv(key))
			}

			if baseURL == "" {
				baseURL = lookup(config.EnvBaseURL)
			}
			if account == "" {
				account = lookup(config.EnvAccount)
			}
			if profile == "" {
				profile = lookup(config.EnvProfile)
			}
			if passwordStdin {
				line, err := bufio.NewReader(iocontext.GetIO(cmd.Context()).In).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read password from stdin: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				password = lookup(config.EnvPassword)
			}

			if profile != "" {
				if err := config.ValidateProfileName(profile); err != nil {
					return err
				}
			}
			if baseURL == "" {
				return fmt.Errorf("--base-url is required (or set %s)", config.EnvBaseURL)
			}
			if _, err := validation.ValidateBaseURL(baseURL); err != nil {
				return err
			}
			if account == "" {
				return fmt.Errorf("--account is required (or set %s)", config.EnvAccount)
			}
			if password == "" {
				return fmt.Errorf("a password is required (--password-stdin or %s)", config.EnvPassword)
			}
			loginAPI = strings.ToLower(strings.TrimSpace(loginAPI))
			if loginAPI != config.LoginAPIV3 && loginAPI != config.LoginAPIV2 {
				return fmt.Errorf("--login-api must be v3 or v2")
			}

			accountType := api.AccountTypeFor(account)
			if !noVerify {
				factory := newClientFactory()
				client, err := factory.newClient(config.ClientConfig{BaseURL: baseURL, Timeout: flags.Timeout, RequestsPerSecond: flags.RPS})
				if err != nil {
					return err
				}
				if err := login(cmdContext(cmd), client, account, password, loginAPI); err != nil {
					return err
				}
				if session, ok := client.Session(); ok {
					accountType = session.AccountType
				}
			}

			p := config.Profile{
				BaseURL:     strings.TrimSuffix(baseURL, "/"),
				Account:     account,
				Password:    password,
				AccountType: accountType,
				LoginAPI:    loginAPI,
			}
			if profile == "" {
				profile = "default"
			}
			if err := config.SaveProfile(profile, p); err != nil {
				return err
			}

			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{
					"profile":      profile,
					"base_url":     p.BaseURL,
					"account":      p.Account,
					"account_type": p.AccountType,
					"login_api":    p.LoginAPI,
					"verified":     !noVerify,
				})
			}
			printAction(cmd, "Saved", "profile", profile, fmt.Sprintf("%s, %s", account, accountType))
			return nil
		}),
	}

	cmd.Flags().StringVar(&account, "account", "", "Manager email or viewer username (env PATCH_ACCOUNT)")
	cmd.Flags().StringVar(&password, "password", "", "Password (prefer --password-stdin or PATCH_PASSWORD)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	cmd.Flags().StringVar(&loginAPI, "login-api", config.LoginAPIV3, "Login endpoint generation: v3|v2")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Read PATCH_* credentials from a .env file")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "Save without logging in first")

	return cmd
}

type authStatus struct {
	Profile      string `json:"profile"`
	BaseURL      string `json:"base_url"`
	Account      string `json:"account,omitempty"`
	AccountType  string `json:"account_type,omitempty"`
	LoginAPI     string `json:"login_api,omitempty"`
	TokenFromEnv bool   `json:"token_from_env"`
	Checked      bool   `json:"checked"`
	Name         string `json:"name,omitempty"`
}

func newAuthStatusCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the active profile",
		Args:  cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.ResolveClientConfig(newClientFactory().overrides)
			if err != nil {
				return err
			}
			status := authStatus{
				Profile:      cfg.Profile,
				BaseURL:      cfg.BaseURL,
				Account:      cfg.Account,
				AccountType:  cfg.AccountType,
				LoginAPI:     cfg.LoginAPI,
				TokenFromEnv: cfg.Token != "",
			}

			if check {
				client, err := getClient(cmdContext(cmd))
				if err != nil {
					return err
				}
				acc, err := client.Account().Get(cmdContext(cmd))
				if err != nil {
					return err
				}
				status.Checked = true
				status.Name = acc.Name
				status.AccountType = acc.AccountType
			}

			if isJSON(cmd) {
				return printJSON(cmd, status)
			}
			w := newTabWriterFromCmd(cmd)
			_, _ = fmt.Fprintf(w, "Profile:\t%s\n", orDash(status.Profile))
			_, _ = fmt.Fprintf(w, "Base URL:\t%s\n", status.BaseURL)
			_, _ = fmt.Fprintf(w, "Account:\t%s\n", orDash(status.Account))
			_, _ = fmt.Fprintf(w, "Account type:\t%s\n", orDash(status.AccountType))
			if status.TokenFromEnv {
				_, _ = fmt.Fprintf(w, "Session:\tfrom %s\n", config.EnvToken)
			}
			if status.Checked {
				_, _ = fmt.Fprintf(w, "Logged in as:\t%s\n", status.Name)
			}
			return w.Flush()
		}),
	}

	cmd.Flags().BoolVar(&check, "check", false, "Log in and fetch the account to verify the credentials")
	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored credentials of a profile",
		Args:  cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			profile := flags.Profile
			if profile == "" {
				current, err := config.CurrentProfile()
				if err != nil {
					return err
				}
				profile = current
			}
			if _, err := config.LoadProfile(profile); err != nil {
				if errors.Is(err, config.ErrNotConfigured) {
					return fmt.Errorf("profile %q is not configured", profile)
				}
				return err
			}
			if err := config.DeleteProfile(profile); err != nil {
				return err
			}
			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{"profile": profile, "removed": true})
			}
			printAction(cmd, "Removed", "profile", profile, "")
			return nil
		}),
	}
}

func newAuthProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List stored profiles",
		Args:  cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			profiles, err := config.ListProfiles()
			if err != nil {
				return err
			}
			current, _ := config.CurrentProfile()

			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{"current": current, "profiles": profiles})
			}
			if len(profiles) == 0 {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No profiles stored")
				return nil
			}
			for _, p := range profiles {
				marker := " "
				if p == current {
					marker = "*"
				}
				_, _ = fmt.Fprintf(iocontext.GetIO(cmd.Context()).Out, "%s %s\n", marker, p)
			}
			return nil
		}),
	}
}
