package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conalog/patch-cli/internal/api"
	"github.com/conalog/patch-cli/internal/dryrun"
	"github.com/conalog/patch-cli/internal/validation"
)

func newOrgsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "orgs",
		Aliases: []string{"org", "organizations"},
		Short:   "Manage organization members and plant permissions",
	}
	cmd.AddCommand(newOrgsAddMemberCmd())
	cmd.AddCommand(newOrgsGrantCmd())
	return cmd
}

// memberLogin checks the email/username pair against the account type:
// managers sign in by email and viewers by username.
func memberLogin(accountType, email, username string) (string, error) {
	accountType = strings.ToLower(strings.TrimSpace(accountType))
	switch accountType {
	case api.AccountTypeManager:
		if email == "" {
			return "", fmt.Errorf("--email is required for manager accounts")
		}
		if username != "" {
			return "", fmt.Errorf("--username cannot be used with manager accounts")
		}
		if err := validation.ValidateEmailFormat(email); err != nil {
			return "", fmt.Errorf("invalid --email: %w", err)
		}
	case api.AccountTypeViewer:
		if username == "" {
			return "", fmt.Errorf("--username is required for viewer accounts")
		}
		if email != "" {
			return "", fmt.Errorf("--email cannot be used with viewer accounts")
		}
		if err := validation.ValidateName(username); err != nil {
			return "", fmt.Errorf("invalid --username: %w", err)
		}
	default:
		return "", api.NewValidationError("type", accountType, []string{api.AccountTypeManager, api.AccountTypeViewer})
	}
	return accountType, nil
}

func newOrgsAddMemberCmd() *cobra.Command {
	var (
		accountType string
		name        string
		email       string
		username    string
		metadata    string
	)

	cmd := &cobra.Command{
		Use:   "add-member <org>",
		Short: "Create a member account in an organization",
		Example: strings.TrimSpace(`
  patchctl orgs add-member org-1 --type manager --name "Kim" --email kim@example.com
  patchctl orgs add-member org-1 --type viewer --name "Field crew" --username field01
`),
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			orgID, err := resolveOrg(args[0])
			if err != nil {
				return err
			}
			kind, err := memberLogin(accountType, email, username)
			if err != nil {
				return err
			}
			if err := validation.ValidateName(name); err != nil {
				return err
			}
			meta, err := readMetadata(metadata)
			if err != nil {
				return err
			}
			req := api.CreateOrgMemberRequest{AccountType: kind, Name: name, Email: email, Username: username, Metadata: meta}

			details := map[string]any{"type": kind, "name": name}
			if email != "" {
				details["email"] = email
			}
			if username != "" {
				details["username"] = username
			}
			if ok, err := maybeDryRun(cmd, &dryrun.Preview{
				Operation: "create",
				Resource:  "organization member",
				Method:    "POST",
				Path:      "/api/v3/organizations/" + orgID + "/members",
				Details:   details,
			}); ok {
				return err
			}

			client, err := getClient(cmdContext(cmd))
			if err != nil {
				return err
			}
			member, err := client.Organizations().CreateMember(cmdContext(cmd), orgID, req)
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printJSON(cmd, member)
			}
			printAction(cmd, "Created", member.AccountType, member.ID, member.Name)
			return nil
		}),
	}

	cmd.Flags().StringVar(&accountType, "type", "", "Account type: manager|viewer (required)")
	cmd.Flags().StringVar(&name, "name", "", "Display name (required)")
	cmd.Flags().StringVar(&email, "email", "", "Email (managers)")
	cmd.Flags().StringVar(&username, "username", "", "Username (viewers)")
	cmd.Flags().StringVar(&metadata, "metadata", "", "Metadata as JSON or @file")
	return cmd
}

func newOrgsGrantCmd() *cobra.Command {
	var (
		plant       string
		accountType string
		email       string
		username    string
	)

	cmd := &cobra.Command{
		Use:   "grant <org>",
		Short: "Grant an account access to a plant",
		Example: strings.TrimSpace(`
  patchctl orgs grant org-1 --plant plant-1 --type viewer --username field01
`),
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			orgID, err := resolveOrg(args[0])
			if err != nil {
				return err
			}
			if strings.TrimSpace(plant) == "" {
				return fmt.Errorf("--plant is required")
			}
			kind, err := memberLogin(accountType, email, username)
			if err != nil {
				return err
			}

			who := email
			if who == "" {
				who = username
			}
			if ok, err := maybeDryRun(cmd, &dryrun.Preview{
				Operation: "grant",
				Resource:  "plant permission",
				Method:    "POST",
				Path:      "/api/v3/organizations/" + orgID + "/permissions",
				Details:   map[string]any{"plantId": previewPlantID(plant), "type": kind, "account": who},
			}); ok {
				return err
			}

			client, err := getClient(cmdContext(cmd))
			if err != nil {
				return err
			}
			plantID, err := resolvePlant(cmdContext(cmd), client, plant)
			if err != nil {
				return err
			}
			perm, err := client.Organizations().GrantPlantPermission(cmdContext(cmd), orgID, api.PlantPermissionRequest{
				PlantID:     plantID,
				AccountType: kind,
				Email:       email,
				Username:    username,
			})
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printJSON(cmd, perm)
			}
			if perm.Email != "" || perm.Username != "" {
				who = perm.Email + perm.Username
			}
			printAction(cmd, "Granted", "plant", perm.PlantID, fmt.Sprintf("%s %s", perm.AccountType, who))
			return nil
		}),
	}

	cmd.Flags().StringVar(&plant, "plant", "", "Plant ID (required)")
	cmd.Flags().StringVar(&accountType, "type", "", "Account type: manager|viewer (required)")
	cmd.Flags().StringVar(&email, "email", "", "Email (managers)")
	cmd.Flags().StringVar(&username, "username", "", "Username (viewers)")
	return cmd
}
