package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAccountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "account",
		Short: "Show the logged-in account",
		Args:  cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			client, err := getClient(cmdContext(cmd))
			if err != nil {
				return err
			}
			acc, err := client.Account().Get(cmdContext(cmd))
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printJSON(cmd, acc)
			}

			login := acc.Email
			if login == "" {
				login = acc.Username
			}
			var orgs []string
			for _, org := range acc.Organizations {
				orgs = append(orgs, fmt.Sprintf("%s (%s)", org.Name, org.ID))
			}

			w := newTabWriterFromCmd(cmd)
			_, _ = fmt.Fprintf(w, "Name:\t%s\n", acc.Name)
			_, _ = fmt.Fprintf(w, "Type:\t%s\n", acc.AccountType)
			_, _ = fmt.Fprintf(w, "Login:\t%s\n", orDash(login))
			_, _ = fmt.Fprintf(w, "Organizations:\t%s\n", orDash(strings.Join(orgs, ", ")))
			return w.Flush()
		}),
	}
}
