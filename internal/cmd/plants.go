package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conalog/patch-cli/internal/api"
	"github.com/conalog/patch-cli/internal/dryrun"
	"github.com/conalog/patch-cli/internal/validation"
)

func newPlantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "plants",
		Aliases: []string{"plant"},
		Short:   "List, inspect and create plants",
	}

	cmd.AddCommand(newPlantsListCmd())
	cmd.AddCommand(newPlantsGetCmd())
	cmd.AddCommand(newPlantsCreateCmd())

	return cmd
}

func newPlantsListCmd() *cobra.Command {
	var (
		page   string
		size   string
		all    bool
		legacy bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List plants",
		Example: strings.TrimSpace(`
  patchctl plants list
  patchctl plants list --all -o json --jq '.items[].id'
  patchctl plants list --v2
`),
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			opts, err := pageOptions(page, size)
			if err != nil {
				return err
			}
			if all && legacy {
				return fmt.Errorf("--all cannot be used with --v2")
			}

			client, err := getClient(cmdContext(cmd))
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)

			var list *api.PlantList
			switch {
			case legacy:
				plants, err := client.Plants().ListV2(ctx, opts)
				if err != nil {
					return err
				}
				list = &api.PlantList{Items: make([]api.Plant, 0, len(plants))}
				if opts.Page != nil {
					list.Page = int64(*opts.Page)
				}
				for _, p := range plants {
					list.Items = append(list.Items, p.ToV3())
				}
				list.TotalItems = int64(len(list.Items))
			case all:
				list, err = listAllPlants(cmd, client, opts.Size)
				if err != nil {
					return err
				}
			default:
				list, err = client.Plants().List(ctx, opts)
				if err != nil {
					return err
				}
			}

			if isJSON(cmd) {
				return printJSON(cmd, list)
			}
			f := newFormatter(cmd)
			if len(list.Items) == 0 {
				f.Empty("No plants found")
				return nil
			}
			f.StartTable("ID", "NAME", "ORGANIZATION", "UPDATED")
			for _, p := range list.Items {
				f.Row(p.ID, p.Name, orDash(p.Organization.Name), orDash(p.Updated))
			}
			if err := f.EndTable(); err != nil {
				return err
			}
			if !all && !legacy && list.TotalPages > list.Page {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Page %d of %d (%d plants); use --page or --all for more\n", list.Page, list.TotalPages, list.TotalItems)
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&page, "page", "", "Page number (1-based)")
	cmd.Flags().StringVar(&size, "size", "", "Page size")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Fetch every page")
	cmd.Flags().BoolVar(&legacy, "v2", false, "Use the legacy v2 endpoint")

	return cmd
}

// listAllPlants follows pages until totalPages is reached or a page comes
// back empty.
func listAllPlants(cmd *cobra.Command, client *api.Client, pageSize *int) (*api.PlantList, error) {
	size := 100
	if pageSize != nil {
		size = *pageSize
	}
	all := &api.PlantList{Items: []api.Plant{}}
	for page := 1; ; page++ {
		list, err := client.Plants().List(cmdContext(cmd), api.Pages(page, size))
		if err != nil {
			return nil, err
		}
		all.Items = append(all.Items, list.Items...)
		all.TotalItems = list.TotalItems
		all.TotalPages = list.TotalPages
		if len(list.Items) == 0 || int64(page) >= list.TotalPages {
			break
		}
	}
	all.Page = 1
	all.PerPage = int64(len(all.Items))
	return all, nil
}

func newPlantsGetCmd() *cobra.Command {
	var legacy bool

	cmd := &cobra.Command{
		Use:   "get <plant>",
		Short: "Show one plant",
		Args:  cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			client, err := getClient(cmdContext(cmd))
			if err != nil {
				return err
			}
			plantID, err := resolvePlant(cmdContext(cmd), client, args[0])
			if err != nil {
				return err
			}

			var plant *api.Plant
			if legacy {
				v2, err := client.Plants().GetV2(cmdContext(cmd), plantID)
				if err != nil {
					return err
				}
				converted := v2.ToV3()
				plant = &converted
			} else {
				plant, err = client.Plants().Get(cmdContext(cmd), plantID)
				if err != nil {
					return err
				}
			}

			if isJSON(cmd) {
				return printJSON(cmd, plant)
			}
			printPlant(cmd, plant)
			return nil
		}),
	}

	cmd.Flags().BoolVar(&legacy, "v2", false, "Use the legacy v2 endpoint")
	return cmd
}

func printPlant(cmd *cobra.Command, p *api.Plant) {
	w := newTabWriterFromCmd(cmd)
	_, _ = fmt.Fprintf(w, "ID:\t%s\n", p.ID)
	_, _ = fmt.Fprintf(w, "Name:\t%s\n", p.Name)
	_, _ = fmt.Fprintf(w, "Organization:\t%s\n", orDash(strings.TrimSpace(fmt.Sprintf("%s %s", p.Organization.Name, bracketed(p.Organization.ID)))))
	_, _ = fmt.Fprintf(w, "Created:\t%s\n", orDash(p.Created))
	_, _ = fmt.Fprintf(w, "Updated:\t%s\n", orDash(p.Updated))
	if len(p.Metadata) > 0 {
		_, _ = fmt.Fprintf(w, "Metadata:\t%s\n", string(p.Metadata))
	}
	if len(p.Images) > 0 {
		_, _ = fmt.Fprintf(w, "Images:\t%s\n", strings.Join(p.Images, ", "))
	}
	_ = w.Flush()
}

func bracketed(s string) string {
	if s == "" {
		return ""
	}
	return "(" + s + ")"
}

func newPlantsCreateCmd() *cobra.Command {
	var (
		name     string
		orgID    string
		metadata string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a plant",
		Example: strings.TrimSpace(`
  patchctl plants create --name "North Field" --org org-1
  patchctl plants create --name "North Field" --org org-1 --metadata @meta.json --dry-run
`),
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			name = strings.TrimSpace(name)
			if err := validation.ValidateName(name); err != nil {
				return err
			}
			if strings.TrimSpace(orgID) == "" {
				return fmt.Errorf("--org is required")
			}
			meta, err := readMetadata(metadata)
			if err != nil {
				return err
			}
			input := api.CreatePlantInput{Name: name, OrganizationID: orgID, Metadata: meta}

			details := map[string]any{"name": name, "organizationId": orgID}
			if meta != nil {
				details["metadata"] = string(meta)
			}
			if ok, err := maybeDryRun(cmd, &dryrun.Preview{
				Operation: "create",
				Resource:  "plant",
				Method:    "POST",
				Path:      "/api/v3/plants",
				Details:   details,
			}); ok {
				return err
			}

			client, err := getClient(cmdContext(cmd))
			if err != nil {
				return err
			}
			plant, err := client.Plants().Create(cmdContext(cmd), input)
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printJSON(cmd, plant)
			}
			printAction(cmd, "Created", "plant", plant.ID, plant.Name)
			return nil
		}),
	}

	cmd.Flags().StringVar(&name, "name", "", "Plant name (required)")
	cmd.Flags().StringVar(&orgID, "org", "", "Owning organization ID (required)")
	cmd.Flags().StringVar(&metadata, "metadata", "", "Metadata as JSON or @file")

	return cmd
}
