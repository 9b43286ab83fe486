package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rkadam/opsbook/internal/inventory"
	"github.com/rkadam/opsbook/internal/output"
	"github.com/rkadam/opsbook/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newInventoryCmd creates the inventory inspection command
func newInventoryCmd() *cobra.Command {
	var asJSON bool
	var limit string

	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Show the resolved inventory",
		Long: `Show the hosts and groups the inventory file resolves to,
after group variables have been merged into each host.`,
		Example: `  # List all hosts with their groups
  opsbook inventory -i hosts.yml

  # Show only the hosts a limit pattern would select
  opsbook inventory -i hosts.yml --limit web

  # Dump the resolved inventory as JSON
  opsbook inventory -i hosts.yml --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInventory(asJSON, limit)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().StringVarP(&limit, "limit", "l", "", "show only hosts matching this pattern")

	return cmd
}

func runInventory(asJSON bool, limit string) error {
	path := viper.GetString("inventory")
	if path == "" {
		return fmt.Errorf("%w: an inventory file is required (-i)", util.ErrUsage)
	}

	inv, err := inventory.Load(path)
	if err != nil {
		return util.WrapErrorf(err, "loading inventory %q", path)
	}

	hosts := inv.Hosts(limit)
	if len(hosts) == 0 && limit != "" {
		return fmt.Errorf("%w: pattern %q matched no hosts in %s", util.ErrInvalidLimit, limit, path)
	}

	if asJSON {
		data, err := json.MarshalIndent(hosts, "", "  ")
		if err != nil {
			return util.WrapErrorf(err, "encoding inventory")
		}
		fmt.Println(string(data))
		return nil
	}

	table := output.NewTable(os.Stdout)
	table.SetHeader([]string{"HOST", "ADDRESS", "PORT", "GROUPS"})

	for _, h := range hosts {
		port := h.Port
		if port == 0 {
			port = 22
		}

		groups := append([]string(nil), h.Groups...)
		sort.Strings(groups)

		table.Append([]string{
			h.Name,
			h.Address(),
			strconv.Itoa(port),
			strings.Join(groups, ","),
		})
	}

	table.Render()
	return nil
}
