package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/srg/blepilot/internal/device"
	"github.com/srg/blepilot/internal/session"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List built-in device profiles",
	Long: `List the built-in device profiles with config file and
environment overrides applied.`,
	Args: cobra.NoArgs,
	RunE: runProfiles,
}

func runProfiles(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, "")
	if err != nil {
		return err
	}
	address, _ := cmd.Flags().GetString("address")

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROFILE\tTARGET\tSERVICE\tCHARACTERISTIC\tWRITE")
	for _, name := range session.Names() {
		p, err := resolveProfile(a.cfg, name, address)
		if err != nil {
			return err
		}
		target := p.Filter.String()
		if p.Address != "" {
			target = "address " + p.Address
		}
		mode := "with response"
		if !p.WithResponse {
			mode = "without response"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.Name, target,
			device.ShortenUUID(device.NormalizeUUID(p.Service)), device.ShortenUUID(device.NormalizeUUID(p.Characteristic)), mode)
	}
	return w.Flush()
}
