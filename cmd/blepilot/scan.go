package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/blepilot/internal/device"
	"github.com/srg/blepilot/internal/scanner"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for nearby BLE devices",
	Long: `Scan for Bluetooth Low Energy devices and list their names, addresses,
signal strength and advertised services, strongest signal first.

Use --profile to show only devices a built-in profile would connect to,
or --name/--services for an ad-hoc filter.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

var (
	scanDuration time.Duration
	scanFormat   string
	scanName     string
	scanServices []string
	scanProfile  string
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan duration (default scan_timeout from config)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
	scanCmd.Flags().StringVarP(&scanName, "name", "n", "", "Filter by name prefix")
	scanCmd.Flags().StringSliceVarP(&scanServices, "services", "s", nil, "Filter by advertised service UUIDs")
	scanCmd.Flags().StringVarP(&scanProfile, "profile", "p", "", "Filter like a built-in profile (car, drone, led, lamp)")
}

// scanFilter builds the discovery filter from the scan flags.
func scanFilter(a *app, address string) (device.Filter, error) {
	if scanProfile != "" {
		p, err := resolveProfile(a.cfg, scanProfile, address)
		if err != nil {
			return device.Filter{}, err
		}
		return p.Filter, nil
	}
	f := device.Filter{NamePrefix: scanName}
	if len(scanServices) > 0 {
		services, err := device.ValidateUUID(scanServices...)
		if err != nil {
			return device.Filter{}, fmt.Errorf("invalid service UUID: %w", err)
		}
		f.Services = services
	}
	return f, nil
}

func runScan(cmd *cobra.Command, _ []string) error {
	if scanFormat != "table" && scanFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [table json]", scanFormat)
	}

	a, err := newApp(cmd, "")
	if err != nil {
		return err
	}
	address, _ := cmd.Flags().GetString("address")
	filter, err := scanFilter(a, address)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	central, err := a.openCentral()
	if err != nil {
		return err
	}

	opts := scanner.DefaultOptions()
	opts.Duration = a.cfg.ScanTimeout
	if scanDuration > 0 {
		opts.Duration = scanDuration
	}
	opts.Filter = filter

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	entries, err := runSingleScan(ctx, a, scanner.New(central, a.logger), opts)
	if err != nil {
		return err
	}
	if scanFormat == "json" {
		return displayEntriesJSON(a.out, entries)
	}
	return displayEntriesTable(a.out, entries, time.Now())
}

func runSingleScan(ctx context.Context, a *app, s *scanner.Scanner, opts *scanner.Options) ([]scanner.Entry, error) {
	progress := NewCountdownProgressPrinter(a.out, "Scanning for BLE devices", "scanning", opts.Duration)
	progress.Start()
	defer progress.Stop()

	var found atomic.Int32
	opts.OnEvent = func(ev scanner.Event) {
		if ev.Type == scanner.EventNew {
			progress.SetPhase(fmt.Sprintf("%d found", found.Add(1)))
		}
	}

	entries, err := s.Scan(ctx, opts)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.WithError(err).Error("scan failed")
		return nil, err
	}
	return entries, nil
}

// Single-attribute colors keep escape lengths equal so tabwriter columns line up.
var (
	strongColor = color.New(color.FgGreen)
	mediumColor = color.New(color.FgWhite)
	weakColor   = color.New(color.FgYellow)
)

func rssiLabel(rssi int) string {
	label := fmt.Sprintf("%d dBm", rssi)
	switch {
	case rssi >= -60:
		return strongColor.Sprint(label)
	case rssi < -80:
		return weakColor.Sprint(label)
	default:
		return mediumColor.Sprint(label)
	}
}

func displayEntriesTable(out io.Writer, entries []scanner.Entry, now time.Time) error {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No devices discovered")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI\tSERVICES\tLAST SEEN")

	for _, e := range entries {
		name := e.Name
		if name == "" {
			name = "(unknown)"
		}
		if len(name) > 20 {
			name = name[:17] + "..."
		}

		services := strings.Join(e.Services, ",")
		if len(services) > 30 {
			services = services[:27] + "..."
		}

		lastSeen := now.Sub(e.LastSeen).Truncate(time.Second)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s ago\n", name, e.Address, rssiLabel(e.RSSI), services, lastSeen)
	}

	return w.Flush()
}

func displayEntriesJSON(out io.Writer, entries []scanner.Entry) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(entries)
}
