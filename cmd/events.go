package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/uofuseismo/cct-review/internal/catalog"
	"github.com/uofuseismo/cct-review/internal/dashboard"
	"github.com/uofuseismo/cct-review/internal/quality"
	"github.com/uofuseismo/cct-review/pkg/models"
)

var (
	eventID     string
	downloadDir string
	eventStatus string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List, inspect and review events",
	Long:  `Work with the events of the selected schema without starting the interactive dashboard.`,
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List events, most recent first",
	Run: func(cmd *cobra.Command, args []string) {
		match, err := parseStatusFilter(eventStatus)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		api, _, settings := getClient()

		entries, err := api.GetCatalog(context.Background(), settings.Schema)
		if err != nil {
			exitOnError("fetching events", err)
		}
		entries = catalog.Prepare(entries)

		if match != nil {
			var filtered []models.CatalogEntry
			for _, e := range entries {
				if match(e.ReviewStatus) {
					filtered = append(filtered, e)
				}
			}
			entries = filtered
		}

		// --- JSON OUTPUT ---
		if jsonOutput {
			if entries == nil {
				entries = []models.CatalogEntry{}
			}
			printJSON(entries)
			return
		}

		if len(entries) == 0 {
			fmt.Printf("No events found in the %s schema.\n", settings.Schema)
			return
		}
		if err := dashboard.RenderCatalog(os.Stdout, entries, ""); err != nil {
			fmt.Printf("Error writing table: %v\n", err)
			os.Exit(1)
		}
	},
}

var eventsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the Mw,coda fit and quality flags of one event",
	Run: func(cmd *cobra.Command, args []string) {
		api, _, settings := getClient()
		ctx := context.Background()

		detail, raw, err := api.GetEventData(ctx, settings.Schema, eventID)
		if err != nil {
			exitOnError("fetching event "+eventID, err)
		}

		// The review status is only tracked by the catalog.
		entry := detail.CatalogEntry
		if entries, err := api.GetCatalog(ctx, settings.Schema); err == nil {
			if idx := catalog.Index(entries, eventID); idx >= 0 {
				entry = entries[idx]
			}
		}
		ev := models.NewDetailed(entry, detail, raw)
		flags := quality.Classify(ev.Detail)

		if jsonOutput {
			printJSON(struct {
				Event  *models.EventDetail `json:"event"`
				Flags  quality.Flags       `json:"flags"`
				Badges []quality.Badge     `json:"badges"`
				Link   string              `json:"link"`
			}{ev.Detail, flags, flags.Badges(), dashboard.USGSLink(eventID)})
			return
		}

		if err := dashboard.RenderDetail(os.Stdout, &ev); err != nil {
			fmt.Printf("Error writing table: %v\n", err)
			os.Exit(1)
		}
		fmt.Println()
		fmt.Printf("Review status: %s\n", ev.Entry.ReviewStatus)
		for _, b := range flags.Badges() {
			fmt.Printf("  %-9s %s\n", b.Label, b.Tooltip)
		}
		if station, ok := quality.FirstAnomalousStation(ev.Detail.StationMeasurements); ok {
			fmt.Printf("First anomalous station: %s\n", station)
		}
	},
}

var eventsDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Save the full event payload as <id>-cct-data.json",
	Run: func(cmd *cobra.Command, args []string) {
		api, _, settings := getClient()

		_, raw, err := api.GetEventData(context.Background(), settings.Schema, eventID)
		if err != nil {
			exitOnError("downloading event "+eventID, err)
		}
		path, err := dashboard.WriteDownload(downloadDir, eventID, raw)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Saved %s\n", path)
	},
}

var eventsAcceptCmd = &cobra.Command{
	Use:   "accept",
	Short: "Accept the Mw,coda magnitude of an event",
	Run: func(cmd *cobra.Command, args []string) {
		reviewEvent(models.ReviewAccepted)
	},
}

var eventsRejectCmd = &cobra.Command{
	Use:   "reject",
	Short: "Reject the Mw,coda magnitude of an event",
	Run: func(cmd *cobra.Command, args []string) {
		reviewEvent(models.ReviewRejected)
	},
}

// reviewEvent runs one accept or reject through a dashboard so the same
// permission and status checks apply as in the interactive session.
func reviewEvent(target models.ReviewStatus) {
	api, holder, settings := getClient()
	ctx := context.Background()

	// Reviewing only needs the catalog row, so the eventData payload is skipped.
	d := dashboard.New(api, holder, dashboard.Options{Schema: settings.Schema, CatalogOnly: true})
	defer d.Close()

	// 1. Load the catalog and select the event
	if err := d.Refresh(ctx); err != nil {
		exitOnError("fetching events", err)
	}
	if err := d.Select(ctx, eventID); err != nil {
		if errors.Is(err, dashboard.ErrUnknownEvent) {
			fmt.Printf("Error: event %s is not in the %s catalog\n", eventID, settings.Schema)
			os.Exit(1)
		}
		exitOnError("selecting event "+eventID, err)
	}

	// 2. Send the decision
	var err error
	if target == models.ReviewAccepted {
		err = d.Accept(ctx)
	} else {
		err = d.Reject(ctx)
	}
	if err != nil {
		exitOnError("reviewing event "+eventID, err)
	}

	// 3. Refetch to confirm the new status
	if err := d.Refresh(ctx); err != nil {
		fmt.Printf("Warning: could not refresh the catalog: %v\n", err)
	}
	snap := d.Snapshot()
	for _, n := range snap.Notices {
		if n.Level == dashboard.NoticeInfo {
			fmt.Println(n.Message)
		}
	}
	if snap.Selected != nil {
		fmt.Printf("Event %s review status: %s\n", eventID, snap.Selected.Entry.ReviewStatus)
	}
}

// parseStatusFilter returns the predicate for a --status value. An empty
// filter returns nil and keeps every event.
func parseStatusFilter(filter string) (func(models.ReviewStatus) bool, error) {
	switch filter {
	case "":
		return nil, nil
	case "pending":
		return func(s models.ReviewStatus) bool { return !s.Reviewed() }, nil
	case "accepted":
		return func(s models.ReviewStatus) bool { return s == models.ReviewAccepted }, nil
	case "rejected":
		return func(s models.ReviewStatus) bool { return s == models.ReviewRejected }, nil
	}
	return nil, fmt.Errorf("unknown status %q: use pending, accepted or rejected", filter)
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsListCmd)
	eventsCmd.AddCommand(eventsShowCmd)
	eventsCmd.AddCommand(eventsDownloadCmd)
	eventsCmd.AddCommand(eventsAcceptCmd)
	eventsCmd.AddCommand(eventsRejectCmd)

	eventsListCmd.Flags().StringVar(&eventStatus, "status", "", "Only show pending, accepted or rejected events")
	eventsDownloadCmd.Flags().StringVar(&downloadDir, "dir", ".", "Directory to write the file into")

	for _, c := range []*cobra.Command{eventsShowCmd, eventsDownloadCmd, eventsAcceptCmd, eventsRejectCmd} {
		c.Flags().StringVar(&eventID, "id", "", "Event identifier")
		_ = c.MarkFlagRequired("id")
	}
}
