package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/uofuseismo/cct-review/internal/config"
	"github.com/uofuseismo/cct-review/internal/dashboard"
	"github.com/uofuseismo/cct-review/pkg/models"
)

const dashboardHelp = `Commands:
  show                 redraw the dashboard
  select <id>          select an event
  next, prev           move the selection
  accept, reject       review the selected event
  download [dir]       save the selected event as <id>-cct-data.json
  schema <name>        switch to the production or test schema
  refresh              refetch the catalog now
  logout               end the session
  quit                 leave the dashboard`

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive review session",
	Long: `Polls the event catalog, keeps the selected event's detail up to date and
lets you review events from a simple command prompt.

` + dashboardHelp,
	Run: func(cmd *cobra.Command, args []string) {
		api, holder, settings := getClient()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		d := dashboard.New(api, holder, dashboard.Options{
			Schema:       settings.Schema,
			PollInterval: settings.PollInterval,
		})
		d.Start(ctx)
		defer d.Close()

		lines := make(chan string)
		go func() {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				lines <- scanner.Text()
			}
			close(lines)
		}()

		fmt.Println(dashboardHelp)
		for {
			fmt.Print("> ")
			select {
			case <-ctx.Done():
				fmt.Println()
				return
			case <-d.LoggedOut():
				fmt.Println("\nSession ended. Please run 'cct-review login' again.")
				return
			case line, ok := <-lines:
				if !ok {
					return
				}
				if quit := runDashboardCommand(ctx, d, holder.Logout, line); quit {
					return
				}
			}
		}
	},
}

// runDashboardCommand executes one prompt line and reports whether the
// session should end.
func runDashboardCommand(ctx context.Context, d *dashboard.Dashboard, logout func(), line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	var err error
	switch strings.ToLower(fields[0]) {
	case "show", "ls":
	case "select":
		if arg == "" {
			fmt.Println("Usage: select <id>")
			return false
		}
		err = d.Select(ctx, arg)
	case "next", "n":
		err = d.Move(ctx, 1)
	case "prev", "p":
		err = d.Move(ctx, -1)
	case "accept":
		err = d.Accept(ctx)
	case "reject":
		err = d.Reject(ctx)
	case "download":
		var path string
		if path, err = d.Download(ctx, arg); err == nil {
			fmt.Printf("Saved %s\n", path)
		}
	case "schema":
		schema, perr := models.ParseSchema(arg)
		if perr != nil {
			fmt.Printf("Error: %v\n", perr)
			return false
		}
		d.SetSchema(schema)
		if serr := config.SaveSchema(schema); serr != nil {
			fmt.Printf("Warning: schema not saved: %v\n", serr)
		}
		// The poller refetches in the background.
		return false
	case "refresh":
		err = d.Refresh(ctx)
	case "logout":
		logout()
		return true
	case "quit", "exit", "q":
		return true
	case "help", "?":
		fmt.Println(dashboardHelp)
		return false
	default:
		fmt.Printf("Unknown command %q. Type 'help' for a list.\n", fields[0])
		return false
	}

	if err != nil && !errors.Is(err, dashboard.ErrSuperseded) {
		fmt.Printf("Error: %v\n", err)
	}
	if rerr := dashboard.Render(os.Stdout, d.Snapshot()); rerr != nil {
		fmt.Printf("Error: %v\n", rerr)
	}
	return false
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
