package dashboard

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/uofuseismo/cct-review/internal/quality"
	"github.com/uofuseismo/cct-review/pkg/models"
)

// USGSLink is the public event page of a UUSS event.
func USGSLink(eventID string) string {
	return "https://earthquake.usgs.gov/earthquakes/eventpage/uu" + eventID + "/executive"
}

// FormatMagnitude renders a catalog magnitude as "X.XX M<type>".
func FormatMagnitude(m *float64, magType string) string {
	if m == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f M%s", *m, magType)
}

func formatMwCoda(m *float64) string {
	if m == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *m)
}

func enabled(on, loading bool) string {
	switch {
	case loading:
		return "loading"
	case on:
		return "enabled"
	default:
		return "disabled"
	}
}

// Render writes the whole dashboard: header, selected event, controls,
// notices and the event table.
func Render(w io.Writer, s Snapshot) error {
	user, perm := "-", "-"
	if s.Session != nil {
		user, perm = s.Session.User, string(s.Session.Permissions)
	}
	selected := s.SelectedID
	if selected == "" {
		selected = "none"
	}
	fmt.Fprintf(w, "Schema: %s   User: %s (%s)   Selected: %s\n", s.Schema, user, perm, selected)
	if !s.LastRefresh.IsZero() {
		fmt.Fprintf(w, "Catalog refreshed %s UTC\n", s.LastRefresh.UTC().Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintln(w)

	if s.Selected != nil {
		if err := RenderDetail(w, s.Selected); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	c := s.Controls
	fmt.Fprintf(w, "Accept: %s   Reject: %s   Download: %s\n",
		enabled(c.Accept, c.AcceptLoading),
		enabled(c.Reject, c.RejectLoading),
		enabled(c.Download, c.DownloadLoading))
	for _, n := range s.Notices {
		fmt.Fprintf(w, "[%s] %s %s\n", strings.ToUpper(string(n.Level)), n.Time.Format("15:04:05"), n.Message)
	}
	fmt.Fprintln(w)

	switch {
	case !s.Loaded:
		fmt.Fprintln(w, "Loading events...")
		return nil
	case len(s.Entries) == 0:
		fmt.Fprintln(w, "No events found.")
		return nil
	}
	return RenderCatalog(w, s.Entries, s.SelectedID)
}

// RenderCatalog writes the event table. The selected row is marked with '>'.
func RenderCatalog(w io.Writer, entries []models.CatalogEntry, selectedID string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, " \tIDENTIFIER\tMAGNITUDE\tORIGIN TIME (UTC)\tLATITUDE\tLONGITUDE\tDEPTH (KM)\tREVIEW")
	fmt.Fprintln(tw, " \t----------\t---------\t-----------------\t--------\t---------\t----------\t------")
	for _, e := range entries {
		mark := " "
		if e.EventIdentifier == selectedID {
			mark = ">"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.4f\t%.4f\t%.2f\t%s\n",
			mark,
			e.EventIdentifier,
			FormatMagnitude(e.AuthoritativeMagnitude, e.AuthoritativeMagnitudeType),
			e.OriginTime.String(),
			e.Latitude,
			e.Longitude,
			e.Depth,
			e.ReviewStatus,
		)
	}
	return tw.Flush()
}

// RenderDetail writes the fit table row and the spectral summary of ev.
// Lightweight events only get the fit table.
func RenderDetail(w io.Writer, ev *models.Event) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "IDENTIFIER\tMW,CODA\tCATALOG\tISSUES\tEVENT PAGE")
	fmt.Fprintln(tw, "----------\t-------\t-------\t------\t----------")

	mwCoda, issues := "...", "..."
	catalogMag := FormatMagnitude(ev.Entry.AuthoritativeMagnitude, ev.Entry.AuthoritativeMagnitudeType)
	if ev.Detail != nil {
		mwCoda = formatMwCoda(ev.Detail.CCTMagnitude)
		issues = strings.Join(quality.Classify(ev.Detail).Labels(), " ")
		// Same magnitude the IM flag was computed from.
		catalogMag = FormatMagnitude(ev.Detail.AuthoritativeMagnitude, ev.Detail.AuthoritativeMagnitudeType)
	}
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
		ev.ID(),
		mwCoda,
		catalogMag,
		issues,
		USGSLink(ev.ID()),
	)
	if err := tw.Flush(); err != nil {
		return err
	}
	if ev.Detail == nil {
		return nil
	}

	fit := ev.Detail.SpectralFit
	fmt.Fprintf(w, "\nSpectral fit: %d points, lower bound %d points, upper bound %d points\n",
		len(fit.Fit.Points()), len(fit.BruneLowerBound.Points()), len(fit.BruneUpperBound.Points()))
	if len(ev.Detail.StationMeasurements) == 0 {
		fmt.Fprintln(w, "No station measurements.")
		return nil
	}

	tw = tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "STATION\tMEASUREMENTS\tWORST RESIDUAL")
	fmt.Fprintln(tw, "-------\t------------\t--------------")
	for _, st := range ev.Detail.StationMeasurements {
		worst := "-"
		if r, ok := worstResidual(st.Measurements); ok {
			worst = fmt.Sprintf("%+.2f", r)
			if math.Abs(r) >= quality.ResidualThreshold {
				worst += " *"
			}
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", st.Station, len(st.Measurements), worst)
	}
	return tw.Flush()
}

func worstResidual(ms []models.Measurement) (float64, bool) {
	var worst float64
	found := false
	for _, m := range ms {
		if m.Residual == nil {
			continue
		}
		if !found || math.Abs(*m.Residual) > math.Abs(worst) {
			worst = *m.Residual
			found = true
		}
	}
	return worst, found
}
