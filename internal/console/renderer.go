// Package console renders service output as plain text tables.
package console

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/noah-isme/ecotrack-console/internal/models"
	"github.com/noah-isme/ecotrack-console/internal/service"
)

var _ service.Renderer = (*Renderer)(nil)

var indicatorLabels = map[string]string{
	models.IndicatorPM25:              "PM2.5",
	models.IndicatorPM10:              "PM10",
	models.IndicatorNO2:               "NO2",
	models.IndicatorCO2:               "CO2",
	models.IndicatorTemperature:       "Temperature",
	models.IndicatorHumidity:          "Humidity",
	models.IndicatorWasteProduction:   "Waste",
	models.IndicatorEnergyConsumption: "Energy",
	models.IndicatorWindSpeed:         "Wind speed",
	models.IndicatorPressure:          "Pressure",
}

// IndicatorLabel returns the display name of an indicator type.
func IndicatorLabel(kind string) string {
	if label, ok := indicatorLabels[kind]; ok {
		return label
	}
	return kind
}

// Options tunes the renderer.
type Options struct {
	// Verbose also prints loading and action state changes.
	Verbose  bool
	Location *time.Location
}

// Renderer writes to an io.Writer. Writes are serialised so output from
// concurrent loads never interleaves.
type Renderer struct {
	mu   sync.Mutex
	out  io.Writer
	opts Options
}

// New builds a Renderer.
func New(out io.Writer, opts Options) *Renderer {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Renderer{out: out, opts: opts}
}

func (r *Renderer) ShowMessage(msg models.Message) {
	prefix := "info"
	switch msg.Level {
	case models.MessageSuccess:
		prefix = "ok"
	case models.MessageError:
		prefix = "error"
	}
	r.printf("[%s] %s\n", prefix, msg.Text)
}

func (r *Renderer) SetVisibility(v models.Visibility) {
	if !v.Authenticated {
		r.printf("session: signed out\n")
		return
	}
	who := "unknown user"
	if v.User != nil {
		who = describeUser(*v.User)
	}
	tabs := "dashboard, stats"
	if v.AdminTab {
		tabs += ", admin"
	}
	r.printf("session: signed in as %s (tabs: %s)\n", who, tabs)
}

func (r *Renderer) ShowTab(tab models.Tab) {
	r.printf("== %s ==\n", strings.ToUpper(string(tab)))
}

func (r *Renderer) SetLoading(section models.Section, loading bool) {
	if !r.opts.Verbose || !loading {
		return
	}
	r.printf("loading %s...\n", section)
}

func (r *Renderer) SetActionEnabled(action models.Action, enabled bool) {
	if !r.opts.Verbose {
		return
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	r.printf("%s %s\n", action, state)
}

func (r *Renderer) RenderZones(zones []models.Zone) {
	r.table(func(w io.Writer) {
		fmt.Fprintln(w, "ZONE\tNAME\tPOSTAL CODE")
		for _, z := range zones {
			fmt.Fprintf(w, "%d\t%s\t%s\n", z.ID, z.Name, z.PostalCode)
		}
	})
}

func (r *Renderer) RenderIndicators(indicators []models.Indicator) {
	if len(indicators) == 0 {
		r.printf("no indicators for the selected filters\n")
		return
	}
	r.table(func(w io.Writer) {
		fmt.Fprintln(w, "TIME\tINDICATOR\tVALUE\tZONE\tQUALITY")
		for _, ind := range indicators {
			ts := "-"
			if !ind.Timestamp.IsZero() {
				ts = ind.Timestamp.In(r.opts.Location).Format("2006-01-02 15:04")
			}
			quality := string(ind.Quality())
			if quality == "" {
				quality = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s %s\t%d\t%s\n", ts, IndicatorLabel(ind.Type), formatFloat(ind.Value), ind.Unit, ind.ZoneID, quality)
		}
	})
}

func (r *Renderer) RenderAirStats(stats []models.AirStat) {
	if len(stats) == 0 {
		r.printf("no statistics for this period\n")
		return
	}
	r.table(func(w io.Writer) {
		fmt.Fprintln(w, "ZONE\tAVERAGE (µg/m³)\tDATA POINTS")
		for _, s := range stats {
			fmt.Fprintf(w, "%s\t%.1f\t%d\n", s.ZoneName, s.AverageQuality, s.DataPoints)
		}
	})
}

func (r *Renderer) RenderUsers(users []models.User, form models.AdminFormState, currentUserID int) {
	r.table(func(w io.Writer) {
		fmt.Fprintln(w, "\tID\tNAME\tEMAIL\tROLE\tSTATUS")
		for _, u := range users {
			marker := ""
			switch {
			case form.Editing(u.ID):
				marker = ">"
			case u.ID == currentUserID:
				marker = "*"
			}
			status := "active"
			if !u.IsActive {
				status = "inactive"
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n", marker, u.ID, u.FullName, u.Email, u.Role, status)
		}
	})
	switch form.Mode {
	case models.AdminCreating:
		r.printf("form: creating a new user\n")
	case models.AdminEditing:
		r.printf("form: editing user %d\n", form.UserID)
	}
}

func (r *Renderer) RenderIngestion(result models.IngestionResult) {
	d := result.Details
	r.printf("ingested: weather %d, air quality %d, energy %d (total %d)\n", d.WeatherData, d.AirQualityData, d.EnergyData, d.Total)
}

// RenderStatus prints the session summary used by whoami.
func (r *Renderer) RenderStatus(session models.Session, tab models.Tab) {
	r.SetVisibility(session.Visibility())
	if tab != models.TabNone {
		r.printf("active tab: %s\n", tab)
	}
}

func (r *Renderer) printf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func (r *Renderer) table(write func(w io.Writer)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tw := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	write(tw)
	_ = tw.Flush()
}

func describeUser(u models.User) string {
	if !u.Known() {
		if u.Email == "" {
			return "unknown user"
		}
		return u.Email + " (role unknown)"
	}
	name := u.FullName
	if name == "" {
		name = u.Email
	}
	return fmt.Sprintf("%s <%s> [%s]", name, u.Email, u.Role)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
