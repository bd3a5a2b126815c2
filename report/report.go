// Package report charts recorded pulse sessions as an HTML page.
package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/noriah/pulsecat/event"
	"github.com/noriah/pulsecat/event/record"
	"github.com/pkg/errors"
)

// Store is the part of record.Store a report reads.
type Store interface {
	Sessions() ([]record.Session, error)
	Records(session string) ([]event.Event, error)
}

// Render writes a page with one BPM chart per session. With no ids given
// every session is charted.
func Render(w io.Writer, store Store, ids ...string) error {
	sessions, err := store.Sessions()
	if err != nil {
		return err
	}

	if len(ids) > 0 {
		sessions, err = pick(sessions, ids)
		if err != nil {
			return err
		}
	}

	page := components.NewPage()
	page.PageTitle = "pulsecat sessions"

	for _, sess := range sessions {
		records, err := store.Records(sess.ID)
		if err != nil {
			return err
		}

		page.AddCharts(Chart(sess, records))
	}

	return errors.Wrap(page.Render(w), "failed to render report")
}

func pick(sessions []record.Session, ids []string) ([]record.Session, error) {
	byID := make(map[string]record.Session, len(sessions))
	for _, s := range sessions {
		byID[s.ID] = s
	}

	out := make([]record.Session, 0, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			return nil, errors.Errorf("no session %q", id)
		}
		out = append(out, s)
	}

	return out, nil
}

// Chart draws the smoothed BPM and the raw estimate of a session against
// seconds since its start. Invalid estimates are left as gaps.
func Chart(sess record.Session, records []event.Event) *charts.Line {
	x := make([]string, len(records))
	smoothed := make([]opts.LineData, len(records))
	estimate := make([]opts.LineData, len(records))

	for i, ev := range records {
		x[i] = fmt.Sprintf("%.1f", ev.Time.Sub(sess.Start).Seconds())
		smoothed[i] = opts.LineData{Value: ev.BPM}

		if ev.Valid {
			estimate[i] = opts.LineData{Value: ev.Hz * 60}
		} else {
			estimate[i] = opts.LineData{Value: "-"}
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("session %s", sess.ID),
			Subtitle: fmt.Sprintf("%s  %d estimates  mean %.1f BPM",
				sess.Start.Format("2006-01-02 15:04:05"), sess.Records, sess.MeanBPM),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "s", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "BPM", Scale: opts.Bool(true)}),
	)

	line.SetXAxis(x).
		AddSeries("smoothed", smoothed).
		AddSeries("estimate", estimate,
			charts.WithLineChartOpts(opts.LineChart{ConnectNulls: opts.Bool(false)}))

	return line
}
