// Package report renders ledger rows and pay periods as text tables or CSV.
package report

import (
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/simmonsmd7/inkflow-sub000/commission"
)

// Format selects the rendering.
type Format int

const (
	Table Format = iota
	CSV
)

var commissionHeader = table.Row{
	"Commission", "Booking", "Artist", "Completed", "Rule", "Kind",
	"Service", "Studio", "Artist payout", "Tips", "Tips artist", "Tips studio", "Period",
}

// Commissions writes one line per ledger row plus a totals footer.
func Commissions(w io.Writer, rows []commission.EarnedCommission, f Format) error {
	tw := newWriter(commissionHeader, 6, 11)
	for _, c := range rows {
		tw.AppendRow(table.Row{
			string(c.ID), string(c.BookingID), string(c.ArtistID),
			c.CompletedAt.UTC().Format(time.RFC3339),
			c.Snapshot.RuleName, string(c.Snapshot.Kind),
			c.ServiceTotal.String(), c.StudioCommission.String(), c.ArtistPayout.String(),
			c.Tips.String(), c.TipArtistShare.String(), c.TipStudioShare.String(),
			string(c.PayPeriodID),
		})
	}
	if f == Table {
		t := commission.SumTotals(rows)
		tw.AppendFooter(table.Row{
			"Total", strconv.Itoa(t.Count), "", "", "", "",
			t.ServiceTotal.String(), t.StudioCommission.String(), t.ArtistPayout.String(),
			t.Tips.String(), t.TipArtistShare.String(), t.TipStudioShare.String(), "",
		})
	}
	return render(w, tw, f)
}

var periodHeader = table.Row{
	"Period", "Start", "End", "Status", "Count",
	"Service", "Studio", "Artist payout", "Tips", "Tips artist", "Tips studio", "Reference",
}

// Periods writes one line per pay period.
func Periods(w io.Writer, periods []commission.PayPeriod, f Format) error {
	tw := newWriter(periodHeader, 4, 10)
	for _, p := range periods {
		t := p.Totals
		tw.AppendRow(table.Row{
			string(p.ID), p.StartDate.Format(time.DateOnly), p.EndDate.Format(time.DateOnly),
			string(p.Status), strconv.Itoa(t.Count),
			t.ServiceTotal.String(), t.StudioCommission.String(), t.ArtistPayout.String(),
			t.Tips.String(), t.TipArtistShare.String(), t.TipStudioShare.String(),
			p.PayoutReference,
		})
	}
	return render(w, tw, f)
}

var breakdownHeader = table.Row{
	"Artist", "Count", "Service", "Studio", "Artist payout", "Tips artist", "Owed to artist",
}

// Breakdown writes per-artist totals. "Owed to artist" is the payout plus
// the artist's share of tips.
func Breakdown(w io.Writer, rows []commission.ArtistTotals, f Format) error {
	tw := newWriter(breakdownHeader, 1, 6)
	for _, a := range rows {
		t := a.Totals
		tw.AppendRow(table.Row{
			string(a.ArtistID), strconv.Itoa(t.Count),
			t.ServiceTotal.String(), t.StudioCommission.String(), t.ArtistPayout.String(),
			t.TipArtistShare.String(), (t.ArtistPayout + t.TipArtistShare).String(),
		})
	}
	return render(w, tw, f)
}

// newWriter right-aligns the numeric columns first..last (0-based, inclusive).
func newWriter(header table.Row, first, last int) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(header)

	configs := make([]table.ColumnConfig, 0, len(header))
	for i := range header {
		align := text.AlignLeft
		if i >= first && i <= last {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)
	return tw
}

func render(w io.Writer, tw table.Writer, f Format) error {
	var out string
	if f == CSV {
		out = tw.RenderCSV()
	} else {
		out = tw.Render()
	}
	_, err := io.WriteString(w, out+"\n")
	return err
}
