package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/dcabot/internal/domain"
)

// FormatOutcome renders one pair outcome as a title and a plain-text body.
func FormatOutcome(o domain.PairOutcome) (string, string) {
	var b strings.Builder
	var title string

	switch o.Status {
	case domain.OutcomePlaced:
		title = "Order placed: " + o.ProductID
		if o.Order != nil && o.Order.Paper {
			title = "[paper] " + title
		}
		orderID := ""
		if o.Order != nil {
			orderID = o.Order.OrderID
		}
		fmt.Fprintf(&b, "Order placed successfully for %s with ID: %s\n", o.ProductID, orderID)
		if sz := o.Sizing; sz != nil {
			fmt.Fprintf(&b, "Size: %s @ %s (%.2f USD)\n", sz.BaseSize.StringFixed(8), sz.LimitPrice.String(), sz.EffectiveUSD)
		}
	case domain.OutcomeSkipped:
		title = "Order skipped: " + o.ProductID
		fmt.Fprintf(&b, "Skipped %s: %s\n", o.ProductID, o.Reason)
	default:
		title = "Order failed: " + o.ProductID
		fmt.Fprintf(&b, "Error placing order for %s: %s\n", o.ProductID, o.Reason)
		if o.Kind != "" {
			fmt.Fprintf(&b, "Kind: %s\n", o.Kind)
		}
	}

	if sz := o.Sizing; sz != nil && sz.Zone != "" {
		b.WriteString(formatMultipliers(sz))
	}
	return title, strings.TrimRight(b.String(), "\n")
}

func formatMultipliers(sz *domain.SizingResult) string {
	dip := ""
	if sz.DeepDip {
		dip = ", deep dip"
	}
	capped := ""
	if sz.Capped {
		capped = " (capped)"
	}
	return fmt.Sprintf(
		"Price: %.2f, short avg: %.2f, medium avg: %.2f\n"+
			"Multiplier: %.4f = clamp(dynamic %.4f [%s] x window %.4f [%s] x reserve %.4f%s)\n"+
			"Spend: %.2f USD%s\n",
		sz.Price, sz.ShortAvg, sz.MediumAvg,
		sz.Multiplier, sz.Dynamic, sz.Zone, sz.Window, sz.WindowZone, sz.Reserve, dip,
		sz.EffectiveUSD, capped,
	)
}

// FormatSummary renders the end-of-run summary.
func FormatSummary(r domain.RunReport) (string, string) {
	title := "DCA run finished"
	if r.DryRun {
		title += " (dry run)"
	}

	counts := r.Counts()
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s: %d placed, %d skipped, %d failed in %s\n",
		r.RunID,
		counts[domain.OutcomePlaced],
		counts[domain.OutcomeSkipped],
		counts[domain.OutcomeFailed],
		r.Duration().Round(time.Millisecond),
	)
	for _, o := range r.Outcomes {
		switch {
		case o.Status == domain.OutcomePlaced && o.Sizing != nil:
			fmt.Fprintf(&b, "- %s: placed %.2f USD @ %s\n", o.ProductID, o.Sizing.EffectiveUSD, o.Sizing.LimitPrice.String())
		case o.Kind != "":
			fmt.Fprintf(&b, "- %s: %s (%s)\n", o.ProductID, o.Status, o.Kind)
		default:
			fmt.Fprintf(&b, "- %s: %s\n", o.ProductID, o.Status)
		}
	}
	return title, strings.TrimRight(b.String(), "\n")
}
