package report

import (
	"slices"

	"github.com/dvloznov/rfm-segmentation/internal/domain"
	"github.com/dvloznov/rfm-segmentation/internal/rfm"
	"github.com/shopspring/decimal"
)

// SegmentSummary describes the customers that landed in one segment.
type SegmentSummary struct {
	Segment       domain.Segment  `json:"segment"`
	Customers     int             `json:"customers"`
	MeanRecency   float64         `json:"mean_recency_days"`
	MeanFrequency float64         `json:"mean_frequency"`
	MeanMonetary  decimal.Decimal `json:"mean_monetary"`
}

// Summarize groups the table by segment. Only segments with at least one
// customer are returned, largest first; equal counts keep rule order.
func Summarize(table *rfm.Table) []SegmentSummary {
	type totals struct {
		count     int
		recency   int
		frequency int
		monetary  decimal.Decimal
	}

	bySegment := make(map[domain.Segment]*totals)
	for _, r := range table.Records() {
		t, ok := bySegment[r.Segment]
		if !ok {
			t = &totals{monetary: decimal.Zero}
			bySegment[r.Segment] = t
		}
		t.count++
		t.recency += r.RecencyDays
		t.frequency += r.Frequency
		t.monetary = t.monetary.Add(r.Monetary)
	}

	var out []SegmentSummary
	for _, segment := range domain.Segments() {
		t, ok := bySegment[segment]
		if !ok {
			continue
		}
		n := float64(t.count)
		out = append(out, SegmentSummary{
			Segment:       segment,
			Customers:     t.count,
			MeanRecency:   float64(t.recency) / n,
			MeanFrequency: float64(t.frequency) / n,
			MeanMonetary:  t.monetary.Div(decimal.NewFromInt(int64(t.count))).Round(2),
		})
	}

	slices.SortStableFunc(out, func(a, b SegmentSummary) int {
		return b.Customers - a.Customers
	})
	return out
}
