package domain

// Segment is a named customer category derived from the three RFM scores.
type Segment string

const (
	SegmentChampions          Segment = "Champions"
	SegmentLoyalCustomers     Segment = "Loyal Customers"
	SegmentNewCustomers       Segment = "New Customers"
	SegmentPotentialLoyalists Segment = "Potential Loyalists"
	SegmentChurnedCustomers   Segment = "Churned Customers"
	SegmentOthers             Segment = "Others"
)

// Segments lists every segment in classification rule order.
func Segments() []Segment {
	return []Segment{
		SegmentChampions,
		SegmentLoyalCustomers,
		SegmentNewCustomers,
		SegmentPotentialLoyalists,
		SegmentChurnedCustomers,
		SegmentOthers,
	}
}

// Metric identifies one of the three RFM dimensions.
type Metric string

const (
	MetricRecency   Metric = "recency"
	MetricFrequency Metric = "frequency"
	MetricMonetary  Metric = "monetary"
)
