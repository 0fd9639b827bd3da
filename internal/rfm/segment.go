package rfm

import "github.com/dvloznov/rfm-segmentation/internal/domain"

type segmentRule struct {
	segment domain.Segment
	matches func(r, f, m int) bool
}

// segmentRules are evaluated top-down and the first match wins. The rules
// overlap and do not cover every code, so their order is part of the
// contract.
var segmentRules = []segmentRule{
	{domain.SegmentChampions, func(r, f, m int) bool {
		return r == 5 && f == 5 && m == 5
	}},
	{domain.SegmentLoyalCustomers, func(r, f, m int) bool {
		return r == 5 && in(f, 4, 5) && in(m, 4, 5)
	}},
	{domain.SegmentNewCustomers, func(r, f, m int) bool {
		return r == 5 && in(f, 1, 2)
	}},
	{domain.SegmentPotentialLoyalists, func(r, f, m int) bool {
		return in(r, 3, 4) && in(m, 4, 5)
	}},
	{domain.SegmentChurnedCustomers, func(r, f, m int) bool {
		return in(r, 1, 2)
	}},
}

// Classify maps R, F and M scores to a segment.
func Classify(r, f, m int) domain.Segment {
	for _, rule := range segmentRules {
		if rule.matches(r, f, m) {
			return rule.segment
		}
	}
	return domain.SegmentOthers
}

func in(score int, allowed ...int) bool {
	for _, a := range allowed {
		if score == a {
			return true
		}
	}
	return false
}
