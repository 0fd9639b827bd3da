package rfm

import (
	"testing"

	"github.com/dvloznov/rfm-segmentation/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		r, f, m int
		want    domain.Segment
	}{
		{5, 5, 5, domain.SegmentChampions},
		{5, 5, 4, domain.SegmentLoyalCustomers},
		{5, 4, 5, domain.SegmentLoyalCustomers},
		{5, 4, 4, domain.SegmentLoyalCustomers},
		{5, 1, 5, domain.SegmentNewCustomers},
		{5, 2, 1, domain.SegmentNewCustomers},
		{5, 3, 2, domain.SegmentOthers},
		{5, 3, 5, domain.SegmentOthers},
		{5, 5, 3, domain.SegmentOthers},
		{4, 5, 5, domain.SegmentPotentialLoyalists},
		{3, 1, 4, domain.SegmentPotentialLoyalists},
		{4, 5, 3, domain.SegmentOthers},
		{2, 5, 5, domain.SegmentChurnedCustomers},
		{1, 1, 1, domain.SegmentChurnedCustomers},
		{3, 3, 3, domain.SegmentOthers},
	}

	for _, tt := range tests {
		got := Classify(tt.r, tt.f, tt.m)
		assert.Equal(t, tt.want, got, "scores %d%d%d", tt.r, tt.f, tt.m)
	}
}

func TestClassify_OnlyPerfectScoresAreChampions(t *testing.T) {
	for r := 1; r <= 5; r++ {
		for f := 1; f <= 5; f++ {
			for m := 1; m <= 5; m++ {
				isChampion := Classify(r, f, m) == domain.SegmentChampions
				assert.Equal(t, r == 5 && f == 5 && m == 5, isChampion, "scores %d%d%d", r, f, m)
			}
		}
	}
}
