// Package rfm turns cleaned transactions into scored and segmented customer
// records. Computation is a pure function of its input: the reference date
// comes from the data, never from the clock.
package rfm

import (
	"fmt"
	"slices"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/rfm-segmentation/internal/domain"
)

var (
	recencyLabels   = [bins]int{5, 4, 3, 2, 1}
	ascendingLabels = [bins]int{1, 2, 3, 4, 5}
)

// Table is the finalized result of a computation. It cannot be modified
// after Compute returns it.
type Table struct {
	referenceDate civil.Date
	records       []domain.CustomerRFM
}

// Records returns a copy of the customer records in ascending customer ID
// order.
func (t *Table) Records() []domain.CustomerRFM {
	return slices.Clone(t.records)
}

// Len returns the number of customers.
func (t *Table) Len() int {
	return len(t.records)
}

// ReferenceDate returns the day recency is measured from. It is the zero
// date for an empty table.
func (t *Table) ReferenceDate() civil.Date {
	return t.referenceDate
}

// Compute aggregates txs per customer, scores each metric into quintiles and
// assigns a segment. An empty input yields an empty table. A population that
// cannot be cut into five populated bins yields a ScoreComputationError.
func Compute(txs []domain.Transaction) (*Table, error) {
	metrics, reference := aggregate(txs)
	if len(metrics) == 0 {
		return &Table{}, nil
	}

	recency := make([]float64, len(metrics))
	frequency := make([]float64, len(metrics))
	monetary := make([]float64, len(metrics))
	for i, c := range metrics {
		recency[i] = float64(c.RecencyDays)
		frequency[i] = float64(c.Frequency)
		monetary[i] = c.Monetary.InexactFloat64()
	}

	rScores, err := qcut(recency, recencyLabels)
	if err != nil {
		return nil, &domain.ScoreComputationError{Metric: domain.MetricRecency, Reason: err.Error()}
	}
	// Frequency counts tie heavily, so they are cut on a stable rank instead.
	fScores, err := qcut(rankFirst(frequency), ascendingLabels)
	if err != nil {
		return nil, &domain.ScoreComputationError{Metric: domain.MetricFrequency, Reason: err.Error()}
	}
	mScores, err := qcut(monetary, ascendingLabels)
	if err != nil {
		return nil, &domain.ScoreComputationError{Metric: domain.MetricMonetary, Reason: err.Error()}
	}

	records := make([]domain.CustomerRFM, len(metrics))
	for i, c := range metrics {
		r, f, m := rScores[i], fScores[i], mScores[i]
		records[i] = domain.CustomerRFM{
			CustomerID:       c.CustomerID,
			LastPurchaseDate: c.LastPurchase,
			RecencyDays:      c.RecencyDays,
			Frequency:        c.Frequency,
			Monetary:         c.Monetary,
			RScore:           r,
			FScore:           f,
			MScore:           m,
			RFMCode:          fmt.Sprintf("%d%d%d", r, f, m),
			Segment:          Classify(r, f, m),
		}
	}

	return &Table{referenceDate: reference, records: records}, nil
}

// NewTable builds a table from precomputed records. The records are copied.
func NewTable(referenceDate civil.Date, records []domain.CustomerRFM) *Table {
	return &Table{referenceDate: referenceDate, records: slices.Clone(records)}
}
