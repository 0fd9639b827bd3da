package report

import (
	"encoding/json"
	"fmt"
	"io"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/rfm-segmentation/internal/domain"
	"github.com/dvloznov/rfm-segmentation/internal/rfm"
)

// Document is the JSON form of a table.
type Document struct {
	ReferenceDate *civil.Date          `json:"reference_date,omitempty"`
	CustomerCount int                  `json:"customer_count"`
	Customers     []domain.CustomerRFM `json:"customers"`
	Segments      []SegmentSummary     `json:"segments"`
}

// NewDocument builds the JSON document for table.
func NewDocument(table *rfm.Table) Document {
	doc := Document{
		CustomerCount: table.Len(),
		Customers:     table.Records(),
		Segments:      Summarize(table),
	}
	if table.Len() > 0 {
		ref := table.ReferenceDate()
		doc.ReferenceDate = &ref
	}
	if doc.Customers == nil {
		doc.Customers = []domain.CustomerRFM{}
	}
	if doc.Segments == nil {
		doc.Segments = []SegmentSummary{}
	}
	return doc
}

// WriteJSON writes table as an indented Document.
func WriteJSON(w io.Writer, table *rfm.Table) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewDocument(table)); err != nil {
		return fmt.Errorf("WriteJSON: encoding document: %w", err)
	}
	return nil
}
