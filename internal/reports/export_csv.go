package reports

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteClassSummaryCSV streams a class summary as CSV: a header block
// with the aggregates followed by the debtor rows.
func WriteClassSummaryCSV(w io.Writer, summary *ClassSummary) error {
	cw := csv.NewWriter(w)

	header := [][]string{
		{"class_level", summary.ClassLevel},
		{"session_id", summary.Period.SessionID},
		{"term_id", summary.Period.TermID},
		{"students", fmt.Sprintf("%d", summary.Students)},
		{"expected", summary.Expected.StringFixed(2)},
		{"collected", summary.Collected.StringFixed(2)},
		{"outstanding", summary.Outstanding.StringFixed(2)},
		{"collection_rate", summary.CollectionRate.String()},
		{},
		{"student_id", "full_name", "billed", "paid", "outstanding"},
	}
	for _, row := range header {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	for _, o := range summary.OwingStudents {
		if err := cw.Write([]string{o.StudentID, o.FullName, o.Billed.StringFixed(2), o.Paid.StringFixed(2), o.Outstanding.StringFixed(2)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
