package merge

import "github.com/gradekeep/gradekeep/pkg/tables"

// MismatchTable renders the ID mismatches as a report table.
func (r *Result) MismatchTable() *tables.Table {
	t := tables.New("failed_id_matches.csv", []string{
		"Student Name", "Email", "Apparent ID (Master)", "Matched ID (Lecture)", "Section",
	})
	for _, mm := range r.Mismatches {
		t.AppendRow([]string{mm.StudentName, mm.Email, mm.SourceID, mm.SectionID, mm.Section})
	}
	return t
}

// OrphanTable renders all orphaned source rows as one report table.
// Sources may carry different columns, so the table takes the union
// in first-seen order.
func (r *Result) OrphanTable() *tables.Table {
	var columns []string
	seen := make(map[string]bool)
	for _, src := range r.Orphans {
		for _, col := range src.Columns {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
	}

	t := tables.New("orphaned_students.csv", columns)
	for _, src := range r.Orphans {
		for i := 0; i < src.NumRows(); i++ {
			row := make([]string, 0, len(columns))
			for _, col := range columns {
				row = append(row, src.Get(i, col))
			}
			t.AppendRow(row)
		}
	}
	return t
}
