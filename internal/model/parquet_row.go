package model

// LineItemRow is the flattened analytics representation of one billable
// line, mirrored by the Parquet schema written by the export command.
type LineItemRow struct {
	AnalysisID string  `parquet:"analysis_id"`
	NoteFile   string  `parquet:"note_file"`
	Code       string  `parquet:"code"`
	Modifier   *string `parquet:"modifier,optional"`
	Units      int32   `parquet:"units"`
	WRVU       float64 `parquet:"wrvu"`
	Status     string  `parquet:"status"`
	Note       *string `parquet:"note,optional"`
	TotalWRVU  float64 `parquet:"analysis_total_wrvu"`
}

// LineItemRows flattens an analysis result into export rows, one per
// billing line, tagged with the source note file.
func LineItemRows(noteFile string, res *AnalysisResult) []LineItemRow {
	rows := make([]LineItemRow, 0, len(res.CurrentBilling.Codes))
	for _, li := range res.CurrentBilling.Codes {
		row := LineItemRow{
			AnalysisID: res.AnalysisID,
			NoteFile:   noteFile,
			Code:       li.Code,
			Units:      int32(li.Units),
			WRVU:       li.WRVU,
			Status:     string(li.Status),
			TotalWRVU:  res.CurrentBilling.TotalWRVU,
		}
		if li.Modifier != ModifierNone {
			m := string(li.Modifier)
			row.Modifier = &m
		}
		if li.Note != "" {
			n := li.Note
			row.Note = &n
		}
		rows = append(rows, row)
	}
	return rows
}
