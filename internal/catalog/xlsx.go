package catalog

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"folio/internal/domain"
)

const (
	elementsSheet = "Elements"
	summarySheet  = "Summary"
)

// XLSX renders the catalog as a workbook with an Elements sheet (same
// columns as elements.csv) and a Summary sheet of per-type counts.
func XLSX(cat *Catalog) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", elementsSheet); err != nil {
		return nil, err
	}
	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(elementsSheet, "A1", &header); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	last, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(elementsSheet, "A1", last, bold); err != nil {
		return nil, err
	}

	for i := range cat.Elements {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := elementCells(&cat.Elements[i])
		if err := f.SetSheetRow(elementsSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
	}
	if err := f.SetPanes(elementsSheet, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}
	rows := [][]interface{}{
		{"Type", "Count"},
	}
	for _, l := range domain.AllLabels {
		if n := cat.Statistics.ByType[string(l)]; n > 0 {
			rows = append(rows, []interface{}{string(l), n})
		}
	}
	rows = append(rows,
		[]interface{}{"Total", cat.Statistics.TotalElements},
		[]interface{}{"Text extracted", cat.Statistics.TextExtracted},
		[]interface{}{"Image references", cat.Statistics.ImageReferences},
	)
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(summarySheet, cell, &r); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", "B1", bold); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

func elementCells(el *domain.Element) []interface{} {
	return []interface{}{
		el.ElementID,
		el.PageNum,
		string(el.ElementType),
		el.BBox[0], el.BBox[1], el.BBox[2], el.BBox[3],
		el.Confidence,
		el.ReadingOrder,
		el.GroupIndex,
		deref(el.CaptionOf),
		deref(el.ImagePath),
		deref(el.Content),
	}
}
