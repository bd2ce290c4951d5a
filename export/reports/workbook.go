// Package reports implements the report builders: streaming workbook assembly
// for the FAQ and usage-log exports. Builders assemble a skeleton workbook
// locally, upload it once, then fold each analytics page in with a
// download-mutate-upload cycle so no full dataset is ever held in memory.
package reports

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/sifthub/exporter/export"
)

// Header fills, one per sheet family.
const (
	fillGray     = "D3D3D3"
	fillPink     = "FFB6C1"
	fillLavender = "E6E6FA"
)

// Shared metadata strings written into every sheet's filter block.
const (
	filtersAppliedLabel = "Filters applied -"
	usersLabel          = "Users : (All, single user, or comma separated)"
	statusLabel         = "Status: (All, single or comma separated)"
	initiatedFromLabel  = "Initiated from : (All, single source, or comma separated)"
)

// maxSheetName is the workbook format's sheet name limit.
const maxSheetName = 31

// sheetTitle joins a sheet base name with its suffix, clamped to the format
// limit.
func sheetTitle(base, suffix string) string {
	name := base + " - " + suffix
	runes := []rune(name)
	if len(runes) > maxSheetName {
		return string(runes[:maxSheetName])
	}
	return name
}

// setCell writes one cell addressed by (column, row) coordinates.
func setCell(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}

// writeHeader writes a bold, filled header row.
func writeHeader(f *excelize.File, sheet string, row int, fill string, headers ...string) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{fill}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	for i, header := range headers {
		if err := setCell(f, sheet, i+1, row, header); err != nil {
			return err
		}
	}
	first, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, first, last, style)
}

// firstEmptyRow scans column A from start and returns the first row without a
// value.
func firstEmptyRow(f *excelize.File, sheet string, start int) (int, error) {
	row := start
	for {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return 0, err
		}
		value, err := f.GetCellValue(sheet, cell)
		if err != nil {
			return 0, err
		}
		if value == "" {
			return row, nil
		}
		row++
	}
}

// writeRows writes the given rows starting at start, one slice per row.
func writeRows(f *excelize.File, sheet string, start int, rows [][]any) error {
	for i, cells := range rows {
		for j, value := range cells {
			if err := setCell(f, sheet, j+1, start+i, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// appendPage runs one download-mutate-upload cycle: it appends rows to the
// stored workbook at the first empty row of the sheet, scanning from dataRow.
func appendPage(ctx context.Context, store export.WorkbookStore, key, sheet string, dataRow int, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	return mutateWorkbook(ctx, store, key, func(f *excelize.File) error {
		next, err := firstEmptyRow(f, sheet, dataRow)
		if err != nil {
			return err
		}
		return writeRows(f, sheet, next, rows)
	})
}

// mutateWorkbook downloads the workbook under key, applies fn and uploads the
// result back under the same key.
func mutateWorkbook(ctx context.Context, store export.WorkbookStore, key string, fn func(*excelize.File) error) error {
	data, err := store.Download(ctx, key)
	if err != nil {
		return err
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return export.StorageRead(fmt.Sprintf("decode workbook %s", key), err)
	}
	defer f.Close()

	if err := fn(f); err != nil {
		return export.StorageWrite(fmt.Sprintf("mutate workbook %s", key), err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return export.StorageWrite(fmt.Sprintf("encode workbook %s", key), err)
	}
	return store.Upload(ctx, key, buf.Bytes(), export.SpreadsheetMIME)
}

// uploadWorkbook serializes a freshly assembled workbook and uploads it.
func uploadWorkbook(ctx context.Context, store export.WorkbookStore, key string, f *excelize.File) error {
	buf, err := f.WriteToBuffer()
	if err != nil {
		return export.StorageWrite(fmt.Sprintf("encode workbook %s", key), err)
	}
	return store.Upload(ctx, key, buf.Bytes(), export.SpreadsheetMIME)
}

// artifactKey is where builders place their artifact.
func artifactKey(job *export.Job, filename string) string {
	return fmt.Sprintf("exports/%d/%s/%s", job.ClientID, job.EventID, filename)
}

// dropDefaultSheet removes the workbook's initial sheet once real sheets
// exist.
func dropDefaultSheet(f *excelize.File) error {
	return f.DeleteSheet("Sheet1")
}
