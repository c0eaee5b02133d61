// Package report renders reservation exports as xlsx workbooks.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"stablebook/internal/model"
)

var reservationColumns = []string{
	"Reservation ID", "Date", "Start", "End", "Status", "User ID", "Horses", "Created At",
}

// WriteReservations writes one sheet of reservations for a facility to w.
// Times are rendered in the facility's timezone.
func WriteReservations(w io.Writer, facility *model.Facility, reservations []model.Reservation) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(facility.Name)
	f.SetSheetName("Sheet1", sheet)

	if err := writeHeader(f, sheet, reservationColumns); err != nil {
		return err
	}

	loc, err := facility.Location()
	if err != nil {
		return err
	}
	for i, r := range reservations {
		row := []any{
			r.ID,
			r.Start.In(loc).Format("2006-01-02"),
			r.Start.In(loc).Format("15:04"),
			r.End.In(loc).Format("15:04"),
			string(r.Status),
			r.UserID,
			len(r.HorseIDs),
			r.CreatedAt.In(loc).Format(time.RFC3339),
		}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}

	autoFitColumns(f, sheet, len(reservationColumns))

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// sheetName trims to the 31-character Excel limit without splitting a
// multi-byte rune.
func sheetName(name string) string {
	if name == "" {
		name = "Reservations"
	}
	if runes := []rune(name); len(runes) > 31 {
		name = string(runes[:31])
	}
	return name
}

func writeHeader(f *excelize.File, sheet string, columns []string) error {
	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), 1)
		_ = f.SetCellStyle(sheet, startCell, endCell, style)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, rowNum int, row []any) error {
	for i, val := range row {
		cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, val); err != nil {
			return fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	return nil
}

func autoFitColumns(f *excelize.File, sheet string, count int) {
	for i := 1; i <= count; i++ {
		col, err := excelize.ColumnNumberToName(i)
		if err != nil {
			continue
		}
		_ = f.SetColWidth(sheet, col, col, 18)
	}
}
