package order

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Surfinbird-star/aas2/internal/model"
)

// ExportSheet is the worksheet name of the order export.
const ExportSheet = "Заказы"

// ExportDateLayout formats creation dates in the export.
const ExportDateLayout = "02.01.2006 15:04"

// ExportHeaders are the fixed export columns.
var ExportHeaders = []string{
	"ID заказа",
	"Дата создания",
	"Клиент",
	"Email",
	"Количество товаров",
	"Статус",
}

// ExportFilename names the export file for the given day.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("Заказы_AAS_%s.xlsx", now.Format("2006-01-02"))
}

// WriteXLSX writes orders as a spreadsheet with one row per order. Orders
// must have their items loaded for the quantity column. Dates are shown in
// now's location.
func WriteXLSX(w io.Writer, orders []model.Order, now time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ExportSheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	header := make([]any, len(ExportHeaders))
	for i, h := range ExportHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(ExportSheet, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	if err := f.SetCellStyle(ExportSheet, "A1", "F1", bold); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}

	for i, o := range orders {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			o.ID,
			o.CreatedAt.In(now.Location()).Format(ExportDateLayout),
			o.CustomerName,
			o.CustomerEmail,
			o.ItemCount(),
			o.Status.Label(),
		}
		if err := f.SetSheetRow(ExportSheet, cell, &row); err != nil {
			return fmt.Errorf("writing order %d: %w", o.ID, err)
		}
	}

	if err := f.SetColWidth(ExportSheet, "A", "A", 12); err != nil {
		return err
	}
	if err := f.SetColWidth(ExportSheet, "B", "F", 22); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing spreadsheet: %w", err)
	}
	return nil
}
