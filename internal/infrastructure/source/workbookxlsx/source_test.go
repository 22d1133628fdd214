package workbookxlsx

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
)

func writeWorkbook(t *testing.T, build func(f *excelize.File)) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	build(f)

	path := filepath.Join(t.TempDir(), "book.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

func TestLoadDocumentFindsHeaderBelowTitleRows(t *testing.T) {
	path := writeWorkbook(t, func(f *excelize.File) {
		_ = f.SetSheetName("Sheet1", "Pricing")
		_ = f.SetSheetRow("Pricing", "A1", &[]any{"Quarterly Tariff"})
		_ = f.SetSheetRow("Pricing", "A2", &[]any{"Service", "Min Charge", "Currency"})
		_ = f.SetSheetRow("Pricing", "A3", &[]any{"LCL", 100, "USD"})
		_ = f.SetSheetRow("Pricing", "A4", &[]any{"FCL", 250, "USD"})
	})

	doc, err := New().LoadDocument(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadDocument() error = %v", err)
	}
	if len(doc.Sheets) != 1 {
		t.Fatalf("expected 1 sheet, got %d", len(doc.Sheets))
	}

	sheet := doc.Sheets[0]
	if sheet.Header("col_1") != "Min Charge" {
		t.Fatalf("expected header row detected, got %q", sheet.Header("col_1"))
	}
	if len(sheet.Rows) != 2 {
		t.Fatalf("expected 2 data rows, got %d", len(sheet.Rows))
	}
	if got := sheet.Rows[0]["col_1"]; got != "100" {
		t.Fatalf("expected cell rendered as text, got %q", got)
	}
}

func TestLoadDocumentSkipsNonDataSheets(t *testing.T) {
	path := writeWorkbook(t, func(f *excelize.File) {
		_ = f.SetSheetName("Sheet1", "Rates")
		_ = f.SetSheetRow("Rates", "A1", &[]any{"Service", "Rate"})
		_ = f.SetSheetRow("Rates", "A2", &[]any{"LCL", "100"})
		_ = f.SetSheetRow("Rates", "A3", &[]any{"FCL", "250"})

		_, _ = f.NewSheet("Instructions")
		_ = f.SetSheetRow("Instructions", "A1", &[]any{"How to", "fill this"})
		_ = f.SetSheetRow("Instructions", "A2", &[]any{"step", "one"})
		_ = f.SetSheetRow("Instructions", "A3", &[]any{"step", "two"})

		_, _ = f.NewSheet("Sparse")
		_ = f.SetSheetRow("Sparse", "A1", &[]any{"Only", "Header"})
		_ = f.SetSheetRow("Sparse", "A2", &[]any{"one", "row"})
	})

	doc, err := New().LoadDocument(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadDocument() error = %v", err)
	}
	if len(doc.Sheets) != 1 || doc.Sheets[0].Name != "Rates" {
		t.Fatalf("expected only the Rates sheet, got %v", doc.SheetNames())
	}
}

func TestLoadDocumentPadsShortRows(t *testing.T) {
	path := writeWorkbook(t, func(f *excelize.File) {
		_ = f.SetSheetName("Sheet1", "Rates")
		_ = f.SetSheetRow("Rates", "A1", &[]any{"Service", "Min Charge", "Currency"})
		_ = f.SetSheetRow("Rates", "A2", &[]any{"LCL", 100})
		_ = f.SetSheetRow("Rates", "A3", &[]any{"FCL", 250, "USD"})
	})

	doc, err := New().LoadDocument(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadDocument() error = %v", err)
	}
	sheet := doc.Sheets[0]
	if got := sheet.Rows[0]["col_2"]; got != "" {
		t.Fatalf("expected missing trailing cell to be empty, got %q", got)
	}
	if got := sheet.Rows[1]["col_2"]; got != "USD" {
		t.Fatalf("expected full row preserved, got %q", got)
	}
}

func TestLoadDocumentMissingFileIsInvalidInput(t *testing.T) {
	_, err := New().LoadDocument(context.Background(), filepath.Join(t.TempDir(), "absent.xlsx"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid-input kind, got %v", err)
	}
}
