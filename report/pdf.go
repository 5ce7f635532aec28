package report

import (
	"fmt"
	"io"
	"time"

	"agrodetect/models"

	"github.com/phpdave11/gofpdf"
)

const fontFamily = "Helvetica"

// WriteScanPDF renders a one-scan diagnosis report to w.
func WriteScanPDF(w io.Writer, rec *models.ScanRecord, generatedAt time.Time) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(true, 14)
	pdf.SetTitle("AgroDetect scan report", false)
	pdf.SetCreator("agrodetect", false)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()

	pdf.SetFont(fontFamily, "B", 16)
	pdf.CellFormat(0, 9, "AgroDetect - Plant Disease Report", "", 1, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 10)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(0, 6, "Generated at: "+generatedAt.UTC().Format(time.RFC3339), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Scan ID: "+tr(rec.ID), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	heading(pdf, "Diagnosis")
	field(pdf, "Disease", tr(rec.Disease))
	field(pdf, "Confidence", fmt.Sprintf("%.1f%%", rec.Confidence*100))
	field(pdf, "Severity", string(rec.Severity))
	field(pdf, "Scenario", string(rec.Scenario))
	field(pdf, "Model", tr(rec.ModelUsed))
	field(pdf, "Processing time", fmt.Sprintf("%.2fs", rec.ProcessingTime))
	field(pdf, "Captured", rec.Timestamp.UTC().Format(time.RFC3339))
	pdf.Ln(3)

	heading(pdf, "Summary")
	body(pdf, tr(rec.AIAnalysis.Summary))
	pdf.Ln(3)

	heading(pdf, "Recommended actions")
	list(pdf, rec.AIAnalysis.Actions, tr)
	pdf.Ln(3)

	heading(pdf, "Prevention")
	list(pdf, rec.AIAnalysis.Prevention, tr)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render scan report: %w", err)
	}
	return nil
}

func heading(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont(fontFamily, "B", 12)
	pdf.SetTextColor(20, 80, 30)
	pdf.CellFormat(0, 7, title, "B", 1, "L", false, 0, "")
	pdf.Ln(1)
}

func field(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont(fontFamily, "B", 10)
	pdf.SetTextColor(30, 30, 30)
	pdf.CellFormat(40, 6, label+":", "", 0, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 10)
	pdf.CellFormat(0, 6, value, "", 1, "L", false, 0, "")
}

func body(pdf *gofpdf.Fpdf, text string) {
	pdf.SetFont(fontFamily, "", 10)
	pdf.SetTextColor(30, 30, 30)
	if text == "" {
		text = "(none)"
	}
	pdf.MultiCell(0, 5, text, "", "L", false)
}

func list(pdf *gofpdf.Fpdf, items []string, tr func(string) string) {
	if len(items) == 0 {
		body(pdf, "")
		return
	}
	pdf.SetFont(fontFamily, "", 10)
	pdf.SetTextColor(30, 30, 30)
	for i, item := range items {
		pdf.MultiCell(0, 5, fmt.Sprintf("%d. %s", i+1, tr(item)), "", "L", false)
	}
}
