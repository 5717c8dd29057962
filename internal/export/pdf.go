package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
)

type pdfColumn struct {
	title string
	width float64
	value func(i int, doc Document) string
}

var pdfColumns = []pdfColumn{
	{"Timestamp (UTC)", 38, func(i int, d Document) string { return d.Data[i].Timestamp.UTC().Format("2006-01-02 15:04:05") }},
	{"Sensor", 22, func(i int, d Document) string { return d.Data[i].SensorID }},
	{"Location", 32, func(i int, d Document) string { return d.Data[i].Location.Name }},
	{"Moisture %", 22, func(i int, d Document) string { return strconv.Itoa(d.Data[i].SoilMoisture) }},
	{"Temp C", 18, func(i int, d Document) string { return strconv.FormatFloat(d.Data[i].Temperature, 'f', 1, 64) }},
	{"Humidity %", 22, func(i int, d Document) string { return strconv.Itoa(d.Data[i].Humidity) }},
	{"pH", 14, func(i int, d Document) string { return strconv.FormatFloat(d.Data[i].PHLevel, 'f', 1, 64) }},
	{"N", 14, func(i int, d Document) string { return strconv.Itoa(d.Data[i].Nitrogen) }},
	{"P", 14, func(i int, d Document) string { return strconv.Itoa(d.Data[i].Phosphorus) }},
	{"K", 14, func(i int, d Document) string { return strconv.Itoa(d.Data[i].Potassium) }},
	{"Battery %", 20, func(i int, d Document) string { return strconv.Itoa(d.Data[i].BatteryLevel) }},
}

const (
	pdfMargin    = 10.0
	pdfRowHeight = 6.0
)

// WritePDF renders a landscape A4 report with one table row per reading.
func WritePDF(w io.Writer, doc Document) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.SetTitle("Soil Sensor Readings", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Soil Sensor Readings", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	meta := doc.Metadata
	pdf.CellFormat(0, 5, fmt.Sprintf("Exported %s | %d records | Sensor: %s | Range: %s to %s",
		meta.ExportedAt.UTC().Format(time.RFC1123), meta.RecordCount, meta.Sensor,
		meta.DateRange.Start, meta.DateRange.End), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	_, pageHeight := pdf.GetPageSize()
	writeHeader := func() {
		pdf.SetFont("Helvetica", "B", 8)
		pdf.SetFillColor(220, 235, 220)
		for _, col := range pdfColumns {
			pdf.CellFormat(col.width, pdfRowHeight, col.title, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 8)
	}

	writeHeader()
	for i := range doc.Data {
		if pdf.GetY()+pdfRowHeight > pageHeight-pdfMargin {
			pdf.AddPage()
			writeHeader()
		}
		for _, col := range pdfColumns {
			pdf.CellFormat(col.width, pdfRowHeight, col.value(i, doc), "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render pdf export: %w", err)
	}
	return nil
}
