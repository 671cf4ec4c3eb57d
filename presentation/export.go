package presentation

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/fenilmodi00/ipo-dalal/formatters"
	"github.com/fenilmodi00/ipo-dalal/models"
	"github.com/xuri/excelize/v2"
)

// Export kinds
const (
	ExportGMP          = "gmp"
	ExportSubscription = "subscription"
)

var gmpHeader = []string{
	"Type", "Company", "Size (₹Cr)", "Price (₹)", "GMP %", "Est. Listing Price (₹)", "Est. Profit (₹)",
	"Kostak Rates (₹)", "Subject 2 Sauda Rates (₹)", "Total Subscription", "Closing Date",
}

var subscriptionHeader = []string{
	"Type", "Company", "Size (₹Cr)", "GMP", "QIB", "BHNI", "SHNI", "Retail", "Employee", "Shareholder",
	"Total", "Total Bid Amount (₹Cr)", "Total Applications", "Closing Date",
}

// GMPRows renders the grey market export, one row per record in order
func GMPRows(records []DisplayIPO) (header []string, rows [][]string) {
	rows = make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Type,
			r.Company,
			plain(r.IPOSize),
			priceBand(r),
			plain(r.GMP.Percentage),
			plain(r.GMP.EstListingPrice),
			currency(r.GMP.EstProfit.Retail) + " / " + currency(r.GMP.EstProfit.SHNI),
			"₹" + plain(r.KostakRates.Retail) + " / ₹" + plain(r.KostakRates.SHNI),
			"₹" + plain(r.SubjectToSauda.Retail) + " / ₹" + plain(r.SubjectToSauda.SHNI),
			plain(r.Subscription.Total),
			formatters.IndianDateString(r.Dates.Closing),
		})
	}
	return gmpHeader, rows
}

// SubscriptionRows renders the category-wise subscription export
func SubscriptionRows(records []DisplayIPO) (header []string, rows [][]string) {
	rows = make([][]string, 0, len(records))
	for _, r := range records {
		s := r.Subscription
		rows = append(rows, []string{
			r.Type,
			r.Company,
			plain(r.IPOSize),
			plain(r.GMP.Percentage) + "%",
			plain(s.QIB),
			plain(s.BHNI),
			plain(s.SHNI),
			plain(s.Retail),
			plain(s.Employee),
			plain(s.Shareholder),
			plain(s.Total),
			optionalPlain(s.TotalBidAmount),
			optionalInt(s.TotalApplications),
			formatters.IndianDateString(r.Dates.Closing),
		})
	}
	return subscriptionHeader, rows
}

func currency(v float64) string {
	return formatters.IndianCurrency(v, formatters.CurrencyOptions{})
}

func optionalPlain(v *float64) string {
	if v == nil {
		return ""
	}
	return plain(*v)
}

func optionalInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

// GMPCSV serialises records, already sorted, as the grey market CSV
func GMPCSV(records []DisplayIPO) ([]byte, error) {
	return WriteCSV(GMPRows(records))
}

// SubscriptionCSV serialises records, already sorted, as the subscription CSV
func SubscriptionCSV(records []DisplayIPO) ([]byte, error) {
	return WriteCSV(SubscriptionRows(records))
}

func WriteCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to write csv rows: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportXLSX writes header and rows to a single-sheet workbook
func ExportXLSX(sheet string, header []string, rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	writeRow := func(rowIndex int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, rowIndex)
		if err != nil {
			return err
		}
		row := make([]interface{}, len(values))
		for i, v := range values {
			row[i] = v
		}
		return f.SetSheetRow(sheet, cell, &row)
	}

	if err := writeRow(1, header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for i, values := range rows {
		if err := writeRow(i+2, values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportFilename is the download name for an export kind on the given day,
// e.g. ipo-gmp-data-2024-11-08.csv
func ExportFilename(kind, ext string, now time.Time) string {
	return fmt.Sprintf("ipo-%s-data-%s.%s", kind, now.UTC().Format(models.DateLayout), ext)
}

// GMPChartPoints maps history rows to chart points labelled with the percentage
func GMPChartPoints(history []models.GMPHistory) []ChartPoint {
	points := make([]ChartPoint, 0, len(history))
	for _, h := range history {
		points = append(points, ChartPoint{
			Date:  h.Date,
			Value: h.GMPPercent,
			Label: strconv.FormatFloat(h.GMPPercent, 'f', 1, 64) + "%",
		})
	}
	return points
}

// SubscriptionChartPoints maps history rows to chart points labelled with the
// multiple. Rows carry no calendar date, so the observation day in IST is used.
func SubscriptionChartPoints(history []models.SubscriptionHistory) []ChartPoint {
	points := make([]ChartPoint, 0, len(history))
	for _, h := range history {
		points = append(points, ChartPoint{
			Date:  h.Timestamp.In(formatters.IST).Format(models.DateLayout),
			Value: h.TotalSub,
			Label: strconv.FormatFloat(h.TotalSub, 'f', 2, 64) + "x",
		})
	}
	return points
}
