package presentation

import (
	"fmt"
	"math"
	"strconv"

	"github.com/fenilmodi00/ipo-dalal/formatters"
)

// Table states
const (
	StateLoading = "loading"
	StateEmpty   = "empty"
	StateData    = "data"
)

const (
	skeletonRows        = 5
	defaultEmptyMessage = "No data available"
)

// Column describes one table column. Key is the dotted path used for
// sorting and, when Format is nil, for the cell value.
type Column struct {
	Key      string                  `json:"key"`
	Label    string                  `json:"label"`
	Sortable bool                    `json:"sortable"`
	Align    string                  `json:"align,omitempty"`
	Format   func(DisplayIPO) string `json:"-"`
}

// TableRow is a rendered row. ID is the IPO a click on the row opens.
type TableRow struct {
	ID    string   `json:"id,omitempty"`
	Cells []string `json:"cells"`
}

type TableView struct {
	State   string     `json:"state"`
	Columns []Column   `json:"columns"`
	Rows    []TableRow `json:"rows"`
	Message string     `json:"message,omitempty"`
	Sort    *SortState `json:"sort,omitempty"`
}

// BuildTable renders records, already in display order, into a view model
func BuildTable(columns []Column, records []DisplayIPO, loading bool, emptyMessage string) TableView {
	view := TableView{Columns: columns, Rows: []TableRow{}}

	switch {
	case loading:
		view.State = StateLoading
		for i := 0; i < skeletonRows; i++ {
			view.Rows = append(view.Rows, TableRow{Cells: make([]string, len(columns))})
		}
	case len(records) == 0:
		view.State = StateEmpty
		view.Message = emptyMessage
		if view.Message == "" {
			view.Message = defaultEmptyMessage
		}
	default:
		view.State = StateData
		for _, r := range records {
			view.Rows = append(view.Rows, TableRow{ID: r.ID, Cells: renderRow(columns, r)})
		}
	}
	return view
}

func renderRow(columns []Column, r DisplayIPO) []string {
	var fields map[string]interface{}
	cells := make([]string, len(columns))
	for i, col := range columns {
		if col.Format != nil {
			cells[i] = col.Format(r)
			continue
		}
		if fields == nil {
			fields = fieldMap(r)
		}
		cells[i] = renderCell(lookup(fields, col.Key))
	}
	return cells
}

// renderCell is the generic cell text: - for missing, Yes/No for booleans,
// grouped numbers
func renderCell(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "-"
	case bool:
		if t {
			return "Yes"
		}
		return "No"
	case float64:
		return formatters.LocaleNumber(t)
	default:
		return stringForm(t)
	}
}

func priceBand(d DisplayIPO) string {
	return fmt.Sprintf("₹%s - ₹%s", plain(d.Price.Min), plain(d.Price.Max))
}

// plain prints a number without grouping or trailing zeros
func plain(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func compact(v float64) string {
	return formatters.IndianCurrency(v, formatters.CurrencyOptions{Compact: true})
}

func signedPercent(v *float64) string {
	if v == nil {
		return "-"
	}
	if *v >= 0 {
		return "+" + formatters.Percentage(*v, 1)
	}
	return formatters.Percentage(*v, 1)
}

var (
	typeColumn    = Column{Key: "type", Label: "Type", Sortable: true}
	companyColumn = Column{Key: "company", Label: "Company", Sortable: true}
	sizeColumn    = Column{Key: "ipoSize", Label: "Size (₹Cr)", Sortable: true, Align: "right",
		Format: func(d DisplayIPO) string { return compact(d.IPOSize) }}
	priceColumn = Column{Key: "price", Label: "Price (₹)", Align: "center", Format: priceBand}
	gmpColumn   = Column{Key: "gmp.percentage", Label: "GMP", Sortable: true, Align: "center",
		Format: func(d DisplayIPO) string {
			return fmt.Sprintf("%s (₹%s)", formatters.Percentage(d.GMP.Percentage, 1), plain(d.GMP.Price))
		}}
	closingColumn = Column{Key: "dates.closing", Label: "Closing", Sortable: true, Align: "center",
		Format: func(d DisplayIPO) string { return formatters.IndianDateString(d.Dates.Closing) }}
	subscriptionColumn = Column{Key: "subscription.total", Label: "Subscription", Sortable: true, Align: "center",
		Format: func(d DisplayIPO) string { return formatters.SubscriptionTimes(d.Subscription.Total) }}
)

func dateColumn(key, label string, get func(DisplayIPO) string) Column {
	return Column{Key: key, Label: label, Align: "center",
		Format: func(d DisplayIPO) string { return formatters.IndianDateString(get(d)) }}
}

func timesColumn(key, label string, get func(DisplayIPO) float64) Column {
	return Column{Key: key, Label: label, Sortable: true, Align: "center",
		Format: func(d DisplayIPO) string { return formatters.SubscriptionTimes(get(d)) }}
}

// LiveColumns lists upcoming and open IPOs with their calendar
func LiveColumns() []Column {
	return []Column{
		typeColumn,
		companyColumn,
		sizeColumn,
		{Key: "lot", Label: "Lot", Align: "center"},
		priceColumn,
		{Key: "amount.retail", Label: "Amount (₹)", Align: "right",
			Format: func(d DisplayIPO) string {
				return compact(d.Amount.Retail) + " / " + compact(d.Amount.SHNI)
			}},
		gmpColumn,
		closingColumn,
		dateColumn("dates.allotment", "Allotment", func(d DisplayIPO) string { return d.Dates.Allotment }),
		dateColumn("dates.refund", "Refund", func(d DisplayIPO) string { return d.Dates.Refund }),
		dateColumn("dates.listing", "Listing", func(d DisplayIPO) string { return d.Dates.Listing }),
	}
}

// ListedColumns compares the grey market call with the listing outcome
func ListedColumns() []Column {
	return []Column{
		typeColumn,
		companyColumn,
		{Key: "symbol", Label: "Symbol", Sortable: true, Align: "center"},
		sizeColumn,
		priceColumn,
		{Key: "listingPrice", Label: "Listing Price (₹)", Sortable: true, Align: "right",
			Format: func(d DisplayIPO) string {
				if d.ListingPrice == nil {
					return "-"
				}
				return "₹" + plain(*d.ListingPrice)
			}},
		{Key: "listingGains", Label: "Listing Gains", Sortable: true, Align: "center",
			Format: func(d DisplayIPO) string { return signedPercent(d.ListingGains) }},
		{Key: "gmpAccuracy", Label: "GMP vs Actual", Align: "center",
			Format: func(d DisplayIPO) string {
				verdict := "Off"
				if d.ListingGains != nil && math.Abs(*d.ListingGains-d.GMP.Percentage) < 5 {
					verdict = "Accurate"
				}
				return "GMP: " + formatters.Percentage(d.GMP.Percentage, 1) + " " + verdict
			}},
		{Key: "actualProfit.retail", Label: "Profit (₹)", Align: "right",
			Format: func(d DisplayIPO) string {
				if d.ActualProfit == nil {
					return "-"
				}
				return compact(d.ActualProfit.Retail) + " / " + compact(d.ActualProfit.SHNI)
			}},
		dateColumn("listingDate", "Listed On", func(d DisplayIPO) string { return d.ListingDate }),
	}
}

// GMPColumns is the grey market aggregator layout
func GMPColumns() []Column {
	return []Column{
		typeColumn,
		companyColumn,
		sizeColumn,
		priceColumn,
		{Key: "gmp.percentage", Label: "GMP %", Sortable: true, Align: "center",
			Format: func(d DisplayIPO) string { return formatters.Percentage(d.GMP.Percentage, 1) }},
		{Key: "gmp.estListingPrice", Label: "Est. Listing Price (₹)", Align: "center",
			Format: func(d DisplayIPO) string { return "₹" + plain(d.GMP.EstListingPrice) }},
		{Key: "gmp.estProfit.retail", Label: "Est. Profit (₹)", Align: "right",
			Format: func(d DisplayIPO) string {
				return compact(d.GMP.EstProfit.Retail) + " / " + compact(d.GMP.EstProfit.SHNI)
			}},
		{Key: "kostakRates.retail", Label: "Kostak Rates (₹)", Align: "center",
			Format: func(d DisplayIPO) string {
				return "₹" + plain(d.KostakRates.Retail) + " / ₹" + plain(d.KostakRates.SHNI)
			}},
		{Key: "subjectToSauda.retail", Label: "Subject 2 Sauda Rates (₹)", Align: "center",
			Format: func(d DisplayIPO) string {
				return "₹" + plain(d.SubjectToSauda.Retail) + " / ₹" + plain(d.SubjectToSauda.SHNI)
			}},
		subscriptionColumn,
		closingColumn,
	}
}

// SubscriptionColumns is the category-wise subscription layout
func SubscriptionColumns() []Column {
	return []Column{
		typeColumn,
		companyColumn,
		sizeColumn,
		{Key: "gmp.percentage", Label: "GMP", Sortable: true, Align: "center",
			Format: func(d DisplayIPO) string { return formatters.Percentage(d.GMP.Percentage, 1) }},
		timesColumn("subscription.qib", "QIB", func(d DisplayIPO) float64 { return d.Subscription.QIB }),
		timesColumn("subscription.bhni", "BHNI", func(d DisplayIPO) float64 { return d.Subscription.BHNI }),
		timesColumn("subscription.shni", "SHNI", func(d DisplayIPO) float64 { return d.Subscription.SHNI }),
		timesColumn("subscription.retail", "Retail", func(d DisplayIPO) float64 { return d.Subscription.Retail }),
		timesColumn("subscription.employee", "Employee", func(d DisplayIPO) float64 { return d.Subscription.Employee }),
		timesColumn("subscription.shareholder", "Shareholder", func(d DisplayIPO) float64 { return d.Subscription.Shareholder }),
		timesColumn("subscription.total", "Total", func(d DisplayIPO) float64 { return d.Subscription.Total }),
		{Key: "subscription.totalApplications", Label: "Applications", Align: "right"},
		closingColumn,
	}
}

// DashboardColumns is the overview of every IPO
func DashboardColumns() []Column {
	return []Column{
		typeColumn,
		companyColumn,
		{Key: "status", Label: "Status", Sortable: true, Align: "center"},
		sizeColumn,
		priceColumn,
		gmpColumn,
		subscriptionColumn,
		closingColumn,
	}
}
