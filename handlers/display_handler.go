package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-dalal/models"
	"github.com/fenilmodi00/ipo-dalal/presentation"
	"github.com/fenilmodi00/ipo-dalal/services"
	"github.com/gofiber/fiber/v2"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	csvContentType  = "text/csv; charset=utf-8"
)

type displayView struct {
	columns func() []presentation.Column
	empty   string
	load    func(ctx context.Context, q services.Queries, filter string) ([]models.EnrichedIPO, error)
}

var displayViews = map[string]displayView{
	"dashboard": {
		columns: presentation.DashboardColumns,
		empty:   "No IPOs available",
		load: func(ctx context.Context, q services.Queries, _ string) ([]models.EnrichedIPO, error) {
			return q.GetDashboardData(ctx)
		},
	},
	"live": {
		columns: presentation.LiveColumns,
		empty:   "No live or upcoming IPOs",
		load: func(ctx context.Context, q services.Queries, _ string) ([]models.EnrichedIPO, error) {
			return q.GetLiveIPOs(ctx)
		},
	},
	"listed": {
		columns: presentation.ListedColumns,
		empty:   "No listed IPOs",
		load: func(ctx context.Context, q services.Queries, _ string) ([]models.EnrichedIPO, error) {
			return q.GetListedIPOs(ctx)
		},
	},
	presentation.ExportGMP: {
		columns: presentation.GMPColumns,
		empty:   "No GMP data available",
		load: func(ctx context.Context, q services.Queries, filter string) ([]models.EnrichedIPO, error) {
			return q.GetGMPAggregatorData(ctx, filter)
		},
	},
	presentation.ExportSubscription: {
		columns: presentation.SubscriptionColumns,
		empty:   "No subscription data available",
		load: func(ctx context.Context, q services.Queries, _ string) ([]models.EnrichedIPO, error) {
			return q.GetSubscriptionAggregatorData(ctx)
		},
	},
}

// DisplayHandler serves the flattened display records, their table view
// models, chart series and file exports
type DisplayHandler struct {
	Queries services.Queries
	Now     func() time.Time
}

func NewDisplayHandler(queries services.Queries) *DisplayHandler {
	return &DisplayHandler{Queries: queries, Now: time.Now}
}

// DisplayResponse pairs the sorted records with the table rendered from them
type DisplayResponse struct {
	View    string                    `json:"view"`
	Sort    presentation.SortState    `json:"sort"`
	Records []presentation.DisplayIPO `json:"records"`
	Table   presentation.TableView    `json:"table"`
}

func (h *DisplayHandler) sortedRecords(c *fiber.Ctx, view string, operation string) ([]presentation.DisplayIPO, presentation.SortState, error) {
	v, ok := displayViews[view]
	if !ok {
		return nil, presentation.SortState{}, badRequest("UNKNOWN_VIEW", fmt.Sprintf("unknown view %q", view), operation)
	}

	enriched, err := v.load(c.UserContext(), h.Queries, c.Query("filter"))
	if err != nil {
		return nil, presentation.SortState{}, err
	}

	state := presentation.ParseSortState(c.Query("sort"), c.Query("order"))
	records := presentation.SortDisplay(presentation.ToDisplayList(enriched), state)
	return records, state, nil
}

// GetDisplay renders /display/:view
func (h *DisplayHandler) GetDisplay(c *fiber.Ctx) error {
	view := c.Params("view")
	records, state, err := h.sortedRecords(c, view, "GetDisplay")
	if err != nil {
		return respondError(c, err)
	}

	table := presentation.BuildTable(displayViews[view].columns(), records, false, displayViews[view].empty)
	table.Sort = &state
	return respondOK(c, DisplayResponse{
		View:    view,
		Sort:    state,
		Records: records,
		Table:   table,
	})
}

// ChartSeries is the GMP and subscription history of one IPO as chart points
type ChartSeries struct {
	GMP          []presentation.ChartPoint `json:"gmp"`
	Subscription []presentation.ChartPoint `json:"subscription"`
}

func (h *DisplayHandler) GetCharts(c *fiber.Ctx) error {
	id, err := ipoIDParam(c, "GetCharts")
	if err != nil {
		return respondError(c, err)
	}
	days, err := intQuery(c, "days", "GetCharts")
	if err != nil {
		return respondError(c, err)
	}
	hours, err := intQuery(c, "hours", "GetCharts")
	if err != nil {
		return respondError(c, err)
	}

	ctx := c.UserContext()
	if _, err := h.Queries.GetIPOByID(ctx, id); err != nil {
		return respondError(c, err)
	}
	gmp, err := h.Queries.GetGMPHistory(ctx, id, days, c.Query("source"))
	if err != nil {
		return respondError(c, err)
	}
	subs, err := h.Queries.GetSubscriptionTrends(ctx, id, hours)
	if err != nil {
		return respondError(c, err)
	}

	return respondOK(c, ChartSeries{
		GMP:          presentation.GMPChartPoints(gmp),
		Subscription: presentation.SubscriptionChartPoints(subs),
	})
}

// Export streams /export/<kind>.<csv|xlsx> as a download
func (h *DisplayHandler) Export(c *fiber.Ctx) error {
	file := c.Params("file")
	kind, ext, found := strings.Cut(file, ".")
	if !found || (kind != presentation.ExportGMP && kind != presentation.ExportSubscription) {
		return respondError(c, badRequest("UNKNOWN_EXPORT", fmt.Sprintf("unknown export %q", file), "Export"))
	}

	records, _, err := h.sortedRecords(c, kind, "Export")
	if err != nil {
		return respondError(c, err)
	}

	var header []string
	var rows [][]string
	if kind == presentation.ExportGMP {
		header, rows = presentation.GMPRows(records)
	} else {
		header, rows = presentation.SubscriptionRows(records)
	}

	var body []byte
	var contentType string
	switch ext {
	case "csv":
		body, err = presentation.WriteCSV(header, rows)
		contentType = csvContentType
	case "xlsx":
		body, err = presentation.ExportXLSX(kind, header, rows)
		contentType = xlsxContentType
	default:
		return respondError(c, badRequest("UNKNOWN_FORMAT", fmt.Sprintf("unsupported export format %q", ext), "Export"))
	}
	if err != nil {
		return respondError(c, err)
	}

	c.Attachment(presentation.ExportFilename(kind, ext, h.Now()))
	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(body)
}
