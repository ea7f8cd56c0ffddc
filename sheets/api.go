package sheets

import (
	"context"
	"strings"

	sheetsapi "google.golang.org/api/sheets/v4"
)

// Grid size of sheets created by Update.
const (
	NewSheetRows    = 1000
	NewSheetColumns = 26
)

// SpreadsheetsAPI is the part of the Sheets API the client uses.
type SpreadsheetsAPI interface {
	SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error)
	GetValues(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	AddSheet(ctx context.Context, spreadsheetID, title string, rows, cols int64) error
	ClearValues(ctx context.Context, spreadsheetID, rng string) error
	UpdateValues(ctx context.Context, spreadsheetID, rng string, values [][]any) error
}

// ServiceAPI implements SpreadsheetsAPI over the generated client.
type ServiceAPI struct {
	svc *sheetsapi.Service
}

var _ SpreadsheetsAPI = (*ServiceAPI)(nil)

// NewServiceAPI wraps svc.
func NewServiceAPI(svc *sheetsapi.Service) *ServiceAPI {
	return &ServiceAPI{svc: svc}
}

func (a *ServiceAPI) SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error) {
	ss, err := a.svc.Spreadsheets.Get(spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			titles = append(titles, s.Properties.Title)
		}
	}
	return titles, nil
}

func (a *ServiceAPI) GetValues(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	vr, err := a.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return vr.Values, nil
}

func (a *ServiceAPI) AddSheet(ctx context.Context, spreadsheetID, title string, rows, cols int64) error {
	req := &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			AddSheet: &sheetsapi.AddSheetRequest{
				Properties: &sheetsapi.SheetProperties{
					Title: title,
					GridProperties: &sheetsapi.GridProperties{
						RowCount:    rows,
						ColumnCount: cols,
					},
				},
			},
		}},
	}
	_, err := a.svc.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	return err
}

func (a *ServiceAPI) ClearValues(ctx context.Context, spreadsheetID, rng string) error {
	_, err := a.svc.Spreadsheets.Values.Clear(spreadsheetID, rng, &sheetsapi.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

func (a *ServiceAPI) UpdateValues(ctx context.Context, spreadsheetID, rng string, values [][]any) error {
	_, err := a.svc.Spreadsheets.Values.Update(spreadsheetID, rng, &sheetsapi.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

// sheetRange quotes a sheet title for A1 notation.
func sheetRange(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
