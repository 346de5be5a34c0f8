package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

type Client interface {
	CreateSpreadsheet(ctx context.Context, title string) (spreadsheetID, url string, err error)
	EnsureTab(ctx context.Context, spreadsheetID, title string) error
	AddPermission(ctx context.Context, spreadsheetID, email, role string) error
	ClearRange(ctx context.Context, spreadsheetID, rangeStr string) error
	UpdateValues(ctx context.Context, spreadsheetID, rangeStr string, values [][]interface{}) error
}

type GoogleSheetsClient struct {
	sheets *sheets.Service
	drive  *drive.Service
}

func NewGoogleSheetsClient(ctx context.Context, credentialsPath string) (*GoogleSheetsClient, error) {
	sheetsSrv, err := sheets.NewService(ctx, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	driveSrv, err := drive.NewService(ctx, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &GoogleSheetsClient{
		sheets: sheetsSrv,
		drive:  driveSrv,
	}, nil
}

func (c *GoogleSheetsClient) CreateSpreadsheet(ctx context.Context, title string) (string, string, error) {
	resp, err := c.sheets.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title: title,
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", "", fmt.Errorf("failed to create spreadsheet: %w", err)
	}
	return resp.SpreadsheetId, resp.SpreadsheetUrl, nil
}

// EnsureTab adds a sheet named title unless the spreadsheet already has one.
func (c *GoogleSheetsClient) EnsureTab(ctx context.Context, spreadsheetID, title string) error {
	ss, err := c.sheets.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return nil
		}
	}

	_, err = c.sheets.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: title}}},
		},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to add sheet %s: %w", title, err)
	}
	return nil
}

func (c *GoogleSheetsClient) AddPermission(ctx context.Context, spreadsheetID, email, role string) error {
	_, err := c.drive.Permissions.Create(spreadsheetID, &drive.Permission{
		Type:         "user",
		Role:         role,
		EmailAddress: email,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to add permission: %w", err)
	}
	return nil
}

func (c *GoogleSheetsClient) ClearRange(ctx context.Context, spreadsheetID, rangeStr string) error {
	_, err := c.sheets.Spreadsheets.Values.Clear(spreadsheetID, rangeStr, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear range: %w", err)
	}
	return nil
}

func (c *GoogleSheetsClient) UpdateValues(ctx context.Context, spreadsheetID, rangeStr string, values [][]interface{}) error {
	valRange := &sheets.ValueRange{Values: values}
	_, err := c.sheets.Spreadsheets.Values.Update(spreadsheetID, rangeStr, valRange).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update values: %w", err)
	}
	return nil
}
