package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"teesheet/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const auditRange = "Audit!A:I"

// Service mirrors reconciliation audit records to the operations
// spreadsheet. Rows are append-only; the sheet is never rewritten.
type Service struct {
	service       *sheets.Service
	spreadsheetID string
}

func NewService(ctx context.Context, credentialsFile, spreadsheetID string) (*Service, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	client := config.Client(ctx)

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %v", err)
	}

	return &Service{service: srv, spreadsheetID: spreadsheetID}, nil
}

// TestConnection reads the header cell to verify access.
func (s *Service) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, "Audit!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %v", err)
	}
	return nil
}

// ServiceAccountEmail returns the client_email from the credentials file,
// for sharing the spreadsheet with the right account.
func ServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}

	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}

	return creds.ClientEmail, nil
}

// AppendAuditRow appends one audit record to the Audit sheet.
func (s *Service) AppendAuditRow(ctx context.Context, rec *models.AuditRecord) error {
	if rec == nil {
		return fmt.Errorf("audit record is nil")
	}

	row := []interface{}{
		rec.ID,
		rec.CreatedAt.Format("2006-01-02 15:04:05"),
		rec.Outcome,
		rec.Route,
		rec.UnmatchedID,
		rec.TrackmanID,
		rec.BookingID,
		rec.OwnerEmail,
		rec.PlayerCount,
	}

	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{row},
	}

	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, auditRange, valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()

	return err
}
