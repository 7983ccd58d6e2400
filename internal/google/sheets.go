package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"consultdesk/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	requestsSheet  = "Requests"
	lastColumn     = "L"
	timestampStyle = "2006-01-02 15:04:05"
)

var requestHeaders = []interface{}{
	"Key", "Submitted At", "Name", "Email", "Phone", "Company",
	"Service", "Date", "Time", "Message", "Calendar Link", "Session",
}

// SheetsService records booking requests in a spreadsheet, one row per
// request. Rows are keyed by column A so a retried delivery updates the row
// it already wrote.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	rowCache      map[string]int
	cacheMu       sync.RWMutex
}

func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID string) (*SheetsService, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	return newSheetsService(srv, spreadsheetID), nil
}

func newSheetsService(srv *sheets.Service, spreadsheetID string) *SheetsService {
	return &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		rowCache:      make(map[string]int),
	}
}

// TestConnection reads the header cell of the requests sheet.
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, requestsSheet+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// ServiceAccountEmail returns the address the spreadsheet must be shared
// with.
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

// EnsureHeader writes the column titles when the sheet is empty.
func (s *SheetsService) EnsureHeader(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, requestsSheet+"!A1:"+lastColumn+"1").Context(ctx).Do()
	if err != nil {
		return err
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, requestsSheet+"!A1:"+lastColumn+"1", &sheets.ValueRange{
		Values: [][]interface{}{requestHeaders},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// WarmUpCache indexes the key column.
func (s *SheetsService) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, requestsSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[string]int)
	for i, row := range resp.Values {
		if i == 0 || len(row) == 0 {
			continue
		}
		if key, ok := row[0].(string); ok && key != "" {
			s.rowCache[key] = i + 1
		}
	}
	return nil
}

// AppendBookingRequest writes the request, overwriting its earlier row if
// the same request was already recorded.
func (s *SheetsService) AppendBookingRequest(ctx context.Context, n *models.BookingNotification) error {
	if n == nil {
		return fmt.Errorf("booking notification is nil")
	}
	key := RequestKey(n)
	values := &sheets.ValueRange{Values: [][]interface{}{requestRowValues(key, n)}}

	if row, ok := s.getCachedRow(key); ok {
		rangeData := fmt.Sprintf("%s!A%d:%s%d", requestsSheet, row, lastColumn, row)
		_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, values).
			ValueInputOption("RAW").
			Context(ctx).
			Do()
		return err
	}

	resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, requestsSheet+"!A:A", values).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return err
	}
	if resp.Updates != nil {
		if row, ok := rowFromRange(resp.Updates.UpdatedRange); ok {
			s.setCachedRow(key, row)
		}
	}
	return nil
}

// RequestKey identifies one submitted request.
func RequestKey(n *models.BookingNotification) string {
	return n.SessionID + "@" + n.SubmittedAt.UTC().Format(time.RFC3339)
}

func requestRowValues(key string, n *models.BookingNotification) []interface{} {
	return []interface{}{
		key,
		n.SubmittedAt.Format(timestampStyle),
		n.Name,
		n.Email,
		n.Phone,
		n.Company,
		n.Service,
		n.Date,
		n.Time,
		n.Message,
		n.CalendarURL,
		n.SessionID,
	}
}

// rowFromRange extracts the first row number of an A1 range such as
// "Requests!A10:L10".
func rowFromRange(a1 string) (int, bool) {
	if i := strings.LastIndex(a1, "!"); i >= 0 {
		a1 = a1[i+1:]
	}
	if i := strings.Index(a1, ":"); i >= 0 {
		a1 = a1[:i]
	}
	digits := strings.TrimLeft(a1, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	row, err := strconv.Atoi(digits)
	if err != nil || row <= 0 {
		return 0, false
	}
	return row, true
}

func (s *SheetsService) getCachedRow(key string) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[key]
	return row, ok
}

func (s *SheetsService) setCachedRow(key string, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[key] = row
}
