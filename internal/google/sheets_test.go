package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"consultdesk/internal/models"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func setupMockServer(ctx context.Context) (*http.ServeMux, *httptest.Server, *SheetsService) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	srv, _ := sheets.NewService(ctx, option.WithEndpoint(server.URL), option.WithoutAuthentication())
	return mux, server, newSheetsService(srv, "requests_tid")
}

func testNotification() *models.BookingNotification {
	return &models.BookingNotification{
		SessionID:   "s-1",
		Name:        "Ada Lovelace",
		Email:       "ada@example.com",
		Phone:       "+1 555 0100",
		Company:     "N/A",
		Service:     "Brand Strategy",
		Message:     "N/A",
		Date:        "Tuesday, October 20, 2026",
		Time:        "9:00 AM",
		CalendarURL: "https://calendar.google.com/calendar/render?action=TEMPLATE",
		SubmittedAt: time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC),
	}
}

func TestSheetsService_TestConnection(t *testing.T) {
	ctx := context.Background()
	mux, server, s := setupMockServer(ctx)
	defer server.Close()
	mux.HandleFunc("/v4/spreadsheets/requests_tid/values/Requests!A1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"Key"}}})
	})
	if err := s.TestConnection(ctx); err != nil {
		t.Errorf("TestConnection failed: %v", err)
	}
}

func TestSheetsService_TestConnectionFails(t *testing.T) {
	ctx := context.Background()
	mux, server, s := setupMockServer(ctx)
	defer server.Close()
	mux.HandleFunc("/v4/spreadsheets/requests_tid/values/Requests!A1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	if err := s.TestConnection(ctx); err == nil {
		t.Error("expected an error for a forbidden spreadsheet")
	}
}

func TestSheetsService_EnsureHeader(t *testing.T) {
	ctx := context.Background()
	mux, server, s := setupMockServer(ctx)
	defer server.Close()

	var wrote []interface{}
	mux.HandleFunc("/v4/spreadsheets/requests_tid/values/Requests!A1:L1", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			var body sheets.ValueRange
			_ = json.NewDecoder(r.Body).Decode(&body)
			if len(body.Values) == 1 {
				wrote = body.Values[0]
			}
			_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
			return
		}
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{})
	})

	if err := s.EnsureHeader(ctx); err != nil {
		t.Fatalf("EnsureHeader failed: %v", err)
	}
	if len(wrote) != len(requestHeaders) {
		t.Fatalf("expected %d header cells, got %d", len(requestHeaders), len(wrote))
	}
	if wrote[0] != "Key" {
		t.Errorf("expected first header Key, got %v", wrote[0])
	}
}

func TestSheetsService_WarmUpCache(t *testing.T) {
	ctx := context.Background()
	mux, server, s := setupMockServer(ctx)
	defer server.Close()
	mux.HandleFunc("/v4/spreadsheets/requests_tid/values/Requests!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{
			Values: [][]interface{}{{"Key"}, {"s-1@2026-10-16T10:00:00Z"}, {}, {"s-2@2026-10-16T11:00:00Z"}},
		})
	})
	if err := s.WarmUpCache(ctx); err != nil {
		t.Fatalf("WarmUpCache failed: %v", err)
	}
	if row, ok := s.getCachedRow("s-1@2026-10-16T10:00:00Z"); !ok || row != 2 {
		t.Errorf("expected row 2, got %d", row)
	}
	if row, ok := s.getCachedRow("s-2@2026-10-16T11:00:00Z"); !ok || row != 4 {
		t.Errorf("expected row 4, got %d", row)
	}
	if _, ok := s.getCachedRow("Key"); ok {
		t.Error("header row must not be cached")
	}
}

func TestSheetsService_AppendBookingRequest(t *testing.T) {
	ctx := context.Background()
	mux, server, s := setupMockServer(ctx)
	defer server.Close()

	var appended []interface{}
	mux.HandleFunc("/v4/spreadsheets/requests_tid/values/Requests!A:A:append", func(w http.ResponseWriter, r *http.Request) {
		var body sheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.Values) == 1 {
			appended = body.Values[0]
		}
		_ = json.NewEncoder(w).Encode(sheets.AppendValuesResponse{
			Updates: &sheets.UpdateValuesResponse{UpdatedRange: "Requests!A10:L10"},
		})
	})

	n := testNotification()
	if err := s.AppendBookingRequest(ctx, n); err != nil {
		t.Fatalf("AppendBookingRequest failed: %v", err)
	}
	if len(appended) != 12 {
		t.Fatalf("expected 12 cells, got %d", len(appended))
	}
	if appended[2] != "Ada Lovelace" || appended[8] != "9:00 AM" {
		t.Errorf("unexpected row: %v", appended)
	}
	if row, _ := s.getCachedRow(RequestKey(n)); row != 10 {
		t.Errorf("expected cached row 10, got %d", row)
	}
}

func TestSheetsService_AppendBookingRequest_RetryUpdatesRow(t *testing.T) {
	ctx := context.Background()
	mux, server, s := setupMockServer(ctx)
	defer server.Close()

	n := testNotification()
	s.setCachedRow(RequestKey(n), 7)

	updated := false
	mux.HandleFunc("/v4/spreadsheets/requests_tid/values/Requests!A7:L7", func(w http.ResponseWriter, r *http.Request) {
		updated = true
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})
	mux.HandleFunc("/v4/spreadsheets/requests_tid/values/Requests!A:A:append", func(w http.ResponseWriter, r *http.Request) {
		t.Error("a recorded request must not be appended again")
	})

	if err := s.AppendBookingRequest(ctx, n); err != nil {
		t.Fatalf("AppendBookingRequest failed: %v", err)
	}
	if !updated {
		t.Error("expected the existing row to be updated")
	}
}

func TestRowFromRange(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"Requests!A10:L10", 10, true},
		{"Requests!A2", 2, true},
		{"B7:C9", 7, true},
		{"Requests!A:A", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := rowFromRange(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("rowFromRange(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestServiceAccountEmail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	if err := os.WriteFile(path, []byte(`{"client_email":"bot@project.iam.gserviceaccount.com"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	email, err := ServiceAccountEmail(path)
	if err != nil {
		t.Fatalf("ServiceAccountEmail failed: %v", err)
	}
	if email != "bot@project.iam.gserviceaccount.com" {
		t.Errorf("unexpected email %q", email)
	}

	if _, err := ServiceAccountEmail(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNewSheetsService_BadCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	if err := os.WriteFile(path, []byte(`not json`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewSheetsService(context.Background(), path, "id"); err == nil {
		t.Error("expected error for malformed credentials")
	}
}
