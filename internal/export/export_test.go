package export

import (
	"bytes"
	"encoding/csv"
	"qrattend/entity"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func records() []*entity.AttendanceRecord {
	at := time.Date(2026, 3, 4, 18, 30, 0, 0, time.UTC)
	return []*entity.AttendanceRecord{
		{
			Id:        "a1",
			Member:    &entity.MemberInfo{Name: "Ann", Email: "ann@example.com"},
			Meeting:   &entity.MeetingInfo{Title: "General, assembly"},
			Location:  "Gdansk, Pomerania, Poland",
			Timestamp: at,
		},
		{
			Id:        "a2",
			Timestamp: at.Add(time.Minute),
		},
	}
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := CSV(&buf, records()); err != nil {
		t.Fatalf("csv: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header and two rows, got %d", len(rows))
	}
	want := []string{"S.No", "Name", "Email", "Meeting", "Location", "Time"}
	for i, h := range want {
		if rows[0][i] != h {
			t.Fatalf("header %d: got %q, want %q", i, rows[0][i], h)
		}
	}
	if rows[1][0] != "1" || rows[1][3] != "General, assembly" || rows[1][5] != "2026-03-04 18:30:00" {
		t.Fatalf("unexpected first row %v", rows[1])
	}
	if rows[2][1] != "N/A" || rows[2][2] != "N/A" || rows[2][4] != "N/A" {
		t.Fatalf("missing values must be N/A: %v", rows[2])
	}
}

func TestXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := XLSX(&buf, records()); err != nil {
		t.Fatalf("xlsx: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "S.No" || rows[0][3] != "Location" || len(rows[0]) != 5 {
		t.Fatalf("unexpected header %v", rows[0])
	}
	if rows[1][1] != "Ann" || rows[2][1] != "N/A" {
		t.Fatalf("unexpected data rows %v", rows[1:])
	}
	styleId, err := f.GetCellStyle(sheetName, "B1")
	if err != nil || styleId == 0 {
		t.Fatalf("header must be styled, got %d, %v", styleId, err)
	}
}

func TestFileName(t *testing.T) {
	cases := map[string]string{
		"Weekly Sync #4": "Weekly-Sync-4-attendance.xlsx",
		"":               "meeting-attendance.xlsx",
		"\"; rm -rf":     "rm--rf-attendance.xlsx",
	}
	for in, want := range cases {
		if got := FileName(in, "xlsx"); got != want {
			t.Fatalf("%q: got %q, want %q", in, got, want)
		}
	}
}
