// Package export writes the attendance of one meeting as CSV or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"qrattend/entity"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	sheetName  = "Attendance"
	timeLayout = "2006-01-02 15:04:05"
	missing    = "N/A"
	headerFill = "4F46E5"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type column struct {
	title string
	width float64
	value func(i int, r *entity.AttendanceRecord) interface{}
}

var (
	colNumber   = column{"S.No", 8, func(i int, _ *entity.AttendanceRecord) interface{} { return i + 1 }}
	colName     = column{"Name", 25, func(_ int, r *entity.AttendanceRecord) interface{} { return memberName(r) }}
	colEmail    = column{"Email", 30, func(_ int, r *entity.AttendanceRecord) interface{} { return memberEmail(r) }}
	colMeeting  = column{"Meeting", 30, func(_ int, r *entity.AttendanceRecord) interface{} { return meetingTitle(r) }}
	colLocation = column{"Location", 25, func(_ int, r *entity.AttendanceRecord) interface{} { return orMissing(r.Location) }}
	colTime     = column{"Time", 25, func(_ int, r *entity.AttendanceRecord) interface{} { return r.Timestamp.UTC().Format(timeLayout) }}

	csvColumns  = []column{colNumber, colName, colEmail, colMeeting, colLocation, colTime}
	xlsxColumns = []column{colNumber, colName, colEmail, colLocation, colTime}
)

func orMissing(s string) string {
	if s == "" {
		return missing
	}
	return s
}

func memberName(r *entity.AttendanceRecord) string {
	if r.Member == nil {
		return missing
	}
	return orMissing(r.Member.Name)
}

func memberEmail(r *entity.AttendanceRecord) string {
	if r.Member == nil {
		return missing
	}
	return orMissing(r.Member.Email)
}

func meetingTitle(r *entity.AttendanceRecord) string {
	if r.Meeting == nil {
		return missing
	}
	return orMissing(r.Meeting.Title)
}

// CSV writes a header row followed by one row per record.
func CSV(w io.Writer, records []*entity.AttendanceRecord) error {
	cw := csv.NewWriter(w)
	header := make([]string, len(csvColumns))
	for i, c := range csvColumns {
		header[i] = c.title
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, r := range records {
		row := make([]string, len(csvColumns))
		for j, c := range csvColumns {
			row[j] = fmt.Sprint(c.value(i, r))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// XLSX writes a single "Attendance" sheet with a styled header row.
func XLSX(w io.Writer, records []*entity.AttendanceRecord) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for j, c := range xlsxColumns {
		name, _ := excelize.ColumnNumberToName(j + 1)
		if err = f.SetColWidth(sheetName, name, name, c.width); err != nil {
			return err
		}
		if err = f.SetCellValue(sheetName, name+"1", c.title); err != nil {
			return err
		}
	}
	last, _ := excelize.ColumnNumberToName(len(xlsxColumns))
	if err = f.SetCellStyle(sheetName, "A1", last+"1", style); err != nil {
		return err
	}

	for i, r := range records {
		for j, c := range xlsxColumns {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			if err = f.SetCellValue(sheetName, cell, c.value(i, r)); err != nil {
				return err
			}
		}
	}
	_, err = f.WriteTo(w)
	return err
}

// FileName builds a download name safe for a Content-Disposition header.
func FileName(base, ext string) string {
	name := strings.Trim(unsafeName.ReplaceAllString(base, "-"), "-")
	if name == "" {
		name = "meeting"
	}
	return fmt.Sprintf("%s-attendance.%s", name, ext)
}
