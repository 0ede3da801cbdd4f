// Package export writes course records to an .xlsx workbook and reads them back.
package export

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/coursesnap/coursesnap/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	DefaultFilename = "course_schedule.xlsx"
	SheetName       = "Schedule"
	ContentType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Headers are the column labels, in record field order.
var Headers = []string{"上课日期", "上课时间", "学生姓名", "课程名称", "老师姓名"}

var columnWidths = []float64{15, 20, 15, 25, 15}

var ErrUnexpectedLayout = errors.New("workbook does not look like a course schedule export")

// Error is a failed spreadsheet write or read
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("spreadsheet %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Write encodes records as a single-sheet workbook.
func Write(w io.Writer, records []models.CourseRecord) error {
	start := time.Now()

	f, err := build(records)
	if err != nil {
		return &Error{Op: "write", Err: err}
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return &Error{Op: "write", Err: err}
	}

	slog.Info("Exported workbook", "rows", len(records), "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// WriteFile writes the workbook to path, replacing any existing file.
func WriteFile(path string, records []models.CourseRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return &Error{Op: "write", Err: err}
	}
	if err := Write(file, records); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return &Error{Op: "write", Err: err}
	}
	return nil
}

func build(records []models.CourseRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		row := make([]any, 0, len(Headers))
		for _, v := range r.Fields() {
			row = append(row, v)
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			f.Close()
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}
	return f, nil
}

// Read decodes a workbook produced by Write. The header row must match Headers;
// blank rows are skipped.
func Read(r io.Reader) ([]models.CourseRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &Error{Op: "read", Err: err}
	}
	defer f.Close()

	sheet := SheetName
	if idx, _ := f.GetSheetIndex(sheet); idx == -1 {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, &Error{Op: "read", Err: err}
	}
	if len(rows) == 0 || !headerMatches(rows[0]) {
		return nil, &Error{Op: "read", Err: ErrUnexpectedLayout}
	}

	records := make([]models.CourseRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cells := make([]string, len(Headers))
		copy(cells, row)
		if strings.TrimSpace(strings.Join(cells, "")) == "" {
			continue
		}
		records = append(records, models.CourseRecord{
			Date:        cells[0],
			Time:        cells[1],
			StudentName: cells[2],
			CourseName:  cells[3],
			TeacherName: cells[4],
		})
	}
	return records, nil
}

// ReadFile reads a workbook from disk.
func ReadFile(path string) ([]models.CourseRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &Error{Op: "read", Err: err}
	}
	defer file.Close()
	return Read(file)
}

func headerMatches(row []string) bool {
	if len(row) < len(Headers) {
		return false
	}
	for i, h := range Headers {
		if strings.TrimSpace(row[i]) != h {
			return false
		}
	}
	return true
}
