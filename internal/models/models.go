package models

import (
	"fmt"
	"strings"
)

// CourseRecord represents one course entry extracted from a schedule screenshot
type CourseRecord struct {
	Date        string `json:"date" yaml:"date" parquet:"date"`
	Time        string `json:"time" yaml:"time" parquet:"time"`
	StudentName string `json:"studentName" yaml:"studentName" parquet:"student_name"`
	CourseName  string `json:"courseName" yaml:"courseName" parquet:"course_name"`
	TeacherName string `json:"teacherName" yaml:"teacherName" parquet:"teacher_name"`
}

// Fields returns the record values in the fixed column order
// (date, time, student, course, teacher).
func (r CourseRecord) Fields() []string {
	return []string{r.Date, r.Time, r.StudentName, r.CourseName, r.TeacherName}
}

// FieldNames lists the wire names of the record fields in column order.
var FieldNames = []string{"date", "time", "studentName", "courseName", "teacherName"}

// Mode controls how a batch result is merged into the session record set
type Mode string

const (
	ModeReplace Mode = "replace"
	ModeAppend  Mode = "append"
)

// ParseMode converts user input into a Mode. An empty string means replace.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeReplace:
		return ModeReplace, nil
	case ModeAppend:
		return ModeAppend, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be 'replace' or 'append'", s)
	}
}

// Status is the session-visible processing state
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusIdle, StatusProcessing, StatusSuccess, StatusError:
		return true
	}
	return false
}

// Image is one uploaded screenshot, read fully into memory
type Image struct {
	Name string `json:"name"`
	Data []byte `json:"-"`
}
