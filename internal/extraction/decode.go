package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/coursesnap/coursesnap/internal/models"
)

// decodeRecords parses the raw model response into course records.
// It accepts a bare JSON array or an object carrying the array under "records".
func decodeRecords(response string) ([]models.CourseRecord, error) {
	response = trimCodeFence(response)
	if response == "" {
		return nil, ErrEmptyResponse
	}

	var v any
	if err := json.Unmarshal([]byte(response), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if obj, ok := v.(map[string]any); ok {
		inner, ok := obj["records"]
		if !ok {
			return nil, fmt.Errorf("%w: expected a JSON array of records", ErrDecode)
		}
		v = inner
	}

	if err := validate(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	items, _ := v.([]any)
	records := make([]models.CourseRecord, 0, len(items))
	for _, item := range items {
		obj, _ := item.(map[string]any)
		records = append(records, models.CourseRecord{
			Date:        stringField(obj, "date"),
			Time:        stringField(obj, "time"),
			StudentName: stringField(obj, "studentName"),
			CourseName:  stringField(obj, "courseName"),
			TeacherName: stringField(obj, "teacherName"),
		})
	}
	return records, nil
}

func stringField(obj map[string]any, name string) string {
	s, _ := obj[name].(string)
	return s
}

// trimCodeFence removes a surrounding markdown code block, which some models
// add even when asked for raw JSON.
func trimCodeFence(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}
