package extract

import (
	"errors"
	"fmt"
)

// ExtractEnrollment resolves the format from the path's extension and
// extracts enrollment records.
func ExtractEnrollment(path string) EnrollmentResult {
	format, err := ResolvePath(KindEnrollment, path)
	if err != nil {
		return FailedEnrollment(err.Error())
	}
	return Enrollment(path, format)
}

// Enrollment extracts student records from the file at path. Records from
// every table (or every sheet row) are flattened into one sequence.
func Enrollment(path string, format Format) EnrollmentResult {
	students, err := enrollmentRecords(path, format)
	if err != nil {
		var ufe *UnsupportedFormatError
		if errors.As(err, &ufe) {
			return FailedEnrollment(ufe.Error())
		}
		return FailedEnrollment(fmt.Sprintf("Error parsing enrollment file: %v", err))
	}
	if len(students) == 0 {
		return FailedEnrollment(ErrNoStudentData.Error())
	}

	return EnrollmentResult{
		Status: StatusSuccess,
		Data: &EnrollmentData{
			Students:      students,
			TotalStudents: len(students),
		},
	}
}

func enrollmentRecords(path string, format Format) ([]*Record, error) {
	switch format {
	case FormatSpreadsheet:
		grid, err := readSpreadsheet(path)
		if err != nil {
			return nil, err
		}
		return gridRecords(grid), nil
	case FormatLegacySpreadsheet:
		grid, err := readLegacySpreadsheet(path)
		if err != nil {
			return nil, err
		}
		return gridRecords(grid), nil
	case FormatDocument:
		tables, err := readDocument(path)
		if err != nil {
			return nil, err
		}
		return flattenTables(tables), nil
	default:
		return nil, &UnsupportedFormatError{Ext: "." + string(format)}
	}
}

// flattenTables concatenates the records of every table in order.
func flattenTables(tables []rawTable) []*Record {
	var out []*Record
	for _, t := range tables {
		out = append(out, t.records()...)
	}
	return out
}

// ExtractTimetable extracts timetable tables from a .docx file. Any other
// extension is rejected before the file is opened.
func ExtractTimetable(path string) TimetableResult {
	if _, err := ResolvePath(KindTimetable, path); err != nil {
		return FailedTimetable(err.Error())
	}
	return Timetable(path)
}

// Timetable extracts every table that yields at least one record. Each
// table keeps its position among all tables in the document, so indices
// skip over tables that were dropped.
func Timetable(path string) TimetableResult {
	raw, err := readDocument(path)
	if err != nil {
		return FailedTimetable(fmt.Sprintf("Error parsing timetable: %v", err))
	}

	var tables []Table
	for i, t := range raw {
		rows := t.records()
		if len(rows) == 0 {
			continue
		}
		tables = append(tables, Table{
			Index:   i,
			Headers: t.headers(),
			Rows:    rows,
		})
	}
	if len(tables) == 0 {
		return FailedTimetable(ErrNoTimetableData.Error())
	}

	return TimetableResult{Status: StatusSuccess, Data: tables}
}
