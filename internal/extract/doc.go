// Package extract turns tables embedded in uploaded documents into
// ordered header-keyed records.
//
// The package has no transport or storage dependencies. It is used by the
// HTTP service, the command-line tool, and tests without modification.
//
// # Formats
//
// A [Format] is resolved once from the upload's file extension with
// [ResolveFormat] and passed downstream; readers never look at the file
// name again:
//
//   - .xlsx: Office Open XML workbook, first sheet only
//   - .xls:  legacy BIFF workbook, first sheet only
//   - .docx: Word document, every body-level table
//
// # Results
//
// Extraction never panics and never returns a bare error. Every call
// produces either an [EnrollmentResult] or a [TimetableResult], each a
// tagged envelope that is either a success carrying data or an error
// carrying a message:
//
//	res := extract.ExtractEnrollment("/tmp/roster.xlsx")
//	if res.Status == extract.StatusError {
//	    log.Println(res.Message)
//	}
//
// Error messages fall into three groups, distinguishable only by text:
//
//   - unsupported format: "Unsupported file type: .csv"
//   - load or decode failure: "Error parsing enrollment file: ..." or
//     "Error parsing timetable: ..."
//   - no usable data: "No valid student data found in file" or
//     "No valid timetable data found"
//
// # Records
//
// A [Record] pairs cells with headers positionally. Blank headers drop
// their column, a repeated header overwrites the earlier value in place,
// and keys marshal to JSON in header order.
package extract
