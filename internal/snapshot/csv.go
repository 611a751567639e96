package snapshot

import (
	"bytes"
	"sort"
	"strings"
)

// Row is one member line of the artifact.
type Row struct {
	Timestamp string
	Name      string
	ID        string
}

// utf8BOM makes spreadsheet imports detect the encoding.
const utf8BOM = "\xef\xbb\xbf"

// RenderCSV builds the snapshot artifact. The dialect is fixed for a
// specific spreadsheet consumer: semicolon delimiter, CRLF line endings,
// every field double-quoted, embedded quotes and delimiters escaped with a
// backslash, and a UTF-8 BOM prefix. Rows are stable-sorted by the
// lowercased display name.
func RenderCSV(headers [3]string, rows []Row) []byte {
	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].Name) < strings.ToLower(sorted[j].Name)
	})

	var buf bytes.Buffer
	buf.WriteString(utf8BOM)
	writeRecord(&buf, headers[0], headers[1], headers[2])
	for _, r := range sorted {
		writeRecord(&buf, r.Timestamp, cleanName(r.Name), r.ID)
	}
	return buf.Bytes()
}

func writeRecord(buf *bytes.Buffer, fields ...string) {
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(';')
		}
		buf.WriteByte('"')
		buf.WriteString(escapeField(f))
		buf.WriteByte('"')
	}
	buf.WriteString("\r\n")
}

var fieldEscaper = strings.NewReplacer(`"`, `\"`, `;`, `\;`)

func escapeField(s string) string {
	return fieldEscaper.Replace(s)
}

// cleanName keeps one row per physical line: CR and LF each become a
// space, then the name is trimmed.
func cleanName(name string) string {
	name = strings.ReplaceAll(name, "\r", " ")
	name = strings.ReplaceAll(name, "\n", " ")
	return strings.TrimSpace(name)
}
