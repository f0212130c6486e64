package postgres

import (
	"fmt"
	"strings"
)

// catalogInsertChunk bounds the keys written by one rate_catalog INSERT so a
// statement stays well under PostgreSQL's 65535 bind parameters.
const catalogInsertChunk = 500

// valuesClause builds "($1, $2), ($3, $4)" for rows × cols placeholders.
func valuesClause(rows, cols int) string {
	var b strings.Builder
	b.Grow(rows * cols * 5)
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := 0; j < cols; j++ {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", i*cols+j+1)
		}
		b.WriteByte(')')
	}
	return b.String()
}

// insertQuery builds a multi-row INSERT for a constant table and column list.
func insertQuery(table string, cols []string, rows int, suffix string) string {
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		table, strings.Join(cols, ", "), valuesClause(rows, len(cols)))
	if suffix != "" {
		q += " " + suffix
	}
	return q
}
