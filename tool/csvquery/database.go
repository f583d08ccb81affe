package csvquery

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	_ "modernc.org/sqlite"
)

// TableName is the SQLite table every CSV is loaded into. Queries from the
// planner and from callers reference this name directly.
const TableName = "current_csv_table"

// parseCSV reads the raw file into a header row plus data rows. Rows shorter
// than the header are padded, longer rows are truncated, so every row aligns
// with the header.
func parseCSV(data []byte) ([]string, [][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read CSV header: %w", err)
	}
	for i, col := range header {
		col = strings.TrimSpace(col)
		if col == "" {
			col = fmt.Sprintf("column_%d", i+1)
		}
		header[i] = col
	}

	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read CSV row: %w", err)
		}
		row := make([]string, len(header))
		for i := range row {
			if i < len(record) {
				row[i] = record[i]
			}
		}
		rows = append(rows, row)
	}

	return header, rows, nil
}

// loadTable creates an in-memory SQLite database with the CSV loaded as
// TableName. All columns are TEXT. The caller owns the returned handle.
func loadTable(header []string, rows [][]string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	cols := make([]string, len(header))
	placeholders := make([]string, len(header))
	for i, col := range header {
		cols[i] = quoteIdent(col) + " TEXT"
		placeholders[i] = "?"
	}

	createStmt := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(TableName), strings.Join(cols, ", "))
	if _, err := db.Exec(createStmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	insertStmt := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(TableName), strings.Join(placeholders, ", "))
	stmt, err := tx.Prepare(insertStmt)
	if err != nil {
		tx.Rollback()
		db.Close()
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]any, len(row))
		for i, v := range row {
			args[i] = v
		}
		if _, err := stmt.Exec(args...); err != nil {
			tx.Rollback()
			db.Close()
			return nil, fmt.Errorf("insert row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		db.Close()
		return nil, fmt.Errorf("commit: %w", err)
	}

	return db, nil
}

// quoteIdent quotes a SQL identifier, doubling embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// runQuery executes a query and materializes the result set as strings.
// NULL values render as empty strings.
func runQuery(db *sql.DB, query string) ([]string, [][]string, error) {
	rows, err := db.Query(query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var results [][]string
	for rows.Next() {
		values := make([]any, len(columns))
		for i := range values {
			values[i] = new(sql.NullString)
		}
		if err := rows.Scan(values...); err != nil {
			return nil, nil, err
		}
		row := make([]string, len(columns))
		for i, v := range values {
			ns := v.(*sql.NullString)
			if ns.Valid {
				row[i] = ns.String
			}
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return columns, results, nil
}

// renderTable formats a result set as an aligned text table, capped at
// maxRows data rows.
func renderTable(columns []string, rows [][]string, maxRows int) string {
	if len(columns) == 0 {
		return "(no columns)"
	}

	shown := rows
	omitted := 0
	if maxRows > 0 && len(rows) > maxRows {
		shown = rows[:maxRows]
		omitted = len(rows) - maxRows
	}

	// Widths count runes so accented values pad the same as ASCII.
	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = utf8.RuneCountInString(col)
	}
	for _, row := range shown {
		for i := range columns {
			if i < len(row) {
				if w := utf8.RuneCountInString(row[i]); w > widths[i] {
					widths[i] = w
				}
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		for i := range columns {
			if i > 0 {
				b.WriteString(" | ")
			}
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)))
		}
		b.WriteString("\n")
	}

	writeRow(columns)
	for i, w := range widths {
		if i > 0 {
			b.WriteString("-+-")
		}
		b.WriteString(strings.Repeat("-", w))
	}
	b.WriteString("\n")
	for _, row := range shown {
		writeRow(row)
	}

	if len(rows) == 0 {
		b.WriteString("(no rows)\n")
	}
	if omitted > 0 {
		b.WriteString(fmt.Sprintf("(%d more rows not shown)\n", omitted))
	}

	return strings.TrimRight(b.String(), "\n")
}
