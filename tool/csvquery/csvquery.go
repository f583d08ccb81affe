// Package csvquery exposes SQL analysis over uploaded CSV files as a
// research tool. Each invocation downloads the file, loads it into an
// in-memory SQLite table and either runs a caller-supplied query or asks a
// model to plan queries for a free-text objective.
package csvquery

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/pharmadb/deepresearch/core"
	"github.com/pharmadb/deepresearch/model"
	"github.com/pharmadb/deepresearch/tool"
)

// DefaultMaxRows caps the rows rendered per query result.
const DefaultMaxRows = 50

// Options configures the query_csv tool.
type Options struct {
	// Planner generates query plans for objective mode. A nil planner
	// disables objective mode.
	Planner model.Model

	// MaxRows rendered per result table.
	MaxRows int
}

// queryArgs documents the tool's parameter schema.
type queryArgs struct {
	FileID    string `json:"file_id" description:"Storage object path of the CSV file to query" required:"true"`
	SQLQuery  string `json:"sql_query,omitempty" description:"A SQLite SELECT statement against the table current_csv_table"`
	Objective string `json:"objective,omitempty" description:"A natural language analysis goal; queries are planned automatically"`
}

// New builds the query_csv tool. Failed queries come back as formatted
// observation text with column suggestions rather than hard errors, so the
// analyst can self-correct on the next turn.
func New(optFns ...func(o *Options)) *tool.FunctionTool {
	opts := Options{MaxRows: DefaultMaxRows}
	for _, fn := range optFns {
		fn(&opts)
	}

	return tool.NewFunctionToolFromStruct(
		"query_csv",
		"Run SQL analysis over an uploaded CSV file. Provide either sql_query for a direct SELECT against the table current_csv_table, or objective for automatic query planning.",
		queryArgs{},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			fileID, _ := args["file_id"].(string)
			if strings.TrimSpace(fileID) == "" {
				return nil, fmt.Errorf("file_id must not be empty")
			}
			sqlQuery, _ := args["sql_query"].(string)
			objective, _ := args["objective"].(string)
			if strings.TrimSpace(sqlQuery) == "" && strings.TrimSpace(objective) == "" {
				return nil, fmt.Errorf("provide either sql_query or objective")
			}

			data, err := toolCtx.DownloadFile(fileID)
			if err != nil {
				return nil, fmt.Errorf("download CSV %q: %w", fileID, err)
			}

			header, rows, err := parseCSV(data)
			if err != nil {
				return nil, fmt.Errorf("parse CSV %q: %w", fileID, err)
			}

			db, err := loadTable(header, rows)
			if err != nil {
				return nil, err
			}
			defer db.Close()

			schema := analyzeSchema(header, rows)

			if strings.TrimSpace(sqlQuery) != "" {
				return runDirect(db, schema, sqlQuery, opts.MaxRows), nil
			}

			if opts.Planner == nil {
				return nil, fmt.Errorf("objective mode requires a configured planner model; provide sql_query instead")
			}
			return runObjective(toolCtx, db, schema, objective, opts.MaxRows, opts.Planner), nil
		})
}

// runDirect executes a caller-supplied query and renders the result table.
func runDirect(db *sql.DB, schema *Schema, query string, maxRows int) string {
	columns, rows, err := runQuery(db, query)
	if err != nil {
		return queryFailure(schema, query, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Query executed against %s (%d rows loaded).\n", TableName, schema.RowCount)
	fmt.Fprintf(&b, "SQL: %s\n\n", strings.TrimSpace(query))
	b.WriteString(renderTable(columns, rows, maxRows))
	fmt.Fprintf(&b, "\n\n%d row(s) returned.", len(rows))
	return b.String()
}

// runObjective plans queries for the objective and executes them in order.
// Individual step failures are reported inline and do not abort later steps.
func runObjective(toolCtx *core.ToolContext, db *sql.DB, schema *Schema, objective string, maxRows int, planner model.Model) string {
	steps, err := planQueries(toolCtx, planner, schema, objective)
	if err != nil {
		return fmt.Sprintf("Could not plan queries for objective %q: %v\n\nSchema of %s (%d rows):\n%s",
			objective, err, TableName, schema.RowCount, schema.describe())
	}

	var b strings.Builder
	b.WriteString("## CSV Analysis Results\n\n")
	fmt.Fprintf(&b, "Objective: %s\n", objective)
	fmt.Fprintf(&b, "Table: %s (%d rows)\n", TableName, schema.RowCount)

	for i, step := range steps {
		fmt.Fprintf(&b, "\n### Step %d: %s\n", i+1, step.Description)
		fmt.Fprintf(&b, "SQL: %s\n\n", strings.TrimSpace(step.SQL))

		columns, rows, err := runQuery(db, step.SQL)
		if err != nil {
			b.WriteString(queryFailure(schema, step.SQL, err))
			b.WriteString("\n")
			continue
		}
		b.WriteString(renderTable(columns, rows, maxRows))
		fmt.Fprintf(&b, "\n%d row(s) returned.\n", len(rows))
	}

	return strings.TrimRight(b.String(), "\n")
}

var noSuchColumnRe = regexp.MustCompile(`no such column:?\s+"?([\w .-]+)"?`)

// queryFailure turns a SQL error into observation text the analyst can act
// on: the error itself, a fuzzy column suggestion when the failure names an
// unknown column, and the real column list.
func queryFailure(schema *Schema, query string, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query failed: %v\n", err)
	fmt.Fprintf(&b, "SQL: %s\n", strings.TrimSpace(query))

	if m := noSuchColumnRe.FindStringSubmatch(err.Error()); m != nil {
		missing := strings.TrimSpace(m[1])
		if suggestion := suggestColumn(missing, schema.Columns); suggestion != "" {
			fmt.Fprintf(&b, "Did you mean %q instead of %q?\n", suggestion, missing)
		}
	}

	fmt.Fprintf(&b, "Available columns: %s", strings.Join(schema.Columns, ", "))
	return b.String()
}
