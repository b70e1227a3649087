package hostapi

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLStore exposes the embedded relational store. Stores are opened per
// call and closed before returning, so no invocation holds a long-lived
// lock across the file.
type SQLStore struct{}

// Statement verbs rejected by both Query and Exec. Probes get plain SQL
// over their own store files, not database administration.
var rejectedVerbs = map[string]bool{
	"pragma":  true,
	"attach":  true,
	"detach":  true,
	"vacuum":  true,
	"reindex": true,
	"analyze": true,
}

func checkStatement(sqlText string) error {
	stmt := stripLeadingComments(sqlText)
	if stmt == "" {
		return queryErr("db", fmt.Errorf("empty statement"))
	}
	if strings.HasPrefix(stmt, ".") {
		return queryErr("db", fmt.Errorf("sqlite shell commands are not supported"))
	}
	fields := strings.FieldsFunc(stmt, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '(' || r == ';'
	})
	if len(fields) == 0 {
		return queryErr("db", fmt.Errorf("empty statement"))
	}
	verb := strings.ToLower(fields[0])
	if rejectedVerbs[verb] {
		return queryErr("db", fmt.Errorf("%s statements are not allowed", verb))
	}
	return nil
}

func stripLeadingComments(sqlText string) string {
	s := strings.TrimSpace(sqlText)
	for {
		switch {
		case strings.HasPrefix(s, "--"):
			idx := strings.IndexByte(s, '\n')
			if idx < 0 {
				return ""
			}
			s = strings.TrimSpace(s[idx+1:])
		case strings.HasPrefix(s, "/*"):
			idx := strings.Index(s, "*/")
			if idx < 0 {
				return ""
			}
			s = strings.TrimSpace(s[idx+2:])
		default:
			return s
		}
	}
}

// Query opens the store at path read-only, runs one SELECT-style
// statement, and returns the rows as column-keyed maps. BLOB values
// scan as strings.
func (s *SQLStore) Query(ctx context.Context, path, sqlText string) ([]map[string]any, error) {
	if err := checkStatement(sqlText); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", ExpandPath(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, queryErr("db.query", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, queryErr("db.query", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, queryErr("db.query", err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, queryErr("db.query", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("db.query", err)
	}
	return out, nil
}

// Exec opens the store at path read-write (creating the file and its
// parent directory if needed), runs one statement, and returns the
// affected row count. WAL mode and a busy timeout keep overlapping
// invocations of the same probe from tripping over each other.
func (s *SQLStore) Exec(ctx context.Context, path, sqlText string) (int64, error) {
	if err := checkStatement(sqlText); err != nil {
		return 0, err
	}

	expanded := ExpandPath(path)
	dir := filepath.Dir(expanded)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, queryErr("db.exec", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", expanded)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return 0, queryErr("db.exec", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	res, err := db.ExecContext(ctx, sqlText)
	if err != nil {
		return 0, queryErr("db.exec", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, queryErr("db.exec", err)
	}
	return n, nil
}
