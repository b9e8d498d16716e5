package gateway

import (
	"errors"
	"time"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Result is the envelope every operation returns. On failure only Success,
// Operation and Error are meaningful.
type Result struct {
	Success      bool       `json:"success"`
	Operation    string     `json:"operation"`
	Database     string     `json:"database,omitempty"`
	Message      string     `json:"message,omitempty"`
	Data         any        `json:"data,omitempty"`
	RowCount     *int       `json:"row_count,omitempty"`
	Truncated    bool       `json:"truncated,omitempty"`
	RowsAffected *int64     `json:"rows_affected,omitempty"`
	LastInsertID *int64     `json:"last_insert_id,omitempty"`
	Error        *ErrorInfo `json:"error,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
}

type ErrorInfo struct {
	Kind    Kind         `json:"kind"`
	Message string       `json:"message"`
	Code    string       `json:"code,omitempty"`
	Fields  []FieldError `json:"fields,omitempty"`
}

// Rows returns the result set of a query, or nil when the result carries none.
func (r Result) Rows() []Row {
	rows, _ := r.Data.([]Row)
	return rows
}

type ColumnInfo struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	NotNull      bool    `json:"not_null"`
	DefaultValue *string `json:"default_value,omitempty"`
	PrimaryKey   bool    `json:"primary_key"`
}

type IndexInfo struct {
	Name    string   `json:"name"`
	Unique  bool     `json:"unique"`
	Columns []string `json:"columns"`
}

type TableInfo struct {
	Name     string       `json:"name"`
	Columns  []ColumnInfo `json:"columns"`
	Indexes  []IndexInfo  `json:"indexes"`
	RowCount int64        `json:"row_count"`
}

type OptimizeStep struct {
	Statement string `json:"statement"`
	Elapsed   string `json:"elapsed"`
}

// Failure builds the error envelope for err, stamped with the gateway's clock.
// Errors that did not come from Invoke are reported as storage errors.
func (g *Gateway) Failure(op string, err error) Result {
	info := &ErrorInfo{
		Kind:    KindStorage,
		Message: err.Error(),
		Code:    sqliteCode(err),
	}

	var gwErr *Error
	if errors.As(err, &gwErr) {
		info.Kind = gwErr.Kind
		info.Fields = gwErr.Fields
	}

	return Result{
		Success:   false,
		Operation: op,
		Error:     info,
		Timestamp: g.now().UTC(),
	}
}

func intPtr(v int) *int {
	return &v
}

func int64Ptr(v int64) *int64 {
	return &v
}
