// File: api/schemas/table.go
package schemas

// TableResult is the structured form of an extracted HTML table: an ordered
// header list and one map per data row keyed by header name.
//
// RowCount always equals len(Rows). When two cells in a row map to the same
// header name, the later cell wins; this last-write-wins behavior is
// deliberate policy, pinned by tests, not an accident of iteration order.
type TableResult struct {
	Headers  []string            `json:"headers"`
	Rows     []map[string]string `json:"rows"`
	RowCount int                 `json:"rowCount"`
}
