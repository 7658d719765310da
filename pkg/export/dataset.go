package export

// Dataset defines tabular export content. Rows index values by header name
// so sparse cells render as blanks rather than shifting columns.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}
