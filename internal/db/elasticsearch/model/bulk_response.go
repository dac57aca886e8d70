package model

// BulkResponse is returned with status 200 even when individual items failed.
type BulkResponse struct {
	Took   int                           `json:"took"`
	Errors bool                          `json:"errors"`
	Items  []map[string]BulkResponseItem `json:"items"`
}

type BulkResponseItem struct {
	ID     string     `json:"_id"`
	Index  string     `json:"_index"`
	Status int        `json:"status"`
	Error  *ItemError `json:"error,omitempty"`
}

type ItemError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}
