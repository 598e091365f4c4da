package order

// QueryOrdersModel represents filter parameters for querying orders.
type QueryOrdersModel struct {
	Ids          []int64  `json:"ids,omitempty"`
	TableIds     []int64  `json:"tableIds,omitempty"`
	BillIds      []int64  `json:"billIds,omitempty"`
	Statuses     []Status `json:"statuses,omitempty"`
	UnbilledOnly bool     `json:"unbilledOnly,omitempty"`
	// ForUpdate locks the selected rows until the surrounding transaction ends.
	ForUpdate bool `json:"-"`
	Limit     int  `json:"limit,omitempty"`
	Offset    int  `json:"offset,omitempty"`
}
