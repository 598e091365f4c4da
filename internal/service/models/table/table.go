package table

// Table is a seat table orders are placed against.
type Table struct {
	ID              int64  `json:"id"               mapstructure:"id"`
	Number          int    `json:"number"           mapstructure:"number"`
	SeatingCapacity int    `json:"seatingCapacity"  mapstructure:"seating_capacity"`
}
