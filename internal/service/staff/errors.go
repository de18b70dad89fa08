package staff

import "errors"

var (
	ErrTableConflict = errors.New("table already exists")
	ErrTableNotFound = errors.New("table not found")
	ErrTableOccupied = errors.New("table is occupied")
)
