package query

import (
	"errors"
)

var (
	ErrTableNotFound = errors.New("table not found")
	ErrVisitNotFound = errors.New("visit not found")
)
