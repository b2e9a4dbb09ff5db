package workbook

import (
	"errors"
	"fmt"
)

// ErrInvalidFormat indicates the input cannot be parsed as a workbook.
var ErrInvalidFormat = errors.New("invalid workbook format")

// SheetError reports a sheet that could not be read. The rest of the workbook
// is still usable.
type SheetError struct {
	SheetName string
	Err       error
}

func (e *SheetError) Error() string {
	return fmt.Sprintf("read sheet %q: %v", e.SheetName, e.Err)
}

func (e *SheetError) Unwrap() error {
	return e.Err
}
