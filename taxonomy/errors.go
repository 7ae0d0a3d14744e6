package taxonomy

import "errors"

// ErrUnknownCategory is returned when a category tag is not one of the three taxonomy domains.
var ErrUnknownCategory = errors.New("taxonomy: unknown category")
