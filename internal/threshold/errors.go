package threshold

import "github.com/pkg/errors"

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrDegenerateFit    = errors.New("degenerate mixture fit")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrUndefinedRatio   = errors.New("undefined posterior ratio")
)
