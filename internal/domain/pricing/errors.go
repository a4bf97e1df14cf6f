package pricing

import "github.com/pricing/backend/internal/domain/shared"

var (
	// ErrCycle is returned when a venture would become its own ancestor
	ErrCycle = shared.NewDomainError("VENTURE_CYCLE", "Venture cannot be placed under itself or a descendant")
	// ErrDanglingParent is returned when a venture references an unknown parent
	ErrDanglingParent    = shared.NewDomainError("VENTURE_DANGLING_PARENT", "Venture parent does not exist")
	ErrInvalidRange      = shared.NewDomainError("INVALID_DATE_RANGE", "End date is before start date")
	ErrRangeTooLong      = shared.NewDomainError("INVALID_DATE_RANGE", "Date range cannot exceed 366 days")
	ErrNegativePrice     = shared.NewDomainError("NEGATIVE_PRICE", "Price cannot be negative")
	ErrAlreadyDeprecated = shared.NewDomainError("ALREADY_DEPRECATED", "Ledger row is already deprecated")
)
