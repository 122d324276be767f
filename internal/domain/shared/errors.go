package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code,
// so errors.Is(err, ErrNotFound) matches any NOT_FOUND error.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes
const (
	CodeNotFound            = "NOT_FOUND"
	CodeAlreadyExists       = "ALREADY_EXISTS"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeInvalidQuantity     = "INVALID_QUANTITY"
	CodeInvalidExpiry       = "INVALID_EXPIRY"
	CodeInsufficientStock   = "INSUFFICIENT_STOCK"
	CodeInactiveItem        = "INACTIVE_ITEM"
	CodeUnderageCustomer    = "UNDERAGE_CUSTOMER"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeInvalidState        = "INVALID_STATE"
)

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists       = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInvalidInput        = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrInvalidQuantity     = NewDomainError(CodeInvalidQuantity, "Quantity must be greater than zero")
	ErrInvalidExpiry       = NewDomainError(CodeInvalidExpiry, "Expiry date must be in the future")
	ErrInsufficientStock   = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	ErrInactiveItem        = NewDomainError(CodeInactiveItem, "Item is inactive or removed")
	ErrUnderageCustomer    = NewDomainError(CodeUnderageCustomer, "Customer must be at least 18 years old")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
)
