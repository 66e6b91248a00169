package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeInvalidCheckout     Code = "INVALID_CHECKOUT_STATE"
	CodeCrossRestaurantItem Code = "CROSS_RESTAURANT_ITEM"
	CodeConflictingDiscount Code = "CONFLICTING_DISCOUNT"
	CodeInvalidCoupon       Code = "INVALID_COUPON"
	CodeMissingCustomerRef  Code = "MISSING_CUSTOMER_REFERENCE"
	CodeIllegalTransition   Code = "ILLEGAL_TRANSITION"
	CodeTransaction         Code = "TRANSACTION_FAILURE"
	CodePostCommit          Code = "POST_COMMIT_SIDE_EFFECT_FAILURE"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeNotFound            Code = "NOT_FOUND"
	CodeConflict            Code = "CONFLICT"
	CodeIdempotency         Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal            Code = "INTERNAL_ERROR"
	CodeDependency          Code = "DEPENDENCY_ERROR"
)

// Class groups codes by how callers are expected to react.
type Class string

const (
	ClassValidation Class = "validation"
	ClassState      Class = "state"
	ClassAccess     Class = "access"
	ClassTransient  Class = "transient"
	ClassCritical   Class = "critical"
	ClassInternal   Class = "internal"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	Class          Class
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
		Class:          ClassValidation,
	},
	CodeInvalidCheckout: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		PublicMessage:  "cart is not ready for checkout",
		DetailsAllowed: true,
		Class:          ClassValidation,
	},
	CodeCrossRestaurantItem: {
		HTTPStatus:     http.StatusConflict,
		PublicMessage:  "cart already holds items from another restaurant",
		DetailsAllowed: true,
		Class:          ClassValidation,
	},
	CodeConflictingDiscount: {
		HTTPStatus:     http.StatusConflict,
		PublicMessage:  "coupon and loyalty discounts cannot be combined",
		DetailsAllowed: true,
		Class:          ClassValidation,
	},
	CodeInvalidCoupon: {
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "coupon code is not valid",
		DetailsAllowed: true,
		Class:          ClassValidation,
	},
	CodeMissingCustomerRef: {
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "customer reference required",
		DetailsAllowed: false,
		Class:          ClassValidation,
	},
	CodeIllegalTransition: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		PublicMessage:  "state transition disallowed",
		DetailsAllowed: true,
		Class:          ClassState,
	},
	CodeTransaction: {
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		PublicMessage:  "order could not be saved, try again",
		DetailsAllowed: false,
		Class:          ClassTransient,
	},
	CodePostCommit: {
		HTTPStatus:     http.StatusInternalServerError,
		Retryable:      false,
		PublicMessage:  "order saved but follow-up processing failed",
		DetailsAllowed: true,
		Class:          ClassCritical,
	},
	CodeUnauthorized: {
		HTTPStatus:    http.StatusUnauthorized,
		PublicMessage: "authentication required",
		Class:         ClassAccess,
	},
	CodeForbidden: {
		HTTPStatus:    http.StatusForbidden,
		PublicMessage: "access denied",
		Class:         ClassAccess,
	},
	CodeNotFound: {
		HTTPStatus:    http.StatusNotFound,
		PublicMessage: "resource not found",
		Class:         ClassValidation,
	},
	CodeConflict: {
		HTTPStatus:    http.StatusConflict,
		Retryable:     true,
		PublicMessage: "conflict detected",
		Class:         ClassState,
	},
	CodeIdempotency: {
		HTTPStatus:     http.StatusConflict,
		PublicMessage:  "idempotency key reused",
		DetailsAllowed: true,
		Class:          ClassValidation,
	},
	CodeInternal: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     true,
		PublicMessage: "internal server error",
		Class:         ClassInternal,
	},
	CodeDependency: {
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: true,
		Class:          ClassTransient,
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether the outermost typed error in err's chain carries code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}

// ClassOf returns the class of err, treating untyped errors as internal.
func ClassOf(err error) Class {
	typed := As(err)
	if typed == nil {
		return ClassInternal
	}
	return MetadataFor(typed.Code()).Class
}
