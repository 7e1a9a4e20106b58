package service

import "errors"

var (
	// ErrApplicationExists is returned when an application for the same promotion id already exists
	ErrApplicationExists = errors.New("application already exists")

	// ErrApplicationNotFound is returned when an application cannot be found
	ErrApplicationNotFound = errors.New("application not found")

	// ErrInvalidRequest is returned when request data is invalid or incomplete
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnsupportedPromotion is returned when an operation does not apply to the application's promotion variant
	ErrUnsupportedPromotion = errors.New("operation not supported for promotion kind")

	// ErrApplicationNotInService is returned when a benefit is requested for an application that is not in service
	ErrApplicationNotInService = errors.New("application is not in service")

	// ErrInconsistentApplication is returned when the paid promotion classification does not match the promotion
	ErrInconsistentApplication = errors.New("promotion does not match payment information")
)
