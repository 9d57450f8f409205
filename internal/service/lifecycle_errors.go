package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-training-api/internal/lifecycle"
)

var (
	// ErrAssignmentNotApproved indicates grading was attempted on an unapproved trainee assignment.
	ErrAssignmentNotApproved = errors.New("trainee assignment is not approved")
	// ErrGradeLocked indicates a certified grade may only be corrected by an administrator.
	ErrGradeLocked = errors.New("grade is locked by an issued certificate")
	// ErrRenewalNotAllowed indicates the certificate expired beyond the renewal grace period.
	ErrRenewalNotAllowed = errors.New("certificate renewal no longer allowed")
	// ErrInvalidExpiration indicates a renewal date that does not extend the certificate.
	ErrInvalidExpiration = errors.New("invalid expiration date")
	// ErrUnknownRequestType indicates an approval request for an unsupported entity family.
	ErrUnknownRequestType = errors.New("unknown request type")
)

// gatewayError translates repository failures into lifecycle error kinds. Errors that
// already carry a lifecycle kind pass through untouched.
func gatewayError(domain, op string, err error) error {
	if err == nil {
		return nil
	}

	var lifecycleErr *lifecycle.Error
	if errors.As(err, &lifecycleErr) {
		return err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return lifecycle.WrapError(domain, op, lifecycle.ErrNotFound, fmt.Sprintf("%s not found", domain), err)
	}

	return lifecycle.WrapError(domain, op, lifecycle.ErrPersistence, "persistence gateway failure", err)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, lifecycle.ErrNotFound)
}
