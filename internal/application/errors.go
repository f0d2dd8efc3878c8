package application

import (
	"errors"
	"strconv"

	"github.com/wms-platform/allocation-service/internal/domain"
	apperrors "github.com/wms-platform/allocation-service/pkg/errors"
)

// mapDomainError translates domain errors into the application error
// taxonomy. Errors that already carry an AppError pass through unchanged.
func mapDomainError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}

	var shortage *domain.ShortageError
	if errors.As(err, &shortage) {
		return apperrors.ErrInsufficientStock(shortage.Error()).
			WithDetail("itemRef", shortage.ItemRef).
			WithDetail("requested", strconv.Itoa(shortage.Requested)).
			WithDetail("available", strconv.Itoa(shortage.Available)).
			Wrap(err)
	}

	var transition *domain.StatusTransitionError
	if errors.As(err, &transition) {
		return apperrors.ErrStateConflict(transition.Error()).Wrap(err)
	}

	switch {
	case errors.Is(err, domain.ErrLockTimeout):
		return apperrors.ErrLockTimeout(err.Error()).Wrap(err)

	case errors.Is(err, domain.ErrBatchNotFound):
		return apperrors.ErrNotFound("batch").Wrap(err)
	case errors.Is(err, domain.ErrLocationNotFound):
		return apperrors.ErrNotFound("location inventory").Wrap(err)
	case errors.Is(err, domain.ErrAllocationNotFound):
		return apperrors.ErrNotFound("allocation").Wrap(err)

	case errors.Is(err, domain.ErrInsufficientStock):
		return apperrors.ErrInsufficientStock(err.Error()).Wrap(err)

	case errors.Is(err, domain.ErrAllocationNotPending),
		errors.Is(err, domain.ErrAllocationNotAllocated),
		errors.Is(err, domain.ErrAllocationNotConfirmed),
		errors.Is(err, domain.ErrAllocationNotActive),
		errors.Is(err, domain.ErrAllocationTerminal),
		errors.Is(err, domain.ErrLocationNotSellable),
		errors.Is(err, domain.ErrOverRelease):
		return apperrors.ErrStateConflict(err.Error()).Wrap(err)

	case errors.Is(err, domain.ErrChecksumMismatch),
		errors.Is(err, domain.ErrAggregateMismatch),
		errors.Is(err, domain.ErrReservedInvariant):
		return apperrors.ErrIntegrity(err.Error()).Wrap(err)

	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidItemRef),
		errors.Is(err, domain.ErrInvalidLocation),
		errors.Is(err, domain.ErrInvalidWarehouse),
		errors.Is(err, domain.ErrInvalidActor),
		errors.Is(err, domain.ErrAdjustBelowReserved),
		errors.Is(err, domain.ErrUnknownStrategy):
		return apperrors.ErrValidation(err.Error()).Wrap(err)
	}

	return apperrors.ErrInternal("").Wrap(err)
}
