package schedule

import "errors"

var (
	ErrSlotUnavailable         = errors.New("slot is unavailable")
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrNoPendingUndo           = errors.New("no pending leave change to undo")
	ErrUnknownSlot             = errors.New("slot is not in the catalog")
	ErrInvalidPeriod           = errors.New("invalid period")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrInvalidCatalog          = errors.New("invalid slot catalog")
	ErrInvalidDate             = errors.New("invalid date")
)
