package motion

import "errors"

var (
	// ErrLockBusy means the axis ownership lock could not be acquired in
	// time. Local failure: the caller's next cycle retries the whole
	// operation.
	ErrLockBusy = errors.New("motion: axis lock busy")

	// ErrMoveAborted means the move yielded to user pre-emption or
	// shutdown. Partial step progress is already committed; this is not
	// a failure.
	ErrMoveAborted = errors.New("motion: move aborted")

	// ErrHalted means motion was refused or stopped because the session
	// error flag is set.
	ErrHalted = errors.New("motion: error state set, motors disabled")

	// ErrSafetyLimit means a zoom/focus counter would exceed its travel
	// bound. Session-fatal.
	ErrSafetyLimit = errors.New("motion: safety limit exceeded")

	// ErrMoveTimeout means a bounded move ran past its deadline.
	ErrMoveTimeout = errors.New("motion: move timed out")

	// ErrTabSeekTimeout means the tray scanned its full search budget
	// without a confirmed tab rise. Non-fatal.
	ErrTabSeekTimeout = errors.New("motion: timed out searching for next tab")

	// ErrHomingFailed means an axis limit switch was not found in either
	// direction. Non-fatal; the caller decides.
	ErrHomingFailed = errors.New("motion: homing failed")
)
