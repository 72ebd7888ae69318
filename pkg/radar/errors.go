package radar

import (
	"errors"
	"fmt"
)

//Sentinel errors matched with errors.Is across the pipeline.
//Synchronous APIs return them directly; asynchronous APIs resolve
//futures with them. They never cross a worker goroutine as a panic.
var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNotReady         = errors.New("module not ready")
	ErrInvalidState     = errors.New("operation not allowed in current state")
	ErrQueueFull        = errors.New("queue is full")
	ErrTimeout          = errors.New("operation timed out")
	ErrCancelled        = errors.New("task cancelled")
	ErrShutdown         = errors.New("shutdown in progress")
	ErrTaskFailed       = errors.New("task execution failed")
	ErrInvalidInput     = errors.New("invalid input data")
)

//ErrorCode is the numeric code reported through error callbacks.
//Codes are grouped per module family, 0x0000 for system-wide codes.
type ErrorCode uint16

const (
	CodeSuccess          ErrorCode = 0x0000
	CodeUnknownError     ErrorCode = 0x0001
	CodeInvalidParameter ErrorCode = 0x0002
	CodeOperationTimeout ErrorCode = 0x0005
	CodeInitFailed       ErrorCode = 0x0006
	CodeShutdownFailed   ErrorCode = 0x0007
	CodeConfigError      ErrorCode = 0x0008

	CodeReceiverNotReady ErrorCode = 0x1001
	CodeReceiverRunning  ErrorCode = 0x1002
	CodePacketCorruption ErrorCode = 0x1004
	CodeBufferOverflow   ErrorCode = 0x1005

	CodeProcessorNotReady ErrorCode = 0x2001
	CodeInvalidInputData  ErrorCode = 0x2002
	CodeProcessingFailed  ErrorCode = 0x2003

	CodeSchedulerNotReady   ErrorCode = 0x3001
	CodeTaskQueueFull       ErrorCode = 0x3002
	CodeTaskExecutionFailed ErrorCode = 0x3003
	CodeSchedulingError     ErrorCode = 0x3008
	CodeTaskTimeout         ErrorCode = 0x3009

	CodeDisplayNotReady ErrorCode = 0x4001
	CodeRenderError     ErrorCode = 0x4002
	CodeFileWriteError  ErrorCode = 0x4004
)

//ErrorCallback receives out-of-band module errors. Consumed as an opaque
//sink; the core makes no assumption about rendering or persistence.
type ErrorCallback func(code ErrorCode, message string)

//StateChangeCallback is notified after a module state swap completes.
type StateChangeCallback func(oldState, newState ModuleState)

//ModuleError pairs an error code with a wrapped cause for callback reporting.
type ModuleError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *ModuleError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[0x%04X] %s: %v", uint16(e.Code), e.Message, e.Cause)
	}
	return fmt.Sprintf("[0x%04X] %s", uint16(e.Code), e.Message)
}

func (e *ModuleError) Unwrap() error {
	return e.Cause
}

//NewModuleError builds a coded error wrapping an optional cause.
func NewModuleError(code ErrorCode, message string, cause error) *ModuleError {
	return &ModuleError{Code: code, Message: message, Cause: cause}
}
