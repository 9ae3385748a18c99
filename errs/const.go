package errs

const (
	ErrCode_OK             = 0
	ErrCode_Unknown        = 1
	ErrCode_AlreadyStarted = 2
	ErrCode_Closed         = 3
	ErrCode_InvalidOption  = 4
)

var (
	Unknown        = CreateCodeError(ErrCode_Unknown, "UNKNOWN")
	AlreadyStarted = CreateCodeError(ErrCode_AlreadyStarted, "ALREADY_STARTED")
	Closed         = CreateCodeError(ErrCode_Closed, "CLOSED")
	InvalidOption  = CreateCodeError(ErrCode_InvalidOption, "INVALID_OPTION")
)
