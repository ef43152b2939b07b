package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidSignal        ErrorCode = 102
	ErrCodeInvalidOrder         ErrorCode = 103
	ErrCodeInvalidQuantity      ErrorCode = 104
	ErrCodeInvalidPrice         ErrorCode = 105
	ErrCodeMissingParameter     ErrorCode = 106
	ErrCodeInvalidVersion       ErrorCode = 107
	ErrCodeInvalidInterval      ErrorCode = 108
	ErrCodeInvalidMarketHours   ErrorCode = 109

	// Connection errors (200-299)
	ErrCodeConnectionFailed   ErrorCode = 200
	ErrCodeConnectionTimeout  ErrorCode = 201
	ErrCodeProbeFailed        ErrorCode = 202
	ErrCodeNotConnected       ErrorCode = 203
	ErrCodeReconnectExhausted ErrorCode = 204
	ErrCodeAlreadyConnected   ErrorCode = 205

	// Strategy errors (400-499)
	ErrCodeStrategyNotRegistered ErrorCode = 400
	ErrCodeStrategyAlreadyExists ErrorCode = 401
	ErrCodeStrategyConfigError   ErrorCode = 402
	ErrCodeStrategyPanic         ErrorCode = 403
	ErrCodeVersionMismatch       ErrorCode = 404

	// Trading errors (500-599)
	ErrCodeOrderRejected       ErrorCode = 500
	ErrCodeOrderFailed         ErrorCode = 501
	ErrCodePositionNotFound    ErrorCode = 502
	ErrCodeRiskBlocked         ErrorCode = 503
	ErrCodeKillSwitchActive    ErrorCode = 504
	ErrCodeOrderStateViolation ErrorCode = 505
	ErrCodeRateLimited         ErrorCode = 506

	// Lifecycle errors (600-699)
	ErrCodeInitFailed             ErrorCode = 600
	ErrCodeInvalidStateTransition ErrorCode = 601
	ErrCodeAlreadyRunning         ErrorCode = 602
	ErrCodeNotRunning             ErrorCode = 603

	// Market data errors (700-799)
	ErrCodeMarketDataFetchFailed ErrorCode = 700
	ErrCodeMalformedQuote        ErrorCode = 701
	ErrCodeEmptyCycle            ErrorCode = 702
	ErrCodeHistoricalDataFailed  ErrorCode = 703
	ErrCodeInvalidTimespan       ErrorCode = 704
	ErrCodeInvalidProvider       ErrorCode = 705

	// Cache errors (800-899)
	ErrCodeCacheUnavailable ErrorCode = 800
	ErrCodeCacheMiss        ErrorCode = 801

	// Journal errors (900-999)
	ErrCodeJournalInitFailed  ErrorCode = 900
	ErrCodeJournalWriteFailed ErrorCode = 901
)
