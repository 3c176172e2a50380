package rpc

const (
	ErrParseError  = -32700
	ErrParseErrorS = "Parse error"

	ErrInvalidRequest  = -32600
	ErrInvalidRequestS = "Invalid Request"

	ErrInternalError  = -32603
	ErrInternalErrorS = "Internal error"

	ErrInvalidSession  = -32000
	ErrInvalidSessionS = "Session is invalid"

	ErrNoSession  = -32001
	ErrNoSessionS = "No session"

	ErrApplication  = 700
	ErrApplicationS = "Application error"

	ErrLinker  = 701
	ErrLinkerS = "Identity linking failed"

	ErrCompression  = 702
	ErrCompressionS = "Archive could not be extracted"

	ErrController  = 703
	ErrControllerS = "Controller failed"

	ErrNoSessionContext  = 789
	ErrNoSessionContextS = "Could not get any Session"

	ErrAuthFailed  = 790
	ErrAuthFailedS = "Could not authenticate access to the connector"
)
