package cli

// ErrorCode defines error types for CLI operations
type ErrorCode string

const (
	InvalidArguments ErrorCode = "InvalidArguments"
	InvalidOrigin    ErrorCode = "InvalidOrigin"
	UnknownCommand   ErrorCode = "UnknownCommand"
	NoSuchLink       ErrorCode = "NoSuchLink"
)

func (c ErrorCode) ErrorCode() string {
	return string(c)
}
