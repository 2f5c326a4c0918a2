package errors

import (
	"fmt"
	"net/http"
)

// StatusClientClosedRequest is returned when the caller went away before the call finished
const StatusClientClosedRequest = 499

// Code represents an error code with HTTP status and message
type Code struct {
	Code    int    // Business error code
	Status  int    // HTTP status code
	Message string // Error message
}

const (
	Success = 0

	// Common errors (1000-1999)
	ErrInternalServer  = 1000
	ErrInvalidParams   = 1001
	ErrNotFound        = 1002
	ErrTooManyRequests = 1006
	ErrBadRequest      = 1007
	ErrServiceUnavail  = 1008

	// Chat errors (2000-2999)
	ErrChatConfiguration  = 2000
	ErrChatUpstream       = 2001
	ErrChatUpstreamAuth   = 2002
	ErrChatRateLimited    = 2003
	ErrChatTimeout        = 2004
	ErrChatCanceled       = 2005
	ErrChatBadResponse    = 2006
	ErrChatInvalidRequest = 2007
	ErrChatOverloaded     = 2008

	// Conversation errors (3000-3999)
	ErrConversationNotFound = 3000
)

var codeMap = map[int]Code{
	Success: {Success, http.StatusOK, "Success"},

	ErrInternalServer:  {ErrInternalServer, http.StatusInternalServerError, "Internal server error"},
	ErrInvalidParams:   {ErrInvalidParams, http.StatusBadRequest, "Invalid parameters"},
	ErrNotFound:        {ErrNotFound, http.StatusNotFound, "Resource not found"},
	ErrTooManyRequests: {ErrTooManyRequests, http.StatusTooManyRequests, "Too many requests"},
	ErrBadRequest:      {ErrBadRequest, http.StatusBadRequest, "Bad request"},
	ErrServiceUnavail:  {ErrServiceUnavail, http.StatusServiceUnavailable, "Service unavailable"},

	ErrChatConfiguration:  {ErrChatConfiguration, http.StatusBadRequest, "Chat configuration error"},
	ErrChatUpstream:       {ErrChatUpstream, http.StatusBadGateway, "Provider request failed"},
	ErrChatUpstreamAuth:   {ErrChatUpstreamAuth, http.StatusBadGateway, "Provider rejected credentials"},
	ErrChatRateLimited:    {ErrChatRateLimited, http.StatusTooManyRequests, "Provider rate limit exceeded"},
	ErrChatTimeout:        {ErrChatTimeout, http.StatusGatewayTimeout, "Provider request timed out"},
	ErrChatCanceled:       {ErrChatCanceled, StatusClientClosedRequest, "Request canceled"},
	ErrChatBadResponse:    {ErrChatBadResponse, http.StatusBadGateway, "Unexpected provider response"},
	ErrChatInvalidRequest: {ErrChatInvalidRequest, http.StatusBadRequest, "Provider rejected the request"},
	ErrChatOverloaded:     {ErrChatOverloaded, http.StatusServiceUnavailable, "Provider overloaded"},

	ErrConversationNotFound: {ErrConversationNotFound, http.StatusNotFound, "Conversation not found"},
}

// GetCode returns the Code for a given error code
func GetCode(code int) Code {
	if c, ok := codeMap[code]; ok {
		return c
	}
	return codeMap[ErrInternalServer]
}

// GetHTTPStatus returns HTTP status for a given error code
func GetHTTPStatus(code int) int {
	return GetCode(code).Status
}

// GetMessage returns the message for a given error code
func GetMessage(code int) string {
	return GetCode(code).Message
}

// FormatError formats an error message with code
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if len(details) > 0 && details[0] != "" {
		return fmt.Sprintf("%s: %s", msg, details[0])
	}
	return msg
}
