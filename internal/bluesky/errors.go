package bluesky

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies an APIError.
type ErrorKind int

const (
	// KindBadRequest is a 400 with a structured {error, message} body.
	KindBadRequest ErrorKind = iota + 1
	// KindUnauthorized is a 401 with a structured {error, message} body.
	KindUnauthorized
	// KindNetwork means no usable response arrived.
	KindNetwork
	// KindParse means a success or error body could not be decoded.
	KindParse
	// KindNotImplemented marks operations this client deliberately refuses.
	KindNotImplemented
	// KindStatus is any other non-2xx response.
	KindStatus
)

func (k ErrorKind) String() string {
	switch k {
	case KindBadRequest:
		return "bad request"
	case KindUnauthorized:
		return "unauthorized"
	case KindNetwork:
		return "network error"
	case KindParse:
		return "parse error"
	case KindNotImplemented:
		return "not implemented"
	case KindStatus:
		return "unexpected status"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// APIError is the classified failure of an XRPC call. Match a kind with
// errors.Is against the Err* sentinels, or extract the details with
// errors.As.
type APIError struct {
	Kind ErrorKind

	// Status is the HTTP status, zero for network failures.
	Status int

	// Code and Message are the server-supplied {error, message} pair.
	Code    string
	Message string

	// Detail describes network, parse and not-implemented failures.
	Detail string

	// RawBody is the undecodable body of a parse failure.
	RawBody string

	Err error
}

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrBadRequest     = &APIError{Kind: KindBadRequest}
	ErrUnauthorized   = &APIError{Kind: KindUnauthorized}
	ErrNetwork        = &APIError{Kind: KindNetwork}
	ErrParse          = &APIError{Kind: KindParse}
	ErrNotImplemented = &APIError{Kind: KindNotImplemented}
	ErrStatus         = &APIError{Kind: KindStatus}
)

func (e *APIError) Error() string {
	switch e.Kind {
	case KindBadRequest, KindUnauthorized:
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Code, e.Message)
	case KindStatus:
		if e.Code != "" {
			return fmt.Sprintf("API error (status %d): %s: %s", e.Status, e.Code, e.Message)
		}
		return fmt.Sprintf("API error (status %d)", e.Status)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
}

func (e *APIError) Unwrap() error { return e.Err }

// Is reports whether target is an APIError of the same kind.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Kind == e.Kind
}

// NotImplemented returns a KindNotImplemented error for an operation this
// client does not support.
func NotImplemented(detail string) error {
	return &APIError{Kind: KindNotImplemented, Detail: detail}
}

func networkError(detail string, err error) *APIError {
	return &APIError{Kind: KindNetwork, Detail: detail, Err: err}
}

func parseError(err error, raw []byte) *APIError {
	return &APIError{Kind: KindParse, Detail: "decode response", RawBody: string(raw), Err: err}
}

// LoginErrorKind refines a failed login or refresh.
type LoginErrorKind int

const (
	LoginUnauthorized LoginErrorKind = iota + 1
	LoginTwoFactorRequired
	LoginExpiredToken
	LoginInvalidToken
	LoginInvalidRequest
	LoginRateLimited
	LoginAccountTakenDown
	LoginAccountSuspended
	LoginAccountDeactivated
	LoginAccountInactive
	LoginNetwork
	LoginGeneric
)

func (k LoginErrorKind) String() string {
	switch k {
	case LoginUnauthorized:
		return "invalid handle or password"
	case LoginTwoFactorRequired:
		return "two-factor code required"
	case LoginExpiredToken:
		return "session expired"
	case LoginInvalidToken:
		return "session token invalid"
	case LoginInvalidRequest:
		return "invalid login request"
	case LoginRateLimited:
		return "rate limited"
	case LoginAccountTakenDown:
		return "account taken down"
	case LoginAccountSuspended:
		return "account suspended"
	case LoginAccountDeactivated:
		return "account deactivated"
	case LoginAccountInactive:
		return "account inactive"
	case LoginNetwork:
		return "network error"
	case LoginGeneric:
		return "login failed"
	default:
		return fmt.Sprintf("LoginErrorKind(%d)", int(k))
	}
}

// LoginError is the classified failure of createSession or refreshSession.
type LoginError struct {
	Kind    LoginErrorKind
	Status  int
	Code    string
	Message string
	Detail  string
	Err     error
}

func (e *LoginError) Error() string {
	msg := e.Kind.String()
	if e.Message != "" {
		msg += ": " + e.Message
	} else if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoginError) Unwrap() error { return e.Err }

// Is reports whether target is a LoginError of the same kind.
func (e *LoginError) Is(target error) bool {
	t, ok := target.(*LoginError)
	return ok && t.Kind == e.Kind
}

// classifyLoginStatus maps a non-200 session response to a LoginError.
func classifyLoginStatus(status int, server xrpcError) *LoginError {
	e := &LoginError{Status: status, Code: server.Error, Message: server.Message}
	switch status {
	case http.StatusUnauthorized:
		e.Kind = LoginUnauthorized
		if server.Error == "AuthFactorTokenRequired" {
			e.Kind = LoginTwoFactorRequired
		}
	case http.StatusBadRequest:
		switch server.Error {
		case "ExpiredToken":
			e.Kind = LoginExpiredToken
		case "InvalidToken":
			e.Kind = LoginInvalidToken
		default:
			e.Kind = LoginInvalidRequest
		}
	case http.StatusTooManyRequests:
		e.Kind = LoginRateLimited
	default:
		e.Kind = LoginGeneric
		e.Detail = fmt.Sprintf("status %d", status)
	}
	return e
}

// accountStatusError returns the account-state error for an inactive
// account, or nil when the account is active. A missing active flag counts
// as active unless a non-"active" status is present.
func accountStatusError(active *bool, status string) *LoginError {
	inactive := (active != nil && !*active) || (status != "" && status != "active")
	if !inactive {
		return nil
	}
	e := &LoginError{Detail: status}
	switch status {
	case "takendown":
		e.Kind = LoginAccountTakenDown
	case "suspended":
		e.Kind = LoginAccountSuspended
	case "deactivated":
		e.Kind = LoginAccountDeactivated
	default:
		e.Kind = LoginAccountInactive
	}
	return e
}

// xrpcError is the {error, message} body of an XRPC failure.
type xrpcError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
