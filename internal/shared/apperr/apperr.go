package apperr

import (
	"errors"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Code is the machine-readable classification attached to every error the
// API can return. Callers branch on the code, never on the message.
type Code string

const (
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeUserNotFound       Code = "USER_NOT_FOUND"
	CodeNotFound           Code = "NOT_FOUND"
	CodeDuplicateEntry     Code = "DUPLICATE_ENTRY"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeNetwork            Code = "NETWORK_ERROR"
	CodeServer             Code = "SERVER_ERROR"

	CodeRideFull           Code = "RIDE_FULL"
	CodeRideExpired        Code = "RIDE_EXPIRED"
	CodeAlreadyParticipant Code = "ALREADY_PARTICIPANT"
	CodeNotParticipant     Code = "NOT_PARTICIPANT"
	CodeCannotLeaveOwnRide Code = "CANNOT_LEAVE_OWN_RIDE"
)

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Classify funnels arbitrary errors into the closed code set. An *Error
// passes through unchanged so locally raised preconditions keep their code.
func Classify(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return New(CodeNotFound, "resource not found")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return New(CodeDuplicateEntry, "duplicate entry")
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return New(CodeNetwork, "network error")
	}
	return New(CodeServer, err.Error())
}

// Status maps a code to the HTTP status the handler layer responds with.
func (e *Error) Status() int {
	switch e.Code {
	case CodeInvalidCredentials, CodeUnauthorized:
		return fiber.StatusUnauthorized
	case CodeUserNotFound, CodeNotFound:
		return fiber.StatusNotFound
	case CodeDuplicateEntry, CodeAlreadyParticipant, CodeNotParticipant,
		CodeCannotLeaveOwnRide, CodeRideFull, CodeRideExpired:
		return fiber.StatusConflict
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeRateLimited:
		return fiber.StatusTooManyRequests
	case CodeNetwork:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// Envelope is the uniform response body: success flag, payload on success,
// classified error on failure.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

func OK(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

func Fail(err *Error) Envelope {
	return Envelope{Success: false, Error: err}
}

// ErrorHandler is installed as the fiber app error handler so every route,
// including panics recovered by middleware, responds with the envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code := CodeServer
		switch fiberErr.Code {
		case fiber.StatusBadRequest:
			code = CodeValidation
		case fiber.StatusUnauthorized:
			code = CodeUnauthorized
		case fiber.StatusNotFound:
			code = CodeNotFound
		case fiber.StatusTooManyRequests:
			code = CodeRateLimited
		}
		return c.Status(fiberErr.Code).JSON(Fail(New(code, fiberErr.Message)))
	}
	appErr := Classify(err)
	return c.Status(appErr.Status()).JSON(Fail(appErr))
}
