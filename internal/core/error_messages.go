package core

// error_messages.go maps technical errors to user-facing messages with
// support codes.
//
// # Error Codes Reference
//
// Codes are grouped by category. Users quote the code; support staff look it
// up here and check the logs (every response logs the technical error with
// the request id).
//
// # Resource Errors (RES001-RES099)
//
//	RES001 - Unknown resource: the key is not registered
//	RES002 - Resource missing: the key is registered but no file backs it
//
// # Resource Content Errors (CFG001, PRS001, ACC001)
//
//	CFG001 - Bad directives: a #columns, #format or #delimiter line is invalid
//	PRS001 - Bad cell: a numeric cell could not be parsed, or a row could not
//	         be converted into a record
//	ACC001 - Out of range: the row or column index does not exist
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - Export disabled: no database is configured
//	EXP002 - System busy: too many exports are running
//	EXP003 - Not exportable: the resource key cannot form a table name
//
// # Database Errors (DB001-DB099)
//
// Matched on the PostgreSQL SQLSTATE when the error carries one, otherwise
// on the error text:
//
//	DB001 - Duplicate key (23505, "duplicate key")
//	DB002 - Permission denied (42501, "permission denied")
//	DB003 - Schema missing (3F000, "schema does not exist")
//	DB004 - Connection refused ("connection refused")
//	DB005 - Connection reset ("connection reset")
//	DB006 - Timeout (57014, "timeout")
//	DB007 - Deadlock (40P01, "deadlock")
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Request cancelled (context.Canceled)
//	REQ002 - Request timed out (context.DeadlineExceeded)
//	REQ003 - Invalid parameter (ErrInvalidArgument)
//	RATE001 - Rate limited ("rate limit")
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the logs for the technical error.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/fakedata/internal/store"
	"github.com/JonMunkholm/fakedata/internal/textreader"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// sentinelMessage maps an error matched with errors.Is to a user message.
type sentinelMessage struct {
	target error
	msg    UserMessage
}

// Sentinels are checked in order; the first match wins. Wrapping order
// matters: a read error wrapping ErrParse still reports PRS001.
var sentinelMessages = []sentinelMessage{
	{ErrUnknownResource, UserMessage{
		Message: "Unknown resource",
		Action:  "List resources with GET /api/resources",
		Code:    "RES001",
	}},
	{textreader.ErrResourceNotFound, UserMessage{
		Message: "Resource file is missing",
		Action:  "Check RESOURCES_DIR or reinstall the bundled data",
		Code:    "RES002",
	}},
	{textreader.ErrConfig, UserMessage{
		Message: "Resource has invalid directives",
		Action:  "Fix the #columns, #format or #delimiter lines in the resource file",
		Code:    "CFG001",
	}},
	{textreader.ErrParse, UserMessage{
		Message: "Resource contains a value that does not match its column type",
		Action:  "Fix the reported line in the resource file",
		Code:    "PRS001",
	}},
	{textreader.ErrAccess, UserMessage{
		Message: "Row or column is out of range",
		Action:  "Use an index below the resource's row count",
		Code:    "ACC001",
	}},
	{ErrExportDisabled, UserMessage{
		Message: "Export is not available",
		Action:  "Set DATABASE_URL to enable exports",
		Code:    "EXP001",
	}},
	{ErrTooManyExports, UserMessage{
		Message: "System is busy running other exports",
		Action:  "Please wait a moment and try again",
		Code:    "EXP002",
	}},
	{store.ErrInvalidTable, UserMessage{
		Message: "Resource cannot be exported to a table",
		Action:  "Rename the resource key or change EXPORT_TABLE_PREFIX",
		Code:    "EXP003",
	}},
	{ErrInvalidArgument, UserMessage{
		Message: "Invalid request parameter",
		Action:  "Check offset, limit and row index values",
		Code:    "REQ003",
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ001",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Try again later or raise EXPORT_TIMEOUT",
		Code:    "REQ002",
	}},
}

var (
	msgDuplicateKey = UserMessage{
		Message: "A row with this key already exists",
		Action:  "Enable EXPORT_TRUNCATE or export into a fresh table",
		Code:    "DB001",
	}
	msgPermissionDenied = UserMessage{
		Message: "Database user may not write the export table",
		Action:  "Grant CREATE and INSERT on the export schema",
		Code:    "DB002",
	}
	msgSchemaMissing = UserMessage{
		Message: "Export schema does not exist",
		Action:  "Create the schema or change EXPORT_SCHEMA",
		Code:    "DB003",
	}
	msgTimeout = UserMessage{
		Message: "Operation timed out",
		Action:  "Try again later",
		Code:    "DB006",
	}
	msgDeadlock = UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
	}
)

// sqlStateMessages maps PostgreSQL SQLSTATE codes to user messages.
var sqlStateMessages = map[string]UserMessage{
	"23505": msgDuplicateKey,
	"42501": msgPermissionDenied,
	"3F000": msgSchemaMissing,
	"57014": msgTimeout,
	"40P01": msgDeadlock,
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns are matched case-insensitively with strings.Contains when no
// sentinel or SQLSTATE matched. The first matching pattern wins.
var errorPatterns = []errorPattern{
	{"duplicate key", msgDuplicateKey},
	{"permission denied", msgPermissionDenied},
	{"schema does not exist", msgSchemaMissing},
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB005",
	}},
	{"timeout", msgTimeout},
	{"deadlock", msgDeadlock},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Known sentinels are matched first, then PostgreSQL SQLSTATE codes, then
// text patterns. Returns the ERR000 fallback when nothing matches and an
// empty message for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.target) {
			return sm.msg
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if msg, ok := sqlStateMessages[pgErr.Code]; ok {
			return msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display:
// "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
