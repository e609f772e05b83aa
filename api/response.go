package api

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/Aurory-Game/ocil/gate"
	"github.com/Aurory-Game/ocil/locker"
)

// ErrorResponse is the error schema returned by every handler.
type ErrorResponse struct {
	Code    string `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// OK sends an HTTP 200 OK response with a custom body.
func OK(c *fiber.Ctx, s any) error {
	return c.Status(http.StatusOK).JSON(s)
}

// Created sends an HTTP 201 Created response with a custom body.
func Created(c *fiber.Ctx, s any) error {
	return c.Status(http.StatusCreated).JSON(s)
}

// WriteError writes a structured error response. This is the canonical
// way to report failures and keeps the schema consistent across handlers.
func WriteError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(ErrorResponse{
		Code:    code,
		Title:   http.StatusText(status),
		Message: message,
	})
}

// statusMapping pairs a sentinel error with its HTTP representation.
type statusMapping struct {
	target error
	status int
	code   string
}

// Mapping order matters only for wrapped chains carrying several
// sentinels, which does not occur in practice.
var statusMappings = []statusMapping{
	{locker.ErrPriorBalanceMismatch, http.StatusConflict, "prior_balance_mismatch"},
	{locker.ErrSequenceMismatch, http.StatusConflict, "sequence_mismatch"},
	{locker.ErrInsufficientFunds, http.StatusUnprocessableEntity, "insufficient_funds"},
	{locker.ErrWithdrawUntrackedAsset, http.StatusUnprocessableEntity, "withdraw_untracked_asset"},
	{locker.ErrInvalidDestination, http.StatusUnprocessableEntity, "invalid_destination"},
	{locker.ErrInvalidVault, http.StatusUnprocessableEntity, "invalid_vault"},
	{locker.ErrMalformedBatchLayout, http.StatusBadRequest, "malformed_batch_layout"},
	{locker.ErrAmountOverflow, http.StatusBadRequest, "amount_overflow"},
	{locker.ErrTransferFailed, http.StatusBadGateway, "transfer_failed"},
	{locker.ErrLedgerNotFound, http.StatusNotFound, "ledger_not_found"},
	{locker.ErrConfigNotFound, http.StatusNotFound, "config_not_initialized"},
	{locker.ErrAlreadyInitialized, http.StatusConflict, "already_initialized"},
	{gate.ErrFrozen, http.StatusLocked, "frozen"},
}

// WriteDomainError maps a core error onto the taxonomy's HTTP
// representation. Unknown errors become an opaque 500 so internals never
// leak.
func WriteDomainError(c *fiber.Ctx, err error) error {
	for _, m := range statusMappings {
		if errors.Is(err, m.target) {
			return WriteError(c, m.status, m.code, err.Error())
		}
	}

	return WriteError(c, http.StatusInternalServerError, "internal_error", "internal server error")
}
