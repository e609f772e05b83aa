package api

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/Aurory-Game/ocil/custody"
	"github.com/Aurory-Game/ocil/gate"
	"github.com/Aurory-Game/ocil/locker"
	"github.com/Aurory-Game/ocil/log"
)

// Handler exposes the locker operations over HTTP. It owns no business
// rules: requests are decoded, amounts parsed, custody references
// derived, and everything else is delegated to the service.
type Handler struct {
	service *locker.Service
	gate    *gate.Gate
	logger  log.Logger
}

// NewHandler wires a Handler. The gate may be nil, in which case no
// freeze check runs in front of the mutating routes.
func NewHandler(service *locker.Service, g *gate.Gate, logger log.Logger) *Handler {
	return &Handler{
		service: service,
		gate:    g,
		logger:  log.OrNone(logger),
	}
}

// Register mounts the routes on app.
func (h *Handler) Register(app *fiber.App) {
	v1 := app.Group("/v1")

	v1.Post("/config", h.InitConfig)
	v1.Post("/lockers", h.guard, h.InitLocker)
	v1.Get("/lockers/:owner", h.GetLedger)
	v1.Post("/lockers/:owner/deposit", h.guard, h.Deposit)
	v1.Post("/lockers/:owner/deposit-batch", h.guard, h.DepositBatch)
	v1.Post("/lockers/:owner/withdraw", h.guard, h.Withdraw)
	v1.Post("/lockers/:owner/withdraw-batch", h.guard, h.WithdrawBatch)
	v1.Post("/lockers/:owner/sequence", h.guard, h.AdvanceSequence)
}

// guard rejects mutating requests while the platform is frozen.
func (h *Handler) guard(c *fiber.Ctx) error {
	if h.gate == nil {
		return c.Next()
	}

	if err := h.gate.Allow(c.UserContext()); err != nil {
		return WriteDomainError(c, err)
	}

	return c.Next()
}

type accountRefInput struct {
	Asset  string `json:"asset"`
	Holder string `json:"holder"`
}

func (in accountRefInput) ref() custody.AccountRef {
	return custody.AccountRef{Asset: in.Asset, Holder: in.Holder}
}

type transferRecordInput struct {
	Metadata          accountRefInput `json:"metadata"`
	SourceRecord      accountRefInput `json:"sourceRecord"`
	DestinationRecord accountRefInput `json:"destinationRecord"`
	Certificate       accountRefInput `json:"certificate"`
}

func (in *transferRecordInput) record() *custody.TransferRecord {
	if in == nil {
		return nil
	}

	return &custody.TransferRecord{
		Metadata:          in.Metadata.ref(),
		SourceRecord:      in.SourceRecord.ref(),
		DestinationRecord: in.DestinationRecord.ref(),
		Certificate:       in.Certificate.ref(),
	}
}

type initConfigInput struct {
	Admin string `json:"admin"`
}

// InitConfig handles POST /v1/config.
func (h *Handler) InitConfig(c *fiber.Ctx) error {
	var in initConfigInput
	if err := c.BodyParser(&in); err != nil {
		return WriteError(c, http.StatusBadRequest, "invalid_payload", err.Error())
	}

	if in.Admin == "" {
		return WriteError(c, http.StatusBadRequest, "invalid_payload", "admin is required")
	}

	cfg, err := h.service.InitConfig(c.UserContext(), in.Admin)
	if err != nil {
		return WriteDomainError(c, err)
	}

	return Created(c, cfg)
}

type initLockerInput struct {
	Owner string `json:"owner"`
}

// InitLocker handles POST /v1/lockers.
func (h *Handler) InitLocker(c *fiber.Ctx) error {
	var in initLockerInput
	if err := c.BodyParser(&in); err != nil {
		return WriteError(c, http.StatusBadRequest, "invalid_payload", err.Error())
	}

	if in.Owner == "" {
		return WriteError(c, http.StatusBadRequest, "invalid_payload", "owner is required")
	}

	ledger, err := h.service.InitLocker(c.UserContext(), in.Owner)
	if err != nil {
		return WriteDomainError(c, err)
	}

	return Created(c, ledger)
}

// GetLedger handles GET /v1/lockers/:owner.
func (h *Handler) GetLedger(c *fiber.Ctx) error {
	ledger, err := h.service.GetLedger(c.UserContext(), c.Params("owner"))
	if err != nil {
		return WriteDomainError(c, err)
	}

	return OK(c, ledger)
}

type depositInput struct {
	Asset                string               `json:"asset"`
	Amount               string               `json:"amount"`
	ExpectedPriorBalance string               `json:"expectedPriorBalance"`
	RouteToEscalation    bool                 `json:"routeToEscalation"`
	Depositor            string               `json:"depositor"`
	Source               *accountRefInput     `json:"source"`
	Record               *transferRecordInput `json:"record"`
}

// Deposit handles POST /v1/lockers/:owner/deposit. Vault and escalation
// references are derived from the asset and owner; the funding source
// defaults to the depositor's own account for the asset.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	owner := c.Params("owner")

	var in depositInput
	if err := c.BodyParser(&in); err != nil {
		return WriteError(c, http.StatusBadRequest, "invalid_payload", err.Error())
	}

	if in.Asset == "" || in.Depositor == "" {
		return WriteError(c, http.StatusBadRequest, "invalid_payload", "asset and depositor are required")
	}

	amount, err := parseAmount(in.Amount)
	if err != nil {
		return WriteError(c, http.StatusBadRequest, "invalid_amount", err.Error())
	}

	prior, err := parseAmount(in.ExpectedPriorBalance)
	if err != nil {
		return WriteError(c, http.StatusBadRequest, "invalid_amount", err.Error())
	}

	source := custody.AccountRef{Asset: in.Asset, Holder: in.Depositor}
	if in.Source != nil {
		source = in.Source.ref()
	}

	ledger, err := h.service.Deposit(c.UserContext(), owner, locker.DepositRequest{
		Asset:                in.Asset,
		Amount:               amount,
		ExpectedPriorBalance: prior,
		RouteToEscalation:    in.RouteToEscalation,
		Depositor:            in.Depositor,
		Source:               source,
		Vault:                custody.VaultRef(in.Asset, owner),
		Escalation:           custody.EscalationRef(in.Asset),
		Record:               in.Record.record(),
	})
	if err != nil {
		return WriteDomainError(c, err)
	}

	return OK(c, ledger)
}

type depositBatchInput struct {
	Accounts              []accountRefInput `json:"accounts"`
	Amounts               []string          `json:"amounts"`
	ExpectedPriorBalances []string          `json:"expectedPriorBalances"`
	RouteToEscalation     bool              `json:"routeToEscalation"`
	ExpectedSequence      uint64            `json:"expectedSequence"`
	ExtendedCount         int               `json:"extendedCount"`
	Depositor             string            `json:"depositor"`
}

// DepositBatch handles POST /v1/lockers/:owner/deposit-batch. The
// accounts array is the flat chunked resource list; the coordinator
// validates its layout.
func (h *Handler) DepositBatch(c *fiber.Ctx) error {
	owner := c.Params("owner")

	var in depositBatchInput
	if err := c.BodyParser(&in); err != nil {
		return WriteError(c, http.StatusBadRequest, "invalid_payload", err.Error())
	}

	if in.Depositor == "" {
		return WriteError(c, http.StatusBadRequest, "invalid_payload", "depositor is required")
	}

	amounts, err := parseAmounts(in.Amounts)
	if err != nil {
		return WriteError(c, http.StatusBadRequest, "invalid_amount", err.Error())
	}

	priors, err := parseAmounts(in.ExpectedPriorBalances)
	if err != nil {
		return WriteError(c, http.StatusBadRequest, "invalid_amount", err.Error())
	}

	ledger, err := h.service.DepositBatch(c.UserContext(), owner, locker.DepositBatchRequest{
		Accounts:              refs(in.Accounts),
		Amounts:               amounts,
		ExpectedPriorBalances: priors,
		RouteToEscalation:     in.RouteToEscalation,
		ExpectedSequence:      in.ExpectedSequence,
		ExtendedCount:         in.ExtendedCount,
		Depositor:             in.Depositor,
	})
	if err != nil {
		return WriteDomainError(c, err)
	}

	return OK(c, ledger)
}

type withdrawInput struct {
	Asset                string               `json:"asset"`
	Amount               string               `json:"amount"`
	ExpectedPriorBalance string               `json:"expectedPriorBalance"`
	FinalBalance         string               `json:"finalBalance"`
	Principal            string               `json:"principal"`
	FromEscalation       bool                 `json:"fromEscalation"`
	Destination          *accountRefInput     `json:"destination"`
	Record               *transferRecordInput `json:"record"`
}

// Withdraw handles POST /v1/lockers/:owner/withdraw. With fromEscalation
// set the shared escalation account serves as the funding source instead
// of the owner's vault.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	owner := c.Params("owner")

	var in withdrawInput
	if err := c.BodyParser(&in); err != nil {
		return WriteError(c, http.StatusBadRequest, "invalid_payload", err.Error())
	}

	if in.Asset == "" || in.Principal == "" {
		return WriteError(c, http.StatusBadRequest, "invalid_payload", "asset and principal are required")
	}

	amount, err := parseAmount(in.Amount)
	if err != nil {
		return WriteError(c, http.StatusBadRequest, "invalid_amount", err.Error())
	}

	prior, err := parseAmount(in.ExpectedPriorBalance)
	if err != nil {
		return WriteError(c, http.StatusBadRequest, "invalid_amount", err.Error())
	}

	final, err := parseAmount(in.FinalBalance)
	if err != nil {
		return WriteError(c, http.StatusBadRequest, "invalid_amount", err.Error())
	}

	vault := custody.VaultRef(in.Asset, owner)
	if in.FromEscalation {
		vault = custody.EscalationRef(in.Asset)
	}

	destination := custody.AccountRef{Asset: in.Asset, Holder: in.Principal}
	if in.Destination != nil {
		destination = in.Destination.ref()
	}

	ledger, err := h.service.Withdraw(c.UserContext(), owner, locker.WithdrawRequest{
		Asset:                in.Asset,
		Amount:               amount,
		ExpectedPriorBalance: prior,
		FinalBalance:         final,
		Principal:            in.Principal,
		Destination:          destination,
		Vault:                vault,
		VaultBeneficiary:     owner,
		Escalation:           custody.EscalationRef(in.Asset),
		Record:               in.Record.record(),
	})
	if err != nil {
		return WriteDomainError(c, err)
	}

	return OK(c, ledger)
}

type withdrawBatchInput struct {
	Accounts              []accountRefInput `json:"accounts"`
	Amounts               []string          `json:"amounts"`
	ExpectedPriorBalances []string          `json:"expectedPriorBalances"`
	FinalBalances         []string          `json:"finalBalances"`
	ExpectedSequence      uint64            `json:"expectedSequence"`
	ExtendedCount         int               `json:"extendedCount"`
	Principal             string            `json:"principal"`
}

// WithdrawBatch handles POST /v1/lockers/:owner/withdraw-batch.
func (h *Handler) WithdrawBatch(c *fiber.Ctx) error {
	owner := c.Params("owner")

	var in withdrawBatchInput
	if err := c.BodyParser(&in); err != nil {
		return WriteError(c, http.StatusBadRequest, "invalid_payload", err.Error())
	}

	if in.Principal == "" {
		return WriteError(c, http.StatusBadRequest, "invalid_payload", "principal is required")
	}

	amounts, err := parseAmounts(in.Amounts)
	if err != nil {
		return WriteError(c, http.StatusBadRequest, "invalid_amount", err.Error())
	}

	priors, err := parseAmounts(in.ExpectedPriorBalances)
	if err != nil {
		return WriteError(c, http.StatusBadRequest, "invalid_amount", err.Error())
	}

	finals, err := parseAmounts(in.FinalBalances)
	if err != nil {
		return WriteError(c, http.StatusBadRequest, "invalid_amount", err.Error())
	}

	ledger, err := h.service.WithdrawBatch(c.UserContext(), owner, locker.WithdrawBatchRequest{
		Accounts:              refs(in.Accounts),
		Amounts:               amounts,
		ExpectedPriorBalances: priors,
		FinalBalances:         finals,
		ExpectedSequence:      in.ExpectedSequence,
		ExtendedCount:         in.ExtendedCount,
		Principal:             in.Principal,
		VaultBeneficiary:      owner,
	})
	if err != nil {
		return WriteDomainError(c, err)
	}

	return OK(c, ledger)
}

type advanceSequenceInput struct {
	ExpectedSequence uint64 `json:"expectedSequence"`
}

// AdvanceSequence handles POST /v1/lockers/:owner/sequence.
func (h *Handler) AdvanceSequence(c *fiber.Ctx) error {
	owner := c.Params("owner")

	var in advanceSequenceInput
	if err := c.BodyParser(&in); err != nil {
		return WriteError(c, http.StatusBadRequest, "invalid_payload", err.Error())
	}

	ledger, err := h.service.AdvanceSequence(c.UserContext(), owner, in.ExpectedSequence)
	if err != nil {
		return WriteDomainError(c, err)
	}

	return OK(c, ledger)
}

func refs(in []accountRefInput) []custody.AccountRef {
	out := make([]custody.AccountRef, len(in))
	for i, r := range in {
		out[i] = r.ref()
	}

	return out
}
