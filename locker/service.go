package locker

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Aurory-Game/ocil/custody"
	"github.com/Aurory-Game/ocil/events"
	"github.com/Aurory-Game/ocil/log"
)

const tracerName = "github.com/Aurory-Game/ocil/locker"

// LedgerStore persists ledgers keyed by owner identity.
type LedgerStore interface {
	// GetLedger returns the ledger for owner, or ErrLedgerNotFound.
	GetLedger(ctx context.Context, owner string) (*Ledger, error)

	// CreateLedger stores a fresh ledger, or ErrAlreadyInitialized when
	// the owner already has one.
	CreateLedger(ctx context.Context, ledger *Ledger) error

	// SaveLedger overwrites the stored ledger. The surrounding
	// environment guarantees single-writer access per request.
	SaveLedger(ctx context.Context, ledger *Ledger) error
}

// ConfigStore persists the single admin config record.
type ConfigStore interface {
	// GetConfig returns the config, or ErrConfigNotFound.
	GetConfig(ctx context.Context) (*Config, error)

	// CreateConfig stores the config, or ErrAlreadyInitialized when one
	// exists.
	CreateConfig(ctx context.Context, cfg *Config) error
}

// Service binds the engines to their collaborators and implements the
// operation surface. Every mutation runs on a clone of the stored ledger
// and persists only on success, so a failed request leaves the store
// untouched.
type Service struct {
	ledgers   LedgerStore
	configs   ConfigStore
	bank      custody.Bank
	accounts  custody.Provisioner
	publisher events.Publisher
	logger    log.Logger
	tracer    trace.Tracer
}

// NewService wires a Service. A nil publisher falls back to the nop
// publisher, a nil logger to NoneLogger.
func NewService(ledgers LedgerStore, configs ConfigStore, bank custody.Bank, accounts custody.Provisioner, publisher events.Publisher, logger log.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return &Service{
		ledgers:   ledgers,
		configs:   configs,
		bank:      bank,
		accounts:  accounts,
		publisher: publisher,
		logger:    log.OrNone(logger),
		tracer:    otel.Tracer(tracerName),
	}
}

// InitConfig creates the admin config with frozen=false.
func (s *Service) InitConfig(ctx context.Context, admin string) (*Config, error) {
	ctx, span := s.tracer.Start(ctx, "locker.init_config")
	defer span.End()

	cfg := &Config{Admin: admin}

	if err := s.configs.CreateConfig(ctx, cfg); err != nil {
		return nil, s.fail(ctx, span, fmt.Errorf("init config: %w", err))
	}

	s.emit(ctx, events.TypeConfigInitialized, admin, 0)
	s.logger.Infof("config initialized, admin=%s", admin)

	return cfg, nil
}

// InitLocker creates an empty ledger for owner with sequence zero.
func (s *Service) InitLocker(ctx context.Context, owner string) (*Ledger, error) {
	ctx, span := s.tracer.Start(ctx, "locker.init_locker",
		trace.WithAttributes(attribute.String("locker.owner", owner)))
	defer span.End()

	ledger := NewLedger(owner)

	if err := s.ledgers.CreateLedger(ctx, ledger); err != nil {
		return nil, s.fail(ctx, span, fmt.Errorf("init locker %s: %w", owner, err))
	}

	s.emit(ctx, events.TypeLockerInitialized, owner, 0)
	s.logger.Infof("locker initialized, owner=%s", owner)

	return ledger, nil
}

// GetLedger returns the stored ledger for owner.
func (s *Service) GetLedger(ctx context.Context, owner string) (*Ledger, error) {
	return s.ledgers.GetLedger(ctx, owner)
}

// Deposit applies one single-asset deposit against the owner's ledger.
func (s *Service) Deposit(ctx context.Context, owner string, req DepositRequest) (*Ledger, error) {
	ctx, span := s.tracer.Start(ctx, "locker.deposit", trace.WithAttributes(
		attribute.String("locker.owner", owner),
		attribute.String("locker.asset", req.Asset),
	))
	defer span.End()

	ledger, err := s.mutate(ctx, owner, func(working *Ledger) error {
		return Deposit(ctx, s.bank, s.accounts, working, req)
	})
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}

	s.emitAsset(ctx, events.TypeDeposit, owner, req.Asset, req.Amount, ledger.Sequence)

	return ledger, nil
}

// DepositBatch applies a deposit batch under the sequence replay guard.
func (s *Service) DepositBatch(ctx context.Context, owner string, req DepositBatchRequest) (*Ledger, error) {
	ctx, span := s.tracer.Start(ctx, "locker.deposit_batch", trace.WithAttributes(
		attribute.String("locker.owner", owner),
		attribute.Int("locker.items", len(req.Amounts)),
	))
	defer span.End()

	ledger, err := s.mutate(ctx, owner, func(working *Ledger) error {
		return RunDepositBatch(ctx, s.bank, s.accounts, working, req)
	})
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}

	s.emitBatch(ctx, events.TypeDepositBatch, owner, len(req.Amounts), ledger.Sequence)

	return ledger, nil
}

// Withdraw applies one single-asset withdrawal against the owner's ledger.
func (s *Service) Withdraw(ctx context.Context, owner string, req WithdrawRequest) (*Ledger, error) {
	ctx, span := s.tracer.Start(ctx, "locker.withdraw", trace.WithAttributes(
		attribute.String("locker.owner", owner),
		attribute.String("locker.asset", req.Asset),
	))
	defer span.End()

	ledger, err := s.mutate(ctx, owner, func(working *Ledger) error {
		return Withdraw(ctx, s.bank, s.accounts, working, req)
	})
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}

	s.emitAsset(ctx, events.TypeWithdraw, owner, req.Asset, req.Amount, ledger.Sequence)

	return ledger, nil
}

// WithdrawBatch applies a withdraw batch under the sequence replay guard.
func (s *Service) WithdrawBatch(ctx context.Context, owner string, req WithdrawBatchRequest) (*Ledger, error) {
	ctx, span := s.tracer.Start(ctx, "locker.withdraw_batch", trace.WithAttributes(
		attribute.String("locker.owner", owner),
		attribute.Int("locker.items", len(req.Amounts)),
	))
	defer span.End()

	ledger, err := s.mutate(ctx, owner, func(working *Ledger) error {
		return RunWithdrawBatch(ctx, s.bank, s.accounts, working, req)
	})
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}

	s.emitBatch(ctx, events.TypeWithdrawBatch, owner, len(req.Amounts), ledger.Sequence)

	return ledger, nil
}

// AdvanceSequence progresses the replay guard without moving value.
func (s *Service) AdvanceSequence(ctx context.Context, owner string, expectedSequence uint64) (*Ledger, error) {
	ctx, span := s.tracer.Start(ctx, "locker.advance_sequence",
		trace.WithAttributes(attribute.String("locker.owner", owner)))
	defer span.End()

	ledger, err := s.mutate(ctx, owner, func(working *Ledger) error {
		return AdvanceSequence(working, expectedSequence)
	})
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}

	s.emit(ctx, events.TypeSequenceAdvanced, owner, ledger.Sequence)

	return ledger, nil
}

// mutate loads the owner's ledger, applies fn to a clone, and persists the
// clone only when fn succeeds.
func (s *Service) mutate(ctx context.Context, owner string, fn func(*Ledger) error) (*Ledger, error) {
	stored, err := s.ledgers.GetLedger(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load ledger %s: %w", owner, err)
	}

	working := stored.Clone()

	if err := fn(working); err != nil {
		return nil, err
	}

	if err := s.ledgers.SaveLedger(ctx, working); err != nil {
		return nil, fmt.Errorf("save ledger %s: %w", owner, err)
	}

	return working, nil
}

func (s *Service) fail(ctx context.Context, span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.logger.Warnf("operation rejected: %v", err)

	return err
}

func (s *Service) emit(ctx context.Context, eventType, owner string, sequence uint64) {
	ev, err := events.New(eventType, owner, sequence)
	if err != nil {
		s.logger.Warnf("build event %s: %v", eventType, err)

		return
	}

	s.publish(ctx, ev)
}

func (s *Service) emitAsset(ctx context.Context, eventType, owner, asset string, amount, sequence uint64) {
	ev, err := events.New(eventType, owner, sequence)
	if err != nil {
		s.logger.Warnf("build event %s: %v", eventType, err)

		return
	}

	ev.Asset = asset
	ev.Amount = amount
	s.publish(ctx, ev)
}

func (s *Service) emitBatch(ctx context.Context, eventType, owner string, items int, sequence uint64) {
	ev, err := events.New(eventType, owner, sequence)
	if err != nil {
		s.logger.Warnf("build event %s: %v", eventType, err)

		return
	}

	ev.Items = items
	s.publish(ctx, ev)
}

// publish delivers an event best-effort: a broker failure is logged and
// never unwinds the accepted mutation.
func (s *Service) publish(ctx context.Context, ev Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warnf("publish event %s for %s: %v", ev.Type, ev.Owner, err)
	}
}

// Event aliases the events payload for collaborators that only see the
// service.
type Event = events.Event
