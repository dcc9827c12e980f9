package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/greenbook/internal/domain/models"
	"github.com/mamadbah2/greenbook/internal/lock"
	"github.com/mamadbah2/greenbook/internal/service/assist"
	"github.com/mamadbah2/greenbook/internal/service/extract"
	"github.com/mamadbah2/greenbook/internal/service/review"
	"github.com/mamadbah2/greenbook/internal/service/settlement"
)

// ErrInvalidArguments indicates the command payload could not be parsed.
var ErrInvalidArguments = errors.New("invalid command arguments")

// ErrUnsupportedCommand indicates we do not support the requested command.
var ErrUnsupportedCommand = errors.New("unsupported command")

// ErrNoDraft indicates a draft command arrived with no pending sale.
var ErrNoDraft = errors.New("no pending sale")

const dateFormat = "2006-01-02"

// Draft is a parsed sale waiting for the sender's confirmation.
type Draft struct {
	Parsed   models.ParsedSale
	Decision review.Decision
}

// DraftStore keeps one pending draft per sender.
type DraftStore interface {
	Get(sender string) (Draft, bool)
	Put(sender string, draft Draft)
	Clear(sender string)
}

// CatalogSource provides the catalog snapshot used for extraction.
type CatalogSource interface {
	Snapshot(ctx context.Context) (models.Catalog, error)
}

// SaleAssembler persists confirmed sales.
type SaleAssembler interface {
	Assemble(ctx context.Context, p models.ParsedSale) (models.SaleRecord, error)
}

// Settlement changes balances of persisted sales.
type Settlement interface {
	RecordPayment(ctx context.Context, saleID string, amount decimal.Decimal) (models.TickLedgerEntry, error)
	UpdateSalePrice(ctx context.Context, saleID string, price decimal.Decimal) (models.SaleRecord, error)
	Active(ctx context.Context) ([]models.TickLedgerEntry, error)
}

// IDResolver expands short sale ids typed in chat.
type IDResolver interface {
	Resolve(ctx context.Context, idOrPrefix string) (string, error)
}

// Assistant produces rewrite suggestions.
type Assistant interface {
	Suggest(ctx context.Context, text string) assist.Suggestion
}

// Dispatcher executes parsed chat commands for one sender.
type Dispatcher interface {
	HandleCommand(ctx context.Context, cmd models.Command, sender string) (models.Notice, error)
}

// Deps groups the collaborators of the dispatcher.
type Deps struct {
	Catalog    CatalogSource
	Evaluator  *review.Evaluator
	Assembler  SaleAssembler
	Settlement Settlement
	Resolver   IDResolver
	Assistant  Assistant
	Drafts     DraftStore
	// Locker serialises draft commands per sender. Nil uses an in-process locker.
	Locker     lock.Locker
}

// Service implements the Dispatcher interface.
type Service struct {
	deps   Deps
	logger *zap.Logger
	now    func() time.Time
}

// NewService constructs a command dispatcher.
func NewService(deps Deps, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Evaluator == nil {
		deps.Evaluator = review.NewEvaluator(review.DefaultThreshold)
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewLocal()
	}
	return &Service{deps: deps, logger: logger, now: time.Now}
}

// HandleCommand runs cmd on behalf of sender and returns the notice to send back.
func (s *Service) HandleCommand(ctx context.Context, cmd models.Command, sender string) (models.Notice, error) {
	s.logger.Debug("dispatching command", zap.String("command", string(cmd.Type)), zap.String("sender", sender), zap.Strings("args", cmd.Args))

	var (
		notice models.Notice
		err    error
	)
	switch cmd.Type {
	case models.CommandSale:
		notice, err = s.withDraft(ctx, sender, func() (models.Notice, error) {
			return s.draftSale(ctx, strings.TrimSpace(cmd.Raw), sender)
		})
	case models.CommandConfirm:
		notice, err = s.withDraft(ctx, sender, func() (models.Notice, error) {
			return s.confirm(ctx, sender)
		})
	case models.CommandSet:
		notice, err = s.withDraft(ctx, sender, func() (models.Notice, error) {
			return s.set(cmd.Args, sender)
		})
	case models.CommandCancel:
		notice, err = s.withDraft(ctx, sender, func() (models.Notice, error) {
			return s.cancel(sender)
		})
	case models.CommandPay:
		notice, err = s.pay(ctx, cmd.Args)
	case models.CommandPrice:
		notice, err = s.price(ctx, cmd.Args)
	case models.CommandTicks:
		notice, err = s.ticks(ctx)
	case models.CommandFix:
		notice, err = s.fix(ctx, cmd.Args)
	case models.CommandHelp:
		notice = models.Notice{Summary: helpText}
	default:
		return models.Notice{Recipient: sender, Summary: "Unknown command.\n" + helpText}, ErrUnsupportedCommand
	}
	notice.Recipient = sender
	return notice, err
}

const helpText = `Send a sale as text, e.g. "sold 3.5g gelato to jake for 60, owes 20".
ok - save the pending sale
/set <field> <value> - correct it (customer, strain, date, qty, price, profit, paid, tick)
/cancel - drop it
/pay <id> <amount> - record a tick payment
/price <id> <amount> - change a sale price
/ticks - open ticks
/fix <text> - suggest a clearer wording`

// DraftLockKey is the critical-section key for a sender's pending draft.
func DraftLockKey(sender string) string { return "draft:" + sender }

// withDraft runs fn while holding the sender's draft lock, so a redelivered
// "ok" waits for the first one and then finds no draft.
func (s *Service) withDraft(ctx context.Context, sender string, fn func() (models.Notice, error)) (models.Notice, error) {
	unlock, err := s.deps.Locker.Lock(ctx, DraftLockKey(sender))
	if err != nil {
		return models.Notice{}, err
	}
	defer unlock()
	return fn()
}

func (s *Service) catalog(ctx context.Context) models.Catalog {
	if s.deps.Catalog == nil {
		return models.Catalog{}
	}
	cat, err := s.deps.Catalog.Snapshot(ctx)
	if err != nil {
		s.logger.Warn("extracting without catalog", zap.Error(err))
		return models.Catalog{}
	}
	return cat
}

func (s *Service) draftSale(ctx context.Context, text, sender string) (models.Notice, error) {
	parsed := extract.New(s.catalog(ctx)).Extract(text, s.now())
	draft := Draft{Parsed: parsed, Decision: s.deps.Evaluator.Evaluate(parsed.Confidence)}
	s.deps.Drafts.Put(sender, draft)

	s.logger.Info("sale drafted",
		zap.String("sender", sender),
		zap.Bool("needs_review", draft.Decision.NeedsReview),
		zap.Any("low_fields", draft.Decision.LowFields))

	return draftNotice(draft), nil
}

func (s *Service) confirm(ctx context.Context, sender string) (models.Notice, error) {
	draft, ok := s.deps.Drafts.Get(sender)
	if !ok {
		return models.Notice{}, ErrNoDraft
	}

	rec, err := s.deps.Assembler.Assemble(ctx, draft.Parsed)
	if err != nil {
		// The draft stays so the sender can fix it or retry.
		return models.Notice{}, err
	}
	s.deps.Drafts.Clear(sender)

	summary := fmt.Sprintf("Saved sale %s: %s.", ShortID(rec.Sale.ID), describeSale(rec.Sale))
	if rec.Tick != nil {
		summary += "\n" + settlement.Summary(*rec.Tick)
	}
	return models.Notice{Status: draft.Decision.Status, Summary: summary}, nil
}

func (s *Service) set(args []string, sender string) (models.Notice, error) {
	draft, ok := s.deps.Drafts.Get(sender)
	if !ok {
		return models.Notice{}, ErrNoDraft
	}
	if len(args) < 2 {
		return models.Notice{}, fmt.Errorf("%w: usage /set <field> <value>", ErrInvalidArguments)
	}

	correction, err := buildCorrection(strings.ToLower(args[0]), strings.Join(args[1:], " "), s.now())
	if err != nil {
		return models.Notice{}, err
	}

	parsed := draft.Parsed.Apply(correction)
	draft = Draft{Parsed: parsed, Decision: s.deps.Evaluator.Evaluate(parsed.Confidence)}
	s.deps.Drafts.Put(sender, draft)
	return draftNotice(draft), nil
}

func (s *Service) cancel(sender string) (models.Notice, error) {
	if _, ok := s.deps.Drafts.Get(sender); !ok {
		return models.Notice{}, ErrNoDraft
	}
	s.deps.Drafts.Clear(sender)
	return models.Notice{Summary: "Pending sale dropped."}, nil
}

func (s *Service) pay(ctx context.Context, args []string) (models.Notice, error) {
	id, amount, err := s.idAndAmount(ctx, args, "/pay <id> <amount>")
	if err != nil {
		return models.Notice{}, err
	}

	entry, err := s.deps.Settlement.RecordPayment(ctx, id, amount)
	if err != nil {
		return models.Notice{}, err
	}
	return models.Notice{Summary: fmt.Sprintf("Payment of %s recorded on %s.\n%s", amount.StringFixed(2), ShortID(id), settlement.Summary(entry))}, nil
}

func (s *Service) price(ctx context.Context, args []string) (models.Notice, error) {
	id, price, err := s.idAndAmount(ctx, args, "/price <id> <amount>")
	if err != nil {
		return models.Notice{}, err
	}

	rec, err := s.deps.Settlement.UpdateSalePrice(ctx, id, price)
	if err != nil {
		return models.Notice{}, err
	}

	summary := fmt.Sprintf("Price of %s set to %s (profit %s).", ShortID(id), rec.Sale.SalePrice.StringFixed(2), rec.Sale.Profit.StringFixed(2))
	if rec.Tick != nil {
		summary += "\n" + settlement.Summary(*rec.Tick)
	}
	return models.Notice{Summary: summary}, nil
}

func (s *Service) idAndAmount(ctx context.Context, args []string, usage string) (string, decimal.Decimal, error) {
	if len(args) != 2 {
		return "", decimal.Zero, fmt.Errorf("%w: usage %s", ErrInvalidArguments, usage)
	}
	amount, err := parseAmount(args[1])
	if err != nil {
		return "", decimal.Zero, err
	}
	id, err := s.deps.Resolver.Resolve(ctx, args[0])
	if err != nil {
		return "", decimal.Zero, err
	}
	return id, amount, nil
}

func (s *Service) ticks(ctx context.Context) (models.Notice, error) {
	active, err := s.deps.Settlement.Active(ctx)
	if err != nil {
		return models.Notice{}, err
	}
	if len(active) == 0 {
		return models.Notice{Summary: "No open ticks."}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Open ticks (%d):", len(active))
	for _, entry := range active {
		fmt.Fprintf(&b, "\n%s %s", ShortID(entry.SaleID), settlement.Summary(entry))
	}
	fmt.Fprintf(&b, "\nOutstanding: %s", settlement.Outstanding(active).StringFixed(2))
	return models.Notice{Summary: b.String()}, nil
}

func (s *Service) fix(ctx context.Context, args []string) (models.Notice, error) {
	if len(args) == 0 {
		return models.Notice{}, fmt.Errorf("%w: usage /fix <text>", ErrInvalidArguments)
	}
	if s.deps.Assistant == nil {
		return models.Notice{Summary: "Suggestions are not available."}, nil
	}

	suggestion := s.deps.Assistant.Suggest(ctx, strings.Join(args, " "))
	if suggestion.Notice != "" {
		return models.Notice{Summary: "No suggestion: " + suggestion.Notice}, nil
	}
	if !suggestion.Changed {
		return models.Notice{Summary: "Your text already reads clearly."}, nil
	}
	return models.Notice{Summary: fmt.Sprintf("Suggestion:\n%s\nSend it as a new message to use it.", suggestion.Suggested)}, nil
}

// ShortID is the id prefix shown in chat; /pay and /price accept it back.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func draftNotice(d Draft) models.Notice {
	p := d.Parsed
	var b strings.Builder
	fmt.Fprintf(&b, "Pending sale: %s", describeParsed(p))
	if d.Decision.NeedsReview {
		names := make([]string, 0, len(d.Decision.LowFields))
		for _, f := range d.Decision.LowFields {
			names = append(names, string(f))
		}
		fmt.Fprintf(&b, "\nPlease check: %s", strings.Join(names, ", "))
	}
	b.WriteString("\nReply ok to save, /set <field> <value> to correct, /cancel to drop.")
	return models.Notice{Status: d.Decision.Status, Summary: b.String()}
}

func describeParsed(p models.ParsedSale) string {
	out := fmt.Sprintf("%sg %s to %s for %s on %s",
		p.Quantity.String(), orUnknown(p.Strain), orUnknown(p.Customer), p.SalePrice.StringFixed(2), p.Date.Format(dateFormat))
	if _, ok := p.Confidence[models.FieldProfit]; !ok || p.Confidence[models.FieldProfit] > 0 {
		out += fmt.Sprintf(", profit %s", p.Profit.StringFixed(2))
	}
	if p.IsTick {
		out += fmt.Sprintf(", tick with %s paid", p.PaidSoFar.StringFixed(2))
	}
	return out
}

func describeSale(sale models.Sale) string {
	return fmt.Sprintf("%sg %s to %s for %s on %s",
		sale.Quantity.String(), orUnknown(sale.Strain), orUnknown(sale.Customer), sale.SalePrice.StringFixed(2), sale.Date.Format(dateFormat))
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "?"
	}
	return s
}

func parseAmount(raw string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(raw), "$"))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not an amount", ErrInvalidArguments, raw)
	}
	return v, nil
}

// buildCorrection turns "/set <field> <value>" into a Correction.
func buildCorrection(field, value string, now time.Time) (models.Correction, error) {
	var c models.Correction
	switch field {
	case "customer", "name":
		c.Customer = &value
	case "strain":
		c.Strain = &value
	case "date":
		d, err := parseDate(value, now)
		if err != nil {
			return c, err
		}
		c.Date = &d
	case "qty", "quantity", "grams":
		v, err := parseAmount(strings.TrimSuffix(strings.ToLower(value), "g"))
		if err != nil {
			return c, err
		}
		c.Quantity = &v
	case "price":
		v, err := parseAmount(value)
		if err != nil {
			return c, err
		}
		c.SalePrice = &v
	case "profit":
		v, err := parseAmount(value)
		if err != nil {
			return c, err
		}
		c.Profit = &v
	case "paid":
		v, err := parseAmount(value)
		if err != nil {
			return c, err
		}
		tick := true
		c.PaidSoFar = &v
		c.IsTick = &tick
	case "tick":
		switch strings.ToLower(value) {
		case "yes", "y", "true", "on":
			v := true
			c.IsTick = &v
		case "no", "n", "false", "off":
			v := false
			c.IsTick = &v
		default:
			return c, fmt.Errorf("%w: tick must be yes or no", ErrInvalidArguments)
		}
	default:
		return c, fmt.Errorf("%w: unknown field %q", ErrInvalidArguments, field)
	}
	return c, nil
}

func parseDate(value string, now time.Time) (time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch strings.ToLower(value) {
	case "today":
		return today, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	}
	d, err := time.ParseInLocation(dateFormat, value, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD, today or yesterday", ErrInvalidArguments)
	}
	return d, nil
}
