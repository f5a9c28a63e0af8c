// Package flow drives the campaign conversation: one inbound message in,
// zero or more replies out, and a consistent session left behind. Each
// inbound event is an independent unit of work; the session is persisted
// only after a step completes, so a mid-step failure leaves the previous
// consistent state intact.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/indianamx/buenfinbot/internal/attribution"
	"github.com/indianamx/buenfinbot/internal/campaign"
	"github.com/indianamx/buenfinbot/internal/extraction"
	"github.com/indianamx/buenfinbot/internal/ledger"
	"github.com/indianamx/buenfinbot/internal/session"
	"github.com/indianamx/buenfinbot/internal/whatsapp"
)

// Sender delivers replies on the participant's channel.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
	SendButtons(ctx context.Context, to, body string, buttons []whatsapp.Button) error
}

// MediaFetcher turns a webhook media ID into image bytes.
type MediaFetcher interface {
	MediaURL(ctx context.Context, mediaID string) (string, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// Stock is the slice of the inventory store the flow needs.
type Stock interface {
	Take(ctx context.Context, prize string) (bool, error)
}

// SellerRegistry resolves attribution codes to display names.
type SellerRegistry interface {
	Lookup(code string) (string, bool)
}

type Engine struct {
	logger    *slog.Logger
	sessions  *session.Store
	stock     Stock
	ledger    ledger.Store
	extractor extraction.Extractor
	sender    Sender
	media     MediaFetcher
	sellers   SellerRegistry
	tiers     []campaign.Tier
}

func NewEngine(
	logger *slog.Logger,
	sessions *session.Store,
	stock Stock,
	ldg ledger.Store,
	extractor extraction.Extractor,
	sender Sender,
	media MediaFetcher,
	sellers SellerRegistry,
	tiers []campaign.Tier,
) *Engine {
	return &Engine{
		logger:    logger,
		sessions:  sessions,
		stock:     stock,
		ledger:    ldg,
		extractor: extractor,
		sender:    sender,
		media:     media,
		sellers:   sellers,
		tiers:     tiers,
	}
}

// HandleMessage processes one inbound event end to end. It never returns
// an error for business outcomes; errors mean the event could not be
// processed at all, and the caller has already been told what to log.
// The participant always gets a same-channel reply.
func (e *Engine) HandleMessage(ctx context.Context, in whatsapp.Incoming) {
	log := e.logger.With("phone", in.From, "kind", in.Kind)

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic handling message", "panic", r)
			e.apologize(ctx, in.From)
		}
	}()

	if err := e.handle(ctx, log, in); err != nil {
		log.Error("handling message", "error", err)
		e.apologize(ctx, in.From)
	}
}

func (e *Engine) apologize(ctx context.Context, to string) {
	if err := e.sender.SendText(ctx, to, msgFailure); err != nil {
		e.logger.Error("sending failure reply", "phone", to, "error", err)
	}
}

func (e *Engine) handle(ctx context.Context, log *slog.Logger, in whatsapp.Incoming) error {
	upper := strings.ToUpper(in.Text)

	// The start keyword always wins, from any state or no state at all.
	if in.Kind == whatsapp.KindText && strings.Contains(upper, startKeyword) {
		return e.restart(ctx, log, in)
	}

	sess, err := e.sessions.Load(ctx, in.From)
	if errors.Is(err, session.ErrNoSession) {
		// No conversation yet: offer instructions, create nothing.
		return e.sender.SendText(ctx, in.From, msgWelcome)
	}
	if err != nil {
		// A corrupt stored session forces a clean restart rather than
		// a crash loop.
		log.Warn("unreadable session, resetting", "error", err)
		if derr := e.sessions.Delete(ctx, in.From); derr != nil {
			return derr
		}
		return e.sender.SendText(ctx, in.From, msgWelcome)
	}

	if in.Kind == whatsapp.KindText && upper == exitKeyword && sess.Step != campaign.StepTerminated {
		sess.Step = campaign.StepTerminated
		if err := e.sessions.Save(ctx, in.From, sess); err != nil {
			return err
		}
		return e.sender.SendText(ctx, in.From, msgExit)
	}

	switch {
	case sess.Step.IsQuestion():
		return e.handleQuestion(ctx, in, sess)
	case sess.Step == campaign.StepAwaitingPhoto:
		return e.handlePhotoStep(ctx, log, in, sess)
	case sess.Step == campaign.StepRepeatChoice:
		return e.handleRepeatChoice(ctx, in, sess)
	case sess.Step == campaign.StepTerminated:
		return e.sender.SendText(ctx, in.From, msgWelcome)
	}
	return nil
}

// restart begins a fresh questionnaire, re-parsing seller attribution from
// the new message. Completed tickets survive; in-progress answers do not.
func (e *Engine) restart(ctx context.Context, log *slog.Logger, in whatsapp.Incoming) error {
	seller := campaign.SellerUnknown
	if code := attribution.ParseCode(in.Text); code != "" {
		if name, ok := e.sellers.Lookup(code); ok {
			seller = name
		}
		log.Info("seller code on start", "code", code, "seller", seller)
	}

	var history []campaign.Ticket
	if prev, err := e.sessions.Load(ctx, in.From); err == nil {
		history = prev.Tickets
	}

	sess := campaign.NewSession(seller, history)
	if err := e.sessions.Save(ctx, in.From, sess); err != nil {
		return err
	}

	if err := e.sender.SendText(ctx, in.From, msgGreeting); err != nil {
		return err
	}
	return e.prompt(ctx, in.From, campaign.StepName)
}

func (e *Engine) handleQuestion(ctx context.Context, in whatsapp.Incoming, sess *campaign.Session) error {
	if in.Kind != whatsapp.KindText || in.Text == "" {
		// Wrong payload for a question: ask again, stay put.
		return e.prompt(ctx, in.From, sess.Step)
	}

	if sess.Step == campaign.StepReferral && !validReferral(in.Text) {
		return e.sender.SendText(ctx, in.From, msgInvalidReferral)
	}

	if err := sess.Record(in.Text); err != nil {
		return err
	}
	if err := e.sessions.Save(ctx, in.From, sess); err != nil {
		return err
	}
	return e.prompt(ctx, in.From, sess.Step)
}

// validReferral accepts the referral button labels or their numeric ids.
func validReferral(answer string) bool {
	answer = strings.TrimSpace(answer)
	for _, b := range referralButtons {
		if strings.EqualFold(answer, b.Title) || answer == b.ID {
			return true
		}
	}
	return false
}

func (e *Engine) handlePhotoStep(ctx context.Context, log *slog.Logger, in whatsapp.Incoming, sess *campaign.Session) error {
	switch in.Kind {
	case whatsapp.KindImage:
		return e.processReceipt(ctx, log, in, sess)
	case whatsapp.KindDocument:
		return e.sender.SendText(ctx, in.From, msgRejectDocument(in.Filename))
	case whatsapp.KindText:
		return e.sender.SendText(ctx, in.From, msgRejectText)
	default:
		return e.sender.SendText(ctx, in.From, msgRejectGeneric)
	}
}

// processReceipt runs extraction, allocates a prize, records the ticket,
// and moves the session to the repeat-choice state. The ledger write is
// best-effort: its failure is logged, never shown to the participant.
func (e *Engine) processReceipt(ctx context.Context, log *slog.Logger, in whatsapp.Incoming, sess *campaign.Session) error {
	sess.Answers.PhotoRef = fmt.Sprintf("media:%s:%s", in.MediaID, uuid.NewString())
	sess.Answers.SubmittedAt = time.Now()

	if err := e.sender.SendText(ctx, in.From, msgProcessing); err != nil {
		return err
	}

	amount, detail := e.extract(ctx, log, in.MediaID)

	ticket := campaign.Ticket{
		Answers:   sess.Answers,
		Amount:    amount,
		Detail:    detail,
		CreatedAt: time.Now(),
	}

	var reply string
	switch {
	case amount == nil:
		ticket.Outcome = campaign.OutcomeManualReview
		reply = msgReviewNeeded
	default:
		prize, taken, err := e.allocate(ctx, *amount)
		if err != nil {
			return err
		}
		if taken {
			ticket.Outcome = prize
			reply = msgWon(prize, *amount)
		} else {
			ticket.Outcome = campaign.OutcomeNoPrize
			reply = msgNoPrize
		}
	}

	sess.AddTicket(ticket)
	if err := e.sessions.Save(ctx, in.From, sess); err != nil {
		return err
	}

	sub := submissionFrom(in.From, ticket)
	if err := e.ledger.Append(ctx, &sub); err != nil {
		log.Error("ledger append failed", "outcome", ticket.Outcome, "error", err)
	}

	if err := e.sender.SendText(ctx, in.From, reply); err != nil {
		return err
	}
	if err := e.sender.SendText(ctx, in.From, msgValidation); err != nil {
		return err
	}
	return e.sender.SendText(ctx, in.From, msgAskAnotherTicket)
}

// extract downloads the image and asks the vision service for the total.
// Any failure — download, transient after retries, permanent — degrades
// to a nil amount, which routes the ticket to manual review.
func (e *Engine) extract(ctx context.Context, log *slog.Logger, mediaID string) (*float64, string) {
	url, err := e.media.MediaURL(ctx, mediaID)
	if err != nil {
		log.Warn("resolving receipt media", "error", err)
		return nil, "media no disponible"
	}
	image, err := e.media.Download(ctx, url)
	if err != nil {
		log.Warn("downloading receipt media", "error", err)
		return nil, "media no disponible"
	}

	res, err := e.extractor.ExtractTotal(ctx, image)
	if err != nil {
		log.Warn("extracting receipt total", "transient", extraction.IsTransient(err), "error", err)
		return nil, "lectura fallida"
	}
	if res.Amount == nil {
		return nil, "sin total legible"
	}
	log.Info("receipt total extracted", "amount", *res.Amount, "confidence", res.Confidence)
	return res.Amount, ""
}

// allocate maps the amount to a tier and claims a unit of its prize.
// Returns taken=false when no tier matches or the tier's stock is gone.
func (e *Engine) allocate(ctx context.Context, amount float64) (string, bool, error) {
	prize, ok := campaign.Resolve(e.tiers, amount)
	if !ok {
		return "", false, nil
	}
	taken, err := e.stock.Take(ctx, prize)
	if err != nil {
		return "", false, fmt.Errorf("taking stock for %q: %w", prize, err)
	}
	return prize, taken, nil
}

func (e *Engine) handleRepeatChoice(ctx context.Context, in whatsapp.Incoming, sess *campaign.Session) error {
	if in.Kind != whatsapp.KindText {
		return e.sender.SendText(ctx, in.From, msgRepeatReminder)
	}

	switch strings.ToLower(strings.TrimSpace(in.Text)) {
	case "sí", "si", "s":
		sess.Step = campaign.StepAwaitingPhoto
		if err := e.sessions.Save(ctx, in.From, sess); err != nil {
			return err
		}
		return e.sender.SendText(ctx, in.From, msgAskSecondPhoto)
	case "no", "n":
		// Campaign complete for this participant.
		if err := e.sessions.Delete(ctx, in.From); err != nil {
			return err
		}
		return e.sender.SendText(ctx, in.From, msgGoodbye)
	default:
		return e.sender.SendText(ctx, in.From, msgRepeatReminder)
	}
}

func submissionFrom(phone string, t campaign.Ticket) ledger.Submission {
	return ledger.Submission{
		Phone:      phone,
		Name:       t.Answers.Name,
		Store:      t.Answers.Store,
		TaxName:    t.Answers.TaxName,
		Occupation: t.Answers.Occupation,
		Occasion:   t.Answers.Occasion,
		Referral:   t.Answers.Referral,
		Seller:     t.Answers.Seller,
		Amount:     t.Amount,
		Prize:      t.Outcome,
		Detail:     t.Detail,
		PhotoRef:   t.Answers.PhotoRef,
	}
}
