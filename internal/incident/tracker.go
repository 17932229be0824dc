// Package incident decides whether a message continues an already-open
// incident, suppressing duplicate tickets for one real-world problem.
package incident

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"mesadesk.app/triage/common/logger"
	"mesadesk.app/triage/internal/kv"
	"mesadesk.app/triage/internal/model"
)

const (
	activePrefix = "incident:active:"
	claimPrefix  = "incident:claim:"

	// DefaultWindow is the active-incident window: messages in the same
	// context within it join the open incident instead of opening a new
	// ticket. Sliding: refreshed on every thread update.
	DefaultWindow = 7200 * time.Second

	// claimTTL bounds how long a registration claim can block other
	// writers if the claiming task dies before registering.
	claimTTL = 30 * time.Second
)

// Ticket references in bot replies, tried in order. The bare "#<id>" form
// is the last resort because users also write plain issue numbers.
var ticketPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ticket #(\d+)`),
	regexp.MustCompile(`(?i)ticket (\d+)`),
	regexp.MustCompile(`#(\d+)`),
}

type Options struct {
	// BotIdentity is the system's own outbound sender identity. Quoted-
	// reply extraction only trusts quotes of this sender.
	BotIdentity string

	// Window overrides DefaultWindow.
	Window time.Duration

	// Now overrides the clock for tests.
	Now func() time.Time
}

type Tracker struct {
	store       kv.Store
	botIdentity string
	window      time.Duration
	now         func() time.Time
}

func NewTracker(store kv.Store, opts Options) *Tracker {
	window := opts.Window
	if window == 0 {
		window = DefaultWindow
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		store:       store,
		botIdentity: opts.BotIdentity,
		window:      window,
		now:         now,
	}
}

// CheckExisting returns the ticket id of the open incident this message
// belongs to, or "" if the message starts a new incident. Resolution order:
// quoted-reply extraction first, then the time-windowed search. A miss is a
// valid outcome, never an error; store failures degrade to "no match" so a
// flaky store cannot block ticket creation.
func (t *Tracker) CheckExisting(ctx context.Context, msg model.Message) (string, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "triage.incident.tracker",
		MessageID: logger.Ptr(msg.ID),
	})

	if msg.Quoted != nil {
		if ticketID := t.extractFromQuoted(ctx, *msg.Quoted); ticketID != "" {
			slog.InfoContext(ctx, "found ticket from quoted message", "ticket_id", ticketID)
			return ticketID, nil
		}
	}

	ticketID, err := t.findRecent(ctx, msg.ContextKey)
	if err != nil {
		slog.ErrorContext(ctx, "recent-incident search failed", "error", err)
		return "", nil
	}
	if ticketID != "" {
		slog.InfoContext(ctx, "found ticket from recent incident", "ticket_id", ticketID)
	}
	return ticketID, nil
}

// extractFromQuoted pulls a ticket id out of a quoted bot reply. Quotes of
// any other sender never match: users cannot impersonate ticket references
// by quoting each other.
func (t *Tracker) extractFromQuoted(ctx context.Context, quoted model.QuotedMessage) string {
	if quoted.Sender != t.botIdentity {
		slog.DebugContext(ctx, "quoted message not from bot", "quoted_sender", quoted.Sender)
		return ""
	}

	for _, pattern := range ticketPatterns {
		match := pattern.FindStringSubmatch(quoted.Text)
		if match == nil {
			continue
		}
		ticketID := match[1]

		active, err := t.IsActive(ctx, ticketID)
		if err != nil {
			slog.ErrorContext(ctx, "active check failed", "ticket_id", ticketID, "error", err)
			return ""
		}
		if active {
			return ticketID
		}
		slog.DebugContext(ctx, "ticket found in quote but not active", "ticket_id", ticketID)
	}
	return ""
}

// findRecent scans active incidents for the context key and returns the
// most recently updated one still inside the window. The boundary is
// strict: an incident aged exactly one window is expired.
func (t *Tracker) findRecent(ctx context.Context, contextKey string) (string, error) {
	keys, err := t.store.ScanByPrefix(ctx, activePrefix+contextKey+":*")
	if err != nil {
		return "", err
	}

	var recent *model.Incident
	for _, key := range keys {
		inc, err := t.load(ctx, key)
		if err != nil {
			continue
		}
		if recent == nil || inc.LastUpdate.After(recent.LastUpdate) {
			recent = inc
		}
	}

	if recent == nil {
		return "", nil
	}

	age := t.now().Sub(recent.LastUpdate)
	if age < t.window {
		return recent.TicketID, nil
	}
	slog.DebugContext(ctx, "recent incident outside time window",
		"ticket_id", recent.TicketID, "age_seconds", age.Seconds())
	return "", nil
}

// Claim serializes incident creation per context key: the first caller wins
// and proceeds to create the ticket; losers re-check for the winner's
// registered incident. Claims expire quickly so a dead claimant cannot
// block the context.
func (t *Tracker) Claim(ctx context.Context, contextKey, messageID string) (bool, error) {
	won, err := t.store.SetNX(ctx, claimPrefix+contextKey, messageID, claimTTL)
	if err != nil {
		return false, fmt.Errorf("claiming context %s: %w", contextKey, err)
	}
	return won, nil
}

// Register records a new incident for tracking, seeding the thread with the
// originating message.
func (t *Tracker) Register(ctx context.Context, msg model.Message, ticketID string, res model.ConsensusResult) error {
	now := t.now()
	inc := model.Incident{
		TicketID:         ticketID,
		ContextKey:       msg.ContextKey,
		Participant:      msg.Sender,
		CreatedAt:        now,
		LastUpdate:       now,
		Category:         res.Category,
		Priority:         res.Priority,
		ThreadMessageIDs: []string{msg.ID},
		Excerpt:          msg.Excerpt(200),
	}

	if err := t.persist(ctx, inc); err != nil {
		return err
	}

	slog.InfoContext(ctx, "incident registered",
		"ticket_id", ticketID,
		"context_key", msg.ContextKey,
		"ttl_seconds", t.window.Seconds())
	return nil
}

// AppendToThread adds a message to an open incident's thread and slides the
// expiry window forward.
func (t *Tracker) AppendToThread(ctx context.Context, ticketID, messageID, excerpt string) error {
	_, inc, err := t.find(ctx, ticketID)
	if err != nil {
		return err
	}
	if inc == nil {
		return fmt.Errorf("ticket %s not found for thread update", ticketID)
	}

	inc.ThreadMessageIDs = append(inc.ThreadMessageIDs, messageID)
	inc.LastUpdate = t.now()
	if excerpt != "" {
		inc.Excerpt = excerpt
	}

	if err := t.persist(ctx, *inc); err != nil {
		return err
	}

	slog.InfoContext(ctx, "message added to incident thread",
		"ticket_id", ticketID,
		"message_id", messageID,
		"thread_size", len(inc.ThreadMessageIDs))
	return nil
}

// IsActive reports whether a ticket still has a live incident record.
func (t *Tracker) IsActive(ctx context.Context, ticketID string) (bool, error) {
	keys, err := t.store.ScanByPrefix(ctx, activePrefix+"*:"+ticketID)
	if err != nil {
		return false, err
	}
	return len(keys) > 0, nil
}

// ThreadSummary returns the incident record for a ticket, or nil when the
// incident has expired.
func (t *Tracker) ThreadSummary(ctx context.Context, ticketID string) (*model.Incident, error) {
	_, inc, err := t.find(ctx, ticketID)
	return inc, err
}

func (t *Tracker) find(ctx context.Context, ticketID string) (string, *model.Incident, error) {
	keys, err := t.store.ScanByPrefix(ctx, activePrefix+"*:"+ticketID)
	if err != nil {
		return "", nil, err
	}
	if len(keys) == 0 {
		return "", nil, nil
	}
	inc, err := t.load(ctx, keys[0])
	if err != nil {
		// Expired between scan and load: same as not found.
		if errors.Is(err, kv.ErrNotFound) {
			return "", nil, nil
		}
		return "", nil, err
	}
	return keys[0], inc, nil
}

func (t *Tracker) load(ctx context.Context, key string) (*model.Incident, error) {
	raw, err := t.store.GetWithTTL(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("loading incident %s: %w", key, err)
	}
	var inc model.Incident
	if err := json.Unmarshal([]byte(raw), &inc); err != nil {
		return nil, fmt.Errorf("decoding incident %s: %w", key, err)
	}
	return &inc, nil
}

func (t *Tracker) persist(ctx context.Context, inc model.Incident) error {
	raw, err := json.Marshal(inc)
	if err != nil {
		return fmt.Errorf("encoding incident %s: %w", inc.TicketID, err)
	}
	key := activePrefix + inc.ContextKey + ":" + inc.TicketID
	if err := t.store.SetWithTTL(ctx, key, string(raw), t.window); err != nil {
		return fmt.Errorf("persisting incident %s: %w", inc.TicketID, err)
	}
	return nil
}
