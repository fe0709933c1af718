// Package notify delivers action results and forwarded log lines to a
// Telegram chat.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"vmsched/internal/scheduler"
	logx "vmsched/pkg/logx"
)

const telegramTextLimit = 4096

type Config struct {
	Token    string
	ChatID   int64
	ThreadID int
	// Outcomes selects which action outcomes are announced; empty means
	// executed and failed.
	Outcomes   []string
	RatePerSec float64
	Timeout    time.Duration
}

// sender is the subset of *tele.Bot used here.
type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Telegram implements scheduler.Reporter and logx.Sender. ActionDone never
// blocks; messages are queued and delivered by Run.
type Telegram struct {
	cfg     Config
	log     logx.Logger
	bot     sender
	limiter *rate.Limiter
	notify  map[scheduler.Outcome]bool
	queue   chan string

	sendMu sync.Mutex
}

var (
	_ scheduler.Reporter = (*Telegram)(nil)
	_ logx.Sender        = (*Telegram)(nil)
)

func New(cfg Config, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Offline: true,
		Client:  &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return newWithSender(cfg, b, log), nil
}

func newWithSender(cfg Config, bot sender, log logx.Logger) *Telegram {
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	outcomes := cfg.Outcomes
	if len(outcomes) == 0 {
		outcomes = []string{string(scheduler.OutcomeExecuted), string(scheduler.OutcomeFailed)}
	}
	notify := make(map[scheduler.Outcome]bool, len(outcomes))
	for _, o := range outcomes {
		notify[scheduler.Outcome(strings.ToLower(strings.TrimSpace(o)))] = true
	}
	return &Telegram{
		cfg:     cfg,
		log:     log.With(logx.String("comp", "notify")),
		bot:     bot,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		notify:  notify,
		queue:   make(chan string, 64),
	}
}

// SetLogger replaces the logger. Call before Run.
func (t *Telegram) SetLogger(log logx.Logger) {
	t.log = log.With(logx.String("comp", "notify"))
}

// Run delivers queued messages until ctx is cancelled.
func (t *Telegram) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-t.queue:
			if err := t.SendText(ctx, msg); err != nil && ctx.Err() == nil {
				t.log.Warn("telegram send failed", logx.Err(err))
			}
		}
	}
}

// SendText sends text immediately, split into Telegram-sized chunks.
func (t *Telegram) SendText(ctx context.Context, text string) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	chat := &tele.Chat{ID: t.cfg.ChatID}
	opt := &tele.SendOptions{DisableWebPagePreview: true, ThreadID: t.cfg.ThreadID}
	for _, chunk := range splitText(text, telegramTextLimit) {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := t.bot.Send(chat, chunk, opt); err != nil {
			return err
		}
	}
	return nil
}

func (t *Telegram) ActionDone(res scheduler.ActionResult) {
	if !t.notify[res.Outcome] {
		return
	}
	select {
	case t.queue <- FormatAction(res):
	default:
		t.log.Warn("telegram queue full, dropping notification", logx.String("vm", res.VM))
	}
}

func (t *Telegram) RefreshDone(int, time.Duration) {}
func (t *Telegram) RefreshFailed(string, error)    {}
func (t *Telegram) Rehydrated(string, error)       {}

// FormatAction renders a one-message summary of res.
func FormatAction(res scheduler.ActionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s", strings.ToUpper(string(res.Outcome)), res.Verb, res.VM)
	fmt.Fprintf(&b, "\n- cron=%s", res.Cron)
	if !res.DueAt.IsZero() {
		fmt.Fprintf(&b, "\n- due=%s", res.DueAt.Format("2006-01-02 15:04 MST"))
	}
	if res.Error != "" {
		fmt.Fprintf(&b, "\n- error=%s", res.Error)
	}
	return b.String()
}

func splitText(s string, limit int) []string {
	if s == "" {
		return nil
	}
	var out []string
	r := []rune(s)
	for len(r) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if r[i-1] == '\n' {
				cut = i
				break
			}
		}
		out = append(out, string(r[:cut]))
		r = r[cut:]
	}
	if len(r) > 0 {
		out = append(out, string(r))
	}
	return out
}
