package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"vmsched/internal/scheduler"
	logx "vmsched/pkg/logx"
)

type fakeBot struct {
	mu    sync.Mutex
	sent  []string
	chats []int64
	err   error
}

func (f *fakeBot) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, what.(string))
	f.chats = append(f.chats, to.(*tele.Chat).ID)
	return &tele.Message{ID: len(f.sent)}, nil
}

func (f *fakeBot) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func TestNewValidates(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{ChatID: 1}, logx.Nop()); err == nil {
		t.Fatal("empty token accepted")
	}
	if _, err := New(Config{Token: "x"}, logx.Nop()); err == nil {
		t.Fatal("missing chat id accepted")
	}
}

func TestActionDoneFiltersAndDelivers(t *testing.T) {
	t.Parallel()
	bot := &fakeBot{}
	tg := newWithSender(Config{ChatID: 42, RatePerSec: 1000}, bot, logx.Nop())

	tg.ActionDone(scheduler.ActionResult{VM: "web", Verb: "power-up", Cron: "0 8 * * *", Outcome: scheduler.OutcomeExecuted})
	tg.ActionDone(scheduler.ActionResult{VM: "db", Verb: "power-up", Outcome: scheduler.OutcomeSkipped})
	tg.ActionDone(scheduler.ActionResult{VM: "app", Verb: "power-down", Outcome: scheduler.OutcomeFailed, Error: "502"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = tg.Run(ctx)
		close(done)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for len(bot.messages()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	msgs := bot.messages()
	if len(msgs) != 2 {
		t.Fatalf("sent %d messages: %q", len(msgs), msgs)
	}
	if !strings.HasPrefix(msgs[0], "[EXECUTED] power-up web") || !strings.Contains(msgs[1], "error=502") {
		t.Fatalf("messages = %q", msgs)
	}
	if bot.chats[0] != 42 {
		t.Fatalf("chat = %d", bot.chats[0])
	}
}

func TestSendTextSplitsAndReportsErrors(t *testing.T) {
	t.Parallel()
	bot := &fakeBot{}
	tg := newWithSender(Config{ChatID: 1, RatePerSec: 1000}, bot, logx.Nop())
	long := strings.Repeat("a", telegramTextLimit+10)
	if err := tg.SendText(context.Background(), long); err != nil {
		t.Fatal(err)
	}
	if got := bot.messages(); len(got) != 2 || len(got[1]) != 10 {
		t.Fatalf("chunks = %d", len(got))
	}

	bot.err = errors.New("forbidden")
	if err := tg.SendText(context.Background(), "x"); err == nil {
		t.Fatal("expected send error")
	}
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	t.Parallel()
	s := strings.Repeat("x", 7) + "\n" + strings.Repeat("y", 5)
	got := splitText(s, 10)
	if len(got) != 2 || got[0] != strings.Repeat("x", 7)+"\n" || got[1] != "yyyyy" {
		t.Fatalf("split = %q", got)
	}
}
