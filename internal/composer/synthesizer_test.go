package composer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kalambet/aist/internal/engine"
)

type mockChatter struct {
	reply string
	err   error
	calls int
	model string
	msgs  []engine.Message
}

func (m *mockChatter) Chat(_ context.Context, model string, msgs []engine.Message) (string, error) {
	m.calls++
	m.model = model
	m.msgs = msgs
	return m.reply, m.err
}

func TestSynthesize_TrimsReply(t *testing.T) {
	chat := &mockChatter{reply: "\n  ffuf -u http://example.com/FUZZ -w dirs.txt \n"}
	s := NewSynthesizer(chat, "gen-model", "instr")

	cmd, err := s.Synthesize(context.Background(), "fuzz dirs", sampleExamples, "")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if cmd != "ffuf -u http://example.com/FUZZ -w dirs.txt" {
		t.Errorf("cmd = %q", cmd)
	}
	if chat.calls != 1 {
		t.Errorf("generation called %d times, want 1", chat.calls)
	}
	if chat.model != "gen-model" {
		t.Errorf("model = %q", chat.model)
	}
}

func TestSynthesize_ReturnsReplyVerbatim(t *testing.T) {
	reply := "```bash\nffuf -u http://t/FUZZ -w w.txt\n```"
	chat := &mockChatter{reply: "  " + reply + "\n"}
	cmd, err := NewSynthesizer(chat, "m", "i").Synthesize(context.Background(), "t", nil, "")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if cmd != reply {
		t.Errorf("cmd = %q, want %q", cmd, reply)
	}
}

func TestSynthesize_PassesPriorError(t *testing.T) {
	chat := &mockChatter{reply: "ffuf"}
	if _, err := NewSynthesizer(chat, "m", "i").Synthesize(context.Background(), "t", nil, "exit status 2"); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !strings.Contains(chat.msgs[1].Content, "exit status 2") {
		t.Errorf("prior error not forwarded: %q", chat.msgs[1].Content)
	}
}

func TestSynthesize_ProviderErrorPropagates(t *testing.T) {
	perr := &engine.ProviderError{Backend: "openrouter", Op: "chat", Err: errors.New("503")}
	chat := &mockChatter{err: perr}

	cmd, err := NewSynthesizer(chat, "m", "i").Synthesize(context.Background(), "t", nil, "")
	if !errors.Is(err, perr) {
		t.Fatalf("err = %v, want provider error", err)
	}
	if cmd != "" {
		t.Errorf("cmd = %q, want empty", cmd)
	}
}

func TestSynthesize_BlankReplyIsProviderError(t *testing.T) {
	chat := &mockChatter{reply: " \n\t "}
	_, err := NewSynthesizer(chat, "m", "i").Synthesize(context.Background(), "t", nil, "")
	if !engine.IsProviderError(err) {
		t.Errorf("err = %v, want ProviderError", err)
	}
}
