package callbacks

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/effective-security/issmcp/assistants"
	"github.com/effective-security/issmcp/chatmodel"
	"github.com/effective-security/issmcp/pkg/llms"
	"github.com/effective-security/issmcp/pkg/llmutils"
)

// TimeNowFn returns the time stamped on the trace lines
var TimeNowFn = time.Now

// RunStats are the counters of one traced run
type RunStats struct {
	ChatID string

	Duration              time.Duration
	TotalMessages         uint32
	LLMBytesOut           uint64
	LLMBytesIn            uint64
	LLMInputTokens        uint64
	LLMOutputTokens       uint64
	LLMCalls              uint32
	AssistantRuns         uint32
	AssistantRunsFailed   uint32
	ToolCalls             uint32
	ToolCallsSucceeded    uint32
	ToolCallsFailed       uint32
	ToolCallsNotFound     uint32
	ToolResultBytes       uint64
	FinalState            string
	FinalAnswerCharacters int
}

// Trace collects the events of the runs, keyed by the chat ID.
// A run is traced only between StartRun and EndRun.
type Trace struct {
	runs map[string]*run
	mode Mode
	lock sync.Mutex
}

func NewTrace(mode Mode) *Trace {
	return &Trace{
		runs: make(map[string]*run),
		mode: mode,
	}
}

// StartRun starts tracing the run of the chat in ctx,
// a chat context is added to ctx when missing.
func (l *Trace) StartRun(ctx context.Context) context.Context {
	ctx, chatCtx := chatmodel.EnsureChatContext(ctx)

	r := &run{
		stats: RunStats{
			ChatID: chatCtx.GetChatID(),
		},
		chatID:  chatCtx.GetChatID(),
		started: time.Now(),
	}

	l.lock.Lock()
	l.runs[r.chatID] = r
	l.lock.Unlock()

	r.print("*** Run Started ***")
	return ctx
}

// EndRun stops tracing and returns the stats and the trace of the run
func (l *Trace) EndRun(ctx context.Context) (*RunStats, []byte) {
	r := l.getRun(ctx)
	if r == nil {
		return nil, nil
	}

	r.lock.Lock()
	r.stats.Duration = time.Since(r.started)
	stats := r.stats
	r.lock.Unlock()

	r.print(fmt.Sprintf("Assistant runs: %d, Failed: %d, State: %s",
		stats.AssistantRuns,
		stats.AssistantRunsFailed,
		stats.FinalState,
	))
	r.print(fmt.Sprintf("Tool calls: %d, Failed: %d, Not Found: %d, Result Bytes: %d",
		stats.ToolCalls,
		stats.ToolCallsFailed,
		stats.ToolCallsNotFound,
		stats.ToolResultBytes,
	))
	r.print(fmt.Sprintf("LLM calls: %d, Messages: %d, Bytes Out: %d, Bytes In: %d, Input Tokens: %d, Output Tokens: %d",
		stats.LLMCalls,
		stats.TotalMessages,
		stats.LLMBytesOut,
		stats.LLMBytesIn,
		stats.LLMInputTokens,
		stats.LLMOutputTokens,
	))
	r.print(fmt.Sprintf("*** Run Ended. Duration: %s ***", stats.Duration))

	l.lock.Lock()
	delete(l.runs, r.chatID)
	l.lock.Unlock()

	r.lock.Lock()
	defer r.lock.Unlock()
	return &stats, bytes.Clone(r.w.Bytes())
}

func (l *Trace) getRun(ctx context.Context) *run {
	chatID := chatmodel.GetChatID(ctx)
	if chatID == "" {
		return nil
	}

	l.lock.Lock()
	defer l.lock.Unlock()
	return l.runs[chatID]
}

func (l *Trace) OnAssistantStart(ctx context.Context, assistant assistants.IAssistant, input string) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	r.update(func(s *RunStats) { s.AssistantRuns++ })
	r.print(assistant.Name(), "*** Assistant Start ***")
	r.print(assistant.Name(), "Input:", input)
}

func (l *Trace) OnAssistantEnd(ctx context.Context, assistant assistants.IAssistant, input string, res *assistants.Result) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	r.update(func(s *RunStats) {
		s.FinalState = res.State.String()
		s.FinalAnswerCharacters = len(res.Answer)
	})

	if l.mode == ModeVerbose {
		r.print(assistant.Name(), "Output:", res.Answer)
		r.print(assistant.Name(), printMessages(res.Transcript))
	}
	r.print(assistant.Name(), "*** Assistant End ***")
}

func (l *Trace) OnAssistantError(ctx context.Context, assistant assistants.IAssistant, input string, err error, messages []llms.Message) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	r.update(func(s *RunStats) {
		s.AssistantRunsFailed++
		s.FinalState = chatmodel.Reason(err)
	})
	r.print(assistant.Name(), "*** Error ***", err.Error())
	r.print(assistant.Name(), printMessages(messages))
}

func (l *Trace) OnAssistantLLMCallStart(ctx context.Context, assistant assistants.IAssistant, llm llms.Model, payload []llms.Message) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}

	count := uint32(len(payload))
	r.update(func(s *RunStats) {
		s.LLMBytesOut += llmutils.CountMessagesContentSize(payload)
		s.LLMCalls++
		s.TotalMessages += count
	})

	r.print(assistant.Name(), "*** LLM Call ***", fmt.Sprintf("%s model, %d messages", llm.GetName(), count))
	if l.mode == ModeVerbose {
		r.print(assistant.Name(), printMessages(payload))
	}
}

func (l *Trace) OnAssistantLLMCallEnd(ctx context.Context, assistant assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}

	tokensIn, tokensOut, _ := llmutils.CountTokens(resp)
	r.update(func(s *RunStats) {
		s.LLMBytesIn += llmutils.CountResponseContentSize(resp)
		s.LLMInputTokens += uint64(tokensIn)
		s.LLMOutputTokens += uint64(tokensOut)
	})

	r.print(assistant.Name(), "*** LLM Call End ***", fmt.Sprintf("%s model, %d input tokens, %d output tokens", llm.GetName(), tokensIn, tokensOut))
}

func (l *Trace) OnToolStart(ctx context.Context, assistant assistants.IAssistant, call llms.ToolCall) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	r.update(func(s *RunStats) { s.ToolCalls++ })
	r.print(assistant.Name(), call.Name(), "*** Tool Start ***", call.ID)
	if call.FunctionCall != nil && call.FunctionCall.Arguments != "" {
		r.print(assistant.Name(), call.Name(), "Input:", call.FunctionCall.Arguments)
	}
}

func (l *Trace) OnToolEnd(ctx context.Context, assistant assistants.IAssistant, call llms.ToolCall, output string) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	r.update(func(s *RunStats) {
		s.ToolCallsSucceeded++
		s.ToolResultBytes += uint64(len(output))
	})
	if l.mode == ModeVerbose {
		r.print(assistant.Name(), call.Name(), "Output:", output)
	}
	r.print(assistant.Name(), call.Name(), "*** Tool End ***", call.ID)
}

func (l *Trace) OnToolError(ctx context.Context, assistant assistants.IAssistant, call llms.ToolCall, err error) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	r.update(func(s *RunStats) { s.ToolCallsFailed++ })
	r.print(assistant.Name(), call.Name(), "*** Tool Error ***", err.Error())
}

func (l *Trace) OnToolNotFound(ctx context.Context, assistant assistants.IAssistant, call llms.ToolCall) {
	r := l.getRun(ctx)
	if r == nil {
		return
	}
	r.update(func(s *RunStats) { s.ToolCallsNotFound++ })
	r.print(assistant.Name(), "*** Tool Not Found ***", call.Name())
}

func printMessages(messages []llms.Message) string {
	var buf strings.Builder
	buf.WriteString("Messages:\n")
	for idx, msg := range messages {
		fmt.Fprintf(&buf, "[%d] %s:\n", idx, msg.Role)
		textParts := 0
		toolParts := 0
		toolResponseParts := 0
		for _, part := range msg.Parts {
			switch typ := part.(type) {
			case llms.TextContent:
				textParts++
			case llms.ToolCall:
				toolParts++
				buf.WriteString("  - ")
				buf.WriteString(typ.String())
				buf.WriteString("\n")
			case llms.ToolCallResponse:
				toolResponseParts++
				buf.WriteString("  - ")
				buf.WriteString(typ.String())
				buf.WriteString("\n")
			}
		}

		fmt.Fprintf(&buf, "  - %d texts, %d tool calls, %d tool responses\n", textParts, toolParts, toolResponseParts)
	}
	return buf.String()
}

type run struct {
	chatID  string
	w       bytes.Buffer
	started time.Time
	lock    sync.Mutex
	stats   RunStats
}

func (r *run) update(fn func(*RunStats)) {
	r.lock.Lock()
	defer r.lock.Unlock()
	fn(&r.stats)
}

// print writes the entries to the run's output.
// The entries are written in the following format:
// [timestamp chatID] entry entry\n
func (r *run) print(entries ...string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	ts := TimeNowFn().Format("2006-01-02 15:04:05")

	_, _ = r.w.WriteString(ts)
	_, _ = r.w.WriteString(" ")
	_, _ = r.w.WriteString(r.chatID)
	_, _ = r.w.WriteString(" ")

	for i, entry := range entries {
		if i > 0 {
			_, _ = r.w.WriteString(" ")
		}
		_, _ = r.w.WriteString(entry)
	}
	_, _ = r.w.WriteString("\n")
}
