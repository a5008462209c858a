package metricskey

import "github.com/effective-security/metrics"

// Stats
var (
	// StatsLLMMessagesSent is base for counter metric for total messages sent to LLM
	StatsLLMMessagesSent = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_messages_sent",
		Help:         "stats_llm_messages_sent provides total messages sent to LLM",
		RequiredTags: []string{"assistant", "model"},
	}

	StatsLLMBytesSent = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_bytes_sent",
		Help:         "stats_llm_bytes_sent provides total bytes sent to LLM",
		RequiredTags: []string{"assistant", "model"},
	}

	StatsLLMBytesReceived = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_bytes_received",
		Help:         "stats_llm_bytes_received provides total bytes received from LLM",
		RequiredTags: []string{"assistant", "model"},
	}

	StatsLLMInputTokens = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_input_tokens",
		Help:         "stats_llm_input_tokens provides total input tokens sent to LLM",
		RequiredTags: []string{"assistant", "model"},
	}

	StatsLLMOutputTokens = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_output_tokens",
		Help:         "stats_llm_output_tokens provides total output tokens received from LLM",
		RequiredTags: []string{"assistant", "model"},
	}

	StatsAssistantRunsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_assistant_runs_succeeded",
		Help:         "stats_assistant_runs_succeeded provides total assistant runs succeeded",
		RequiredTags: []string{"assistant"},
	}

	StatsAssistantRunsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_assistant_runs_failed",
		Help:         "stats_assistant_runs_failed provides total assistant runs failed",
		RequiredTags: []string{"assistant", "reason"},
	}

	StatsToolCallsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_succeeded",
		Help:         "stats_tool_calls_succeeded provides total tool calls succeeded",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_failed",
		Help:         "stats_tool_calls_failed provides total tool calls failed",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsNotFound = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_not_found",
		Help:         "stats_tool_calls_not_found provides total tool calls not found",
		RequiredTags: []string{"tool"},
	}

	StatsUpstreamFetchFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_upstream_fetch_failed",
		Help:         "stats_upstream_fetch_failed provides total failed upstream position fetches",
		RequiredTags: []string{"reason"},
	}
)

// Perf
var (
	PerfAssistantRun = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_assistant_run",
		Help:         "perf_assistant_run provides duration of assistant run",
		RequiredTags: []string{"assistant"},
	}

	PerfToolCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_tool_call",
		Help:         "perf_tool_call provides duration of tool call",
		RequiredTags: []string{"tool"},
	}

	PerfUpstreamFetch = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_upstream_fetch",
		Help:         "perf_upstream_fetch provides duration of upstream position fetch",
		RequiredTags: []string{"status"},
	}

	PerfSessionOpen = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_session_open",
		Help:         "perf_session_open provides duration of session open",
		RequiredTags: []string{"mode"},
	}
)

// Metrics returns slice of metrics from this repo
// keep sorted by name
var Metrics = []*metrics.Describe{
	&PerfAssistantRun,
	&PerfSessionOpen,
	&PerfToolCall,
	&PerfUpstreamFetch,
	&StatsAssistantRunsFailed,
	&StatsAssistantRunsSucceeded,
	&StatsLLMBytesReceived,
	&StatsLLMBytesSent,
	&StatsLLMInputTokens,
	&StatsLLMMessagesSent,
	&StatsLLMOutputTokens,
	&StatsToolCallsFailed,
	&StatsToolCallsNotFound,
	&StatsToolCallsSucceeded,
	&StatsUpstreamFetchFailed,
}
