// Command isschat asks a model where the International Space Station is,
// letting it call the get_position tool of the ISS tool server.
//
// It takes no flags, the configuration is read from the environment:
//
//	OPENAI_API_KEY     required, the model API key
//	ISSCHAT_CONFIG     optional configuration file, .yaml, .json or .toml
//	ISSCHAT_QUERY      optional question, overrides assistant.query
//	ISSCHAT_LOG_LEVEL  optional, ERROR, WARNING (default), INFO, DEBUG or TRACE
//
// Runs are saved in Redis when store.redis_url is configured.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/issmcp/assistants"
	"github.com/effective-security/issmcp/callbacks"
	"github.com/effective-security/issmcp/chatmodel"
	"github.com/effective-security/issmcp/pkg/config"
	"github.com/effective-security/issmcp/pkg/llms"
	"github.com/effective-security/issmcp/pkg/llmutils"
	"github.com/effective-security/issmcp/session"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/issmcp/cmd", "isschat")

const (
	envAPIKey   = "OPENAI_API_KEY"
	envConfig   = "ISSCHAT_CONFIG"
	envQuery    = "ISSCHAT_QUERY"
	envLogLevel = "ISSCHAT_LOG_LEVEL"
)

// exit codes
const (
	exitOK         = 0
	exitUsage      = 1
	exitToolServer = 2
	exitRun        = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, stdout, stderr io.Writer, opts ...session.Option) int {
	if os.Getenv(envAPIKey) == "" {
		fmt.Fprintf(stderr, "%s is not set, export it before running isschat\n", envAPIKey)
		return exitUsage
	}

	xlog.SetFormatter(xlog.NewStringFormatter(stderr))
	verbose := setLogLevel(os.Getenv(envLogLevel))

	cfg, err := config.Load(os.Getenv(envConfig))
	if err != nil {
		fmt.Fprintf(stderr, "error: %s\n", err.Error())
		return exitUsage
	}
	query := values.StringsCoalesce(os.Getenv(envQuery), cfg.Assistant.Query)

	mode := callbacks.ModeDefault
	if verbose {
		mode = callbacks.ModeVerbose
	}
	trace := callbacks.NewTrace(mode)
	ctx = trace.StartRun(ctx)

	sess, err := session.Open(ctx, cfg, opts...)
	if err != nil {
		fmt.Fprintf(stderr, "error: %s\n", err.Error())
		return exitCode(err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.ContextKV(ctx, xlog.WARNING, "status", "close_failed", "err", err.Error())
		}
	}()

	cb := callbacks.NewFanout(
		callbacks.NewPrinter(stdout, mode),
		callbacks.NewPackageLogger(logger),
		trace,
	)
	res, err := sess.Ask(ctx, query, assistants.WithCallback(cb))

	stats, out := trace.EndRun(ctx)
	if stats != nil {
		logger.ContextKV(ctx, xlog.INFO,
			"status", "run_stats",
			"duration", stats.Duration,
			"llm_calls", stats.LLMCalls,
			"tool_calls", stats.ToolCalls,
			"input_tokens", stats.LLMInputTokens,
			"output_tokens", stats.LLMOutputTokens,
		)
	}
	if verbose {
		_, _ = stderr.Write(out)
	}

	if res != nil && res.Answer != "" {
		fmt.Fprintln(stdout, res.Answer)
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %s\n", err.Error())
		if res != nil {
			fmt.Fprintf(stderr, "state: %s, submissions: %d, tool calls: %d\n",
				res.State, res.Submissions, len(res.ToolCalls))
			printTranscript(stderr, cfg.Assistant.TranscriptFormat, res.Transcript)
		}
		return exitCode(err)
	}

	if cfg.Assistant.PrintTranscript {
		printTranscript(stdout, cfg.Assistant.TranscriptFormat, res.Transcript)
	}
	return exitOK
}

func exitCode(err error) int {
	if errors.Is(err, chatmodel.ErrTransport) {
		return exitToolServer
	}
	return exitRun
}

func printTranscript(w io.Writer, format string, messages []llms.Message) {
	if len(messages) == 0 {
		return
	}
	fmt.Fprintln(w, "Transcript:")
	if format == "json" {
		fmt.Fprintln(w, llmutils.ToJSONIndent(messages))
		return
	}
	fmt.Fprint(w, llmutils.EnsureEndsWithNewline(llmutils.ToYAML(messages)))
}

// setLogLevel returns true for DEBUG and TRACE
func setLogLevel(level string) bool {
	switch strings.ToUpper(level) {
	case "ERROR":
		xlog.SetGlobalLogLevel(xlog.ERROR)
	case "INFO":
		xlog.SetGlobalLogLevel(xlog.INFO)
	case "DEBUG":
		xlog.SetGlobalLogLevel(xlog.DEBUG)
		return true
	case "TRACE":
		xlog.SetGlobalLogLevel(xlog.TRACE)
		return true
	default:
		xlog.SetGlobalLogLevel(xlog.WARNING)
	}
	return false
}
