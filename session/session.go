// Package session owns the resources of one conversation: the tool server,
// the MCP client connected to it, the discovered tools and the LLM.
package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/issmcp/assistants"
	"github.com/effective-security/issmcp/chatmodel"
	"github.com/effective-security/issmcp/mcp"
	"github.com/effective-security/issmcp/mcp/transport"
	"github.com/effective-security/issmcp/mcp/transport/localtransport"
	"github.com/effective-security/issmcp/mcp/transport/stdio"
	"github.com/effective-security/issmcp/pkg/config"
	"github.com/effective-security/issmcp/pkg/llmfactory"
	"github.com/effective-security/issmcp/pkg/llms"
	"github.com/effective-security/issmcp/pkg/metricskey"
	"github.com/effective-security/issmcp/registry"
	"github.com/effective-security/issmcp/store"
	"github.com/effective-security/issmcp/tools/iss"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/issmcp", "session")

const (
	// ClientName is sent to the tool server on initialize
	ClientName = "isschat"
	// ClientVersion is sent to the tool server on initialize
	ClientVersion = "1.0.0"

	// ModeSpawn runs the tool server as a child process
	ModeSpawn = "spawn"
	// ModeInProcess runs the tool server inside the client process
	ModeInProcess = "in_process"

	modelEnvPrefix = "OPENAI_"
)

// Option configures Open
type Option func(*options)

type options struct {
	llm        llms.Model
	store      store.TranscriptStore
	inProcess  bool
	httpClient *http.Client
	stderr     io.Writer
}

// WithLLM uses the provided model instead of creating one from the configuration
func WithLLM(llm llms.Model) Option {
	return func(o *options) {
		o.llm = llm
	}
}

// WithStore keeps the transcripts in st instead of the configured store
func WithStore(st store.TranscriptStore) Option {
	return func(o *options) {
		o.store = st
	}
}

// WithInProcessServer runs the tool server in the client process
func WithInProcessServer() Option {
	return func(o *options) {
		o.inProcess = true
	}
}

// WithHTTPClient specifies the upstream HTTP client of the in-process tool server
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithStderr specifies where the stderr of the child process is written,
// os.Stderr by default
func WithStderr(w io.Writer) Option {
	return func(o *options) {
		o.stderr = w
	}
}

type releaser struct {
	name string
	fn   func() error
}

// Session is a live connection to the tool server.
// Close must be called on every exit path once Open returned a Session.
type Session struct {
	cfg      *config.Config
	mode     string
	client   *mcp.Client
	registry *registry.Registry
	llm      llms.Model
	store    store.TranscriptStore

	lock      sync.Mutex
	releasers []releaser
	closeOnce sync.Once
	closeErr  error
}

// Open starts or connects the tool server, performs the initialize handshake
// and discovers the tools. On error, everything acquired so far is released.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (_ *Session, err error) {
	o := &options{
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(o)
	}

	s := &Session{
		cfg:   cfg,
		mode:  ModeSpawn,
		llm:   o.llm,
		store: o.store,
	}
	if o.inProcess || cfg.Server.InProcess {
		s.mode = ModeInProcess
	}

	started := time.Now()
	defer metricskey.PerfSessionOpen.MeasureSince(started, s.mode)

	defer func() {
		if err != nil {
			if cerr := s.Close(); cerr != nil {
				logger.ContextKV(ctx, xlog.WARNING,
					"status", "release_after_failed_open",
					"err", cerr.Error(),
				)
			}
		}
	}()

	if s.llm == nil {
		s.llm, err = llmfactory.New(&cfg.LLM).AssistantModel(cfg.Assistant.Name, cfg.Assistant.Model)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to create LLM")
		}
	}

	if s.store == nil {
		s.store, err = s.openStore()
		if err != nil {
			return nil, err
		}
	}

	var t transport.Transport
	if s.mode == ModeInProcess {
		t, err = s.startInProcess(ctx, o)
	} else {
		t, err = s.spawn(o)
	}
	if err != nil {
		return nil, err
	}

	s.client = mcp.NewClient(t,
		mcp.WithClientInfo(ClientName, ClientVersion),
		mcp.WithRequestTimeout(cfg.Server.RequestTimeout()),
	)
	s.push("mcp client", s.client.Close)

	res, err := s.client.Initialize(ctx)
	if err != nil {
		return nil, chatmodel.MarkTransport(err, "failed to initialize tool server")
	}

	var regOpts []registry.Option
	if cfg.Assistant.OmitEmptySchema {
		regOpts = append(regOpts, registry.WithOmitEmptySchema())
	}
	s.registry, err = registry.Discover(ctx, s.client, regOpts...)
	if err != nil {
		return nil, err
	}

	logger.ContextKV(ctx, xlog.INFO,
		"status", "opened",
		"mode", s.mode,
		"server", res.ServerInfo.Name,
		"tools", s.registry.Names(),
		"model", s.llm.GetName(),
	)
	return s, nil
}

// openStore returns the Redis store when configured, otherwise the memory store
func (s *Session) openStore() (store.TranscriptStore, error) {
	sc := &s.cfg.Store
	if sc.RedisURL == "" {
		return store.NewMemoryStore(), nil
	}

	ropts, err := redis.ParseURL(sc.RedisURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid Redis URL")
	}
	client := redis.NewClient(ropts)
	s.push("redis client", client.Close)
	return store.NewRedisStore(client, sc.Prefix, sc.TTL()), nil
}

// spawn prepares the configured command, it is started when the client connects
func (s *Session) spawn(o *options) (transport.Transport, error) {
	srv := &s.cfg.Server

	if _, err := exec.LookPath(srv.Command); err != nil {
		return nil, chatmodel.MarkTransport(errors.WithStack(err),
			fmt.Sprintf("failed to start tool server %q", srv.Command))
	}

	// #nosec G204 -- the command comes from the trusted configuration
	cmd := exec.Command(srv.Command, srv.Args...)
	cmd.Env = append(childEnv(), s.upstreamEnv()...)
	cmd.Env = append(cmd.Env, srv.Env...)
	cmd.Stderr = o.stderr

	logger.KV(xlog.DEBUG,
		"status", "spawning",
		"command", srv.Command,
		"terminate_after", srv.CloseTimeout(),
	)

	// closing the transport stops the process
	t := stdio.NewCommand(cmd, srv.CloseTimeout())
	s.push("tool server", t.Close)
	return t, nil
}

// childEnv returns the client environment without the model API settings,
// the tool server never talks to the model
func childEnv() []string {
	return slices.DeleteFunc(os.Environ(), func(kv string) bool {
		return strings.HasPrefix(kv, modelEnvPrefix)
	})
}

// upstreamEnv passes the upstream configuration to the child,
// the explicit server env takes precedence
func (s *Session) upstreamEnv() []string {
	up := &s.cfg.Upstream
	var env []string
	if up.BaseURL != "" {
		env = append(env, iss.EnvBaseURL+"="+up.BaseURL)
	}
	if up.TimeoutSec > 0 {
		env = append(env, iss.EnvTimeout+"="+strconv.Itoa(up.TimeoutSec))
	}
	if up.OutputFormat != "" {
		env = append(env, iss.EnvOutputFormat+"="+up.OutputFormat)
	}
	return env
}

// startInProcess serves the ISS tool on a local transport
func (s *Session) startInProcess(ctx context.Context, o *options) (transport.Transport, error) {
	up := &s.cfg.Upstream

	toolOpts := []iss.Option{
		iss.WithBaseURL(up.BaseURL),
		iss.WithTimeout(up.Timeout()),
		iss.WithOutputFormat(up.OutputFormat),
	}
	if o.httpClient != nil {
		toolOpts = append(toolOpts, iss.WithHTTPClient(o.httpClient))
	}
	tool, err := iss.New(toolOpts...)
	if err != nil {
		return nil, err
	}

	srvTransport := localtransport.New()
	server := mcp.NewServer(srvTransport, mcp.WithServerInfo(iss.ServerName, iss.ServerVersion))
	if err = tool.RegisterMCP(server); err != nil {
		return nil, err
	}
	if err = server.ServeContext(context.WithoutCancel(ctx)); err != nil {
		return nil, chatmodel.MarkTransport(err, "failed to start in-process tool server")
	}
	s.push("in-process tool server", server.Close)

	return localtransport.NewLocalClientTransport(localtransport.NewHandler(srvTransport)), nil
}

func (s *Session) push(name string, fn func() error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.releasers = append(s.releasers, releaser{name: name, fn: fn})
}

// Close releases the resources in reverse order of acquisition.
// It is safe to call more than once, the following calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.lock.Lock()
		list := s.releasers
		s.releasers = nil
		s.lock.Unlock()

		var errs error
		for i := len(list) - 1; i >= 0; i-- {
			r := list[i]
			if err := r.fn(); err != nil {
				logger.KV(xlog.WARNING,
					"status", "release_failed",
					"resource", r.name,
					"err", err.Error(),
				)
				errs = errors.CombineErrors(errs, errors.WithMessagef(err, "failed to close %s", r.name))
			}
		}
		s.closeErr = errs

		logger.KV(xlog.DEBUG,
			"status", "closed",
			"mode", s.mode,
			"released", len(list),
		)
	})
	return s.closeErr
}

// Mode returns ModeSpawn or ModeInProcess
func (s *Session) Mode() string {
	return s.mode
}

// Client returns the MCP client
func (s *Session) Client() *mcp.Client {
	return s.client
}

// Registry returns the discovered tools
func (s *Session) Registry() *registry.Registry {
	return s.registry
}

// Store returns the transcript store
func (s *Session) Store() store.TranscriptStore {
	return s.store
}

// LLM returns the model of the session
func (s *Session) LLM() llms.Model {
	return s.llm
}

// NewAssistant returns the conversation loop bound to the session,
// configured from the assistant section of the configuration.
// opts are applied after the configuration.
func (s *Session) NewAssistant(opts ...assistants.Option) *assistants.Assistant {
	ac := &s.cfg.Assistant
	all := []assistants.Option{
		assistants.WithName(ac.Name),
		assistants.WithInstructions(ac.Instructions),
		assistants.WithModel(ac.Model),
		assistants.WithTemperature(ac.Temperature),
	}
	all = append(all, opts...)
	return assistants.New(s.llm, s.client, s.registry, all...)
}

// Ask runs the assistant on the query and saves the run in the transcript store,
// failed runs are saved with the partial transcript.
func (s *Session) Ask(ctx context.Context, query string, opts ...assistants.Option) (*assistants.Result, error) {
	ctx, chatCtx := chatmodel.EnsureChatContext(ctx)

	a := s.NewAssistant(opts...)
	res, err := a.Run(ctx, query)

	run := &store.Run{
		ChatID:    chatCtx.GetChatID(),
		Assistant: a.Name(),
		Query:     query,
		CreatedAt: time.Now().UTC(),
	}
	if res != nil {
		run.Answer = res.Answer
		run.State = res.State.String()
		run.Messages = res.Transcript
	}
	if err != nil {
		run.Error = err.Error()
	}
	if serr := s.store.Save(ctx, run); serr != nil {
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "save_failed",
			"chat_id", run.ChatID,
			"err", serr.Error(),
		)
	}
	return res, err
}
