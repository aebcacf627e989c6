package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/taskdeck-dev/taskdeck/internal/account"
	"github.com/taskdeck-dev/taskdeck/internal/apiclient"
	"github.com/taskdeck-dev/taskdeck/internal/cli/client"
	"github.com/taskdeck-dev/taskdeck/internal/cli/config"
	"github.com/taskdeck-dev/taskdeck/internal/cli/serverselect"
	"github.com/taskdeck-dev/taskdeck/internal/cli/userconfig"
	"github.com/taskdeck-dev/taskdeck/internal/logger"
	"github.com/taskdeck-dev/taskdeck/internal/session"
	"github.com/taskdeck-dev/taskdeck/internal/tokenstore"
)

// Version is reported in the User-Agent header. Set by the root command.
var Version = "dev"

var errNotLoggedIn = errors.New("not authenticated. Please run 'taskdeck login' first")

// runOptions allows dependency injection for testing
type runOptions struct {
	server      *config.Server
	serverAlias string
	store       tokenstore.Store
	httpClient  *http.Client
	out         io.Writer
}

// Option configures how a command builds its runtime
type Option func(*runOptions)

// WithServer sets the server directly instead of resolving it from config
func WithServer(server *config.Server) Option {
	return func(o *runOptions) {
		o.server = server
	}
}

// WithServerAlias selects a server from taskdeck.json by alias
func WithServerAlias(alias string) Option {
	return func(o *runOptions) {
		o.serverAlias = alias
	}
}

// WithTokenStore sets a custom token store (for testing)
func WithTokenStore(store tokenstore.Store) Option {
	return func(o *runOptions) {
		o.store = store
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *runOptions) {
		o.httpClient = httpClient
	}
}

// WithOutput redirects command output (for testing)
func WithOutput(w io.Writer) Option {
	return func(o *runOptions) {
		o.out = w
	}
}

// runtime bundles everything a command needs to talk to one server
type runtime struct {
	env     *config.Env
	server  *config.Server
	store   tokenstore.Store
	api     *apiclient.Client
	session *session.Controller
	client  *client.Client
	logger  zerolog.Logger
	out     io.Writer
}

func newRuntime(opts ...Option) (*runtime, error) {
	o := &runOptions{out: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}
	log := logger.New(os.Stderr, env.LogLevel, env.LogFormat)

	server := o.server
	if server == nil {
		server, err = getSelectedServer(env, o.serverAlias, o.out)
		if err != nil {
			return nil, err
		}
	}

	store := o.store
	if store == nil {
		dir, err := userconfig.Dir()
		if err != nil {
			return nil, err
		}
		store, err = tokenstore.Open(env.TokenStore, server.URL, dir)
		if err != nil {
			return nil, err
		}
	}

	api := apiclient.New(server.URL, store,
		apiclient.WithTimeout(env.Timeout),
		apiclient.WithLogger(log),
		apiclient.WithUserAgent("taskdeck-cli/"+Version),
	)
	if o.httpClient != nil {
		api.SetHTTPClient(o.httpClient)
	}

	controller := session.NewController(account.New(api), store, session.WithLogger(log))
	api.SetOnRefreshFailure(controller.HandleRefreshFailure)

	return &runtime{
		env:     env,
		server:  server,
		store:   store,
		api:     api,
		session: controller,
		client:  client.New(api),
		logger:  log,
		out:     o.out,
	}, nil
}

// getSelectedServer resolves the server from TASKDECK_API_URL or taskdeck.json.
func getSelectedServer(env *config.Env, alias string, warn io.Writer) (*config.Server, error) {
	if server := env.EnvServer(); server != nil && alias == "" {
		return server, nil
	}

	cfg, err := config.LoadFromCurrentDir()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w\nRun 'taskdeck init' to create a configuration file", err)
	}

	server, err := serverselect.ResolveServer(cfg, alias, nil, warn)
	if err != nil {
		return nil, err
	}

	if server.URL == "" {
		return nil, fmt.Errorf("server URL is empty. Please edit taskdeck.json and add a valid API URL")
	}

	return server, nil
}

// requireSession bootstraps the session and fails unless a user is logged in.
func (rt *runtime) requireSession(ctx context.Context) (*account.Profile, error) {
	if err := rt.session.Bootstrap(ctx); err != nil {
		if apiclient.IsUnauthorized(err) || apiclient.IsRefreshFailure(err) {
			return nil, fmt.Errorf("session expired. Please run 'taskdeck login' again")
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	user, err := rt.session.Authorize()
	if errors.Is(err, session.ErrNotAuthenticated) {
		return nil, errNotLoggedIn
	}
	return user, err
}

func (rt *runtime) printf(format string, args ...any) {
	fmt.Fprintf(rt.out, format, args...)
}

func (rt *runtime) println(args ...any) {
	fmt.Fprintln(rt.out, args...)
}
