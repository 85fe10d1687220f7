// Package config implements the context store: named connection
// profiles for the Pragmatiks platform, persisted as a YAML file, with
// a pointer to the current context.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultContextName is the context bootstrapped when no config
	// file exists yet.
	DefaultContextName = "default"

	// DefaultAPIURL is the platform API endpoint of the default context.
	DefaultAPIURL = "https://api.pragmatiks.io"

	// EnvContext overrides the current context for a single invocation
	// without mutating the store.
	EnvContext = "PRAGMA_CONTEXT"
)

// ErrNoCurrentContext is returned when no context is marked current.
var ErrNoCurrentContext = errors.New("no current context configured")

// NotFoundError is returned when a named context does not exist.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("context %q not found", e.Name)
}

// Context is a named remote endpoint profile.
type Context struct {
	APIURL  string `yaml:"api_url" json:"api_url"`
	AuthURL string `yaml:"auth_url,omitempty" json:"auth_url,omitempty"`
}

// ResolveAuthURL returns the web app URL used for browser login. An
// explicit auth_url wins; otherwise it is derived from the API URL:
// localhost APIs map to the local web app on port 3000, and an "api."
// host prefix becomes "app.".
func (c Context) ResolveAuthURL() string {
	if c.AuthURL != "" {
		return c.AuthURL
	}
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return c.APIURL
	}
	host := u.Hostname()
	if host == "127.0.0.1" || host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return "http://localhost:3000"
	}
	if rest, ok := strings.CutPrefix(host, "api."); ok {
		host = "app." + rest
	}
	derived := url.URL{Scheme: u.Scheme, Host: host}
	return derived.String()
}

// Config is the full context store state as persisted on disk.
type Config struct {
	CurrentContext string             `yaml:"current_context" json:"current_context"`
	Contexts       map[string]Context `yaml:"contexts" json:"contexts"`
}

// NamedContext pairs a context with its name and current marker for
// listing.
type NamedContext struct {
	Name    string  `json:"name"`
	Context Context `json:"context"`
	Current bool    `json:"current"`
}

// DefaultPath returns the config file location, honoring
// XDG_CONFIG_HOME.
func DefaultPath() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locating config dir: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "pragma", "config.yaml"), nil
}

// Store is a file-backed context store. Every mutation is a whole-file
// read-modify-write; concurrent CLI invocations are last-writer-wins.
type Store struct {
	Path string
}

// NewStore creates a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Load reads the config file. A missing file yields the bootstrap
// config with the default context marked current.
func (s *Store) Load() (*Config, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]Context)
	}
	return &cfg, nil
}

// Save writes the config file as a single atomic replacement.
func (s *Store) Save(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.Path), ".config-*")
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// List returns all contexts sorted by name with the current one marked.
func (s *Store) List() ([]NamedContext, error) {
	cfg, err := s.Load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(cfg.Contexts))
	for name := range cfg.Contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]NamedContext, 0, len(names))
	for _, name := range names {
		out = append(out, NamedContext{
			Name:    name,
			Context: cfg.Contexts[name],
			Current: name == cfg.CurrentContext,
		})
	}
	return out, nil
}

// Current returns the current context. It fails with
// ErrNoCurrentContext when no context is marked current.
func (s *Store) Current() (string, Context, error) {
	cfg, err := s.Load()
	if err != nil {
		return "", Context{}, err
	}
	if cfg.CurrentContext == "" {
		return "", Context{}, ErrNoCurrentContext
	}
	ctx, ok := cfg.Contexts[cfg.CurrentContext]
	if !ok {
		return "", Context{}, &NotFoundError{Name: cfg.CurrentContext}
	}
	return cfg.CurrentContext, ctx, nil
}

// Get returns the named context.
func (s *Store) Get(name string) (Context, error) {
	cfg, err := s.Load()
	if err != nil {
		return Context{}, err
	}
	ctx, ok := cfg.Contexts[name]
	if !ok {
		return Context{}, &NotFoundError{Name: name}
	}
	return ctx, nil
}

// Set creates or updates a context. When makeCurrent is true the
// current pointer flips to it in the same write.
func (s *Store) Set(name, apiURL string, makeCurrent bool) error {
	cfg, err := s.Load()
	if err != nil {
		return err
	}
	cfg.Contexts[name] = Context{APIURL: apiURL, AuthURL: cfg.Contexts[name].AuthURL}
	if makeCurrent {
		cfg.CurrentContext = name
	}
	return s.Save(cfg)
}

// Use marks the named context current.
func (s *Store) Use(name string) error {
	cfg, err := s.Load()
	if err != nil {
		return err
	}
	if _, ok := cfg.Contexts[name]; !ok {
		return &NotFoundError{Name: name}
	}
	cfg.CurrentContext = name
	return s.Save(cfg)
}

// Delete removes the named context. Deleting the current context
// leaves no current context; it never falls back to another one.
func (s *Store) Delete(name string) error {
	cfg, err := s.Load()
	if err != nil {
		return err
	}
	if _, ok := cfg.Contexts[name]; !ok {
		return &NotFoundError{Name: name}
	}
	delete(cfg.Contexts, name)
	if cfg.CurrentContext == name {
		cfg.CurrentContext = ""
	}
	return s.Save(cfg)
}

// Resolve picks the context for this invocation: the override flag
// wins, then PRAGMA_CONTEXT, then the stored current pointer. Neither
// override mutates the store.
func (s *Store) Resolve(override string) (string, Context, error) {
	if override == "" {
		override = os.Getenv(EnvContext)
	}
	if override != "" {
		ctx, err := s.Get(override)
		if err != nil {
			return "", Context{}, err
		}
		return override, ctx, nil
	}
	return s.Current()
}

func defaultConfig() *Config {
	return &Config{
		CurrentContext: DefaultContextName,
		Contexts: map[string]Context{
			DefaultContextName: {APIURL: DefaultAPIURL},
		},
	}
}
