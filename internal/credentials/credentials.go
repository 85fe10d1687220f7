// Package credentials implements per-context token storage and the
// resolution chain that picks the token for an invocation.
package credentials

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// EnvToken is the context-independent token environment variable.
	EnvToken = "PRAGMA_AUTH_TOKEN"

	// EnvTokenPrefix prefixes per-context token environment variables,
	// e.g. PRAGMA_AUTH_TOKEN_PRODUCTION.
	EnvTokenPrefix = "PRAGMA_AUTH_TOKEN_"
)

// ErrUnauthenticated is returned when no source yields a token.
var ErrUnauthenticated = errors.New("no credentials found, run 'pragma auth login' to authenticate")

// Source identifies where a resolved token came from.
type Source string

const (
	SourceFlag       Source = "flag"
	SourceContextEnv Source = "context-env"
	SourceEnv        Source = "env"
	SourceFile       Source = "file"
)

// Credential is the resolved token for one invocation. It is never
// persisted; only the credentials file holds durable tokens.
type Credential struct {
	Token   string
	Context string
	Source  Source
}

// DefaultPath returns the credentials file location, honoring
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
	return filepath.Join(base, "pragma", "credentials"), nil
}

// File is the on-disk token store: one "context=token" line per
// context, mode 0600. Only login and logout write it.
type File struct {
	Path string
}

// NewFile creates a credentials file handle at the given path.
func NewFile(path string) *File {
	return &File{Path: path}
}

// Load reads all stored tokens keyed by context name. A missing file
// yields an empty map.
func (f *File) Load() (map[string]string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}
	tokens := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, token, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		tokens[name] = token
	}
	return tokens, nil
}

// Token returns the stored token for a context, if any.
func (f *File) Token(context string) (string, bool, error) {
	tokens, err := f.Load()
	if err != nil {
		return "", false, err
	}
	token, ok := tokens[context]
	return token, ok, nil
}

// Save stores a token for a context, replacing any existing one.
func (f *File) Save(context, token string) error {
	tokens, err := f.Load()
	if err != nil {
		return err
	}
	tokens[context] = token
	return f.write(tokens)
}

// Clear removes the token for a context. An empty context clears all
// credentials. The file is removed when no tokens remain.
func (f *File) Clear(context string) error {
	if context == "" {
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing credentials: %w", err)
		}
		return nil
	}
	tokens, err := f.Load()
	if err != nil {
		return err
	}
	delete(tokens, context)
	if len(tokens) == 0 {
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing credentials: %w", err)
		}
		return nil
	}
	return f.write(tokens)
}

func (f *File) write(tokens map[string]string) error {
	names := make([]string, 0, len(tokens))
	for name := range tokens {
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(name)
		sb.WriteString("=")
		sb.WriteString(tokens[name])
		sb.WriteString("\n")
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
		return fmt.Errorf("creating credentials dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.Path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(sb.String()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}

// Resolver picks the token for an invocation. It performs no network
// calls.
type Resolver struct {
	File *File
}

// NewResolver creates a resolver backed by the given credentials file.
func NewResolver(file *File) *Resolver {
	return &Resolver{File: file}
}

// Resolve returns the token for the context, first match wins:
// the explicit flag value, the context-specific environment variable,
// the generic environment variable, then the credentials file.
func (r *Resolver) Resolve(context, explicit string) (Credential, error) {
	if explicit != "" {
		return Credential{Token: explicit, Context: context, Source: SourceFlag}, nil
	}
	if token := os.Getenv(EnvTokenPrefix + EnvSuffix(context)); token != "" {
		return Credential{Token: token, Context: context, Source: SourceContextEnv}, nil
	}
	if token := os.Getenv(EnvToken); token != "" {
		return Credential{Token: token, Context: context, Source: SourceEnv}, nil
	}
	token, ok, err := r.File.Token(context)
	if err != nil {
		return Credential{}, err
	}
	if ok && token != "" {
		return Credential{Token: token, Context: context, Source: SourceFile}, nil
	}
	return Credential{}, ErrUnauthenticated
}

// EnvSuffix converts a context name to its environment variable
// suffix: uppercased, with dashes mapped to underscores.
func EnvSuffix(context string) string {
	return strings.ToUpper(strings.ReplaceAll(context, "-", "_"))
}
