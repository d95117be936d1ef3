package credentials

import (
	"os"
	"strings"
)

// Store hands out the bearer token used to open event streams. It is a
// read-only view: nothing in this module writes or refreshes tokens.
type Store interface {
	Get() (string, bool)
}

// Static always returns the same token. An empty Static has no token.
type Static string

func (s Static) Get() (string, bool) {
	t := strings.TrimSpace(string(s))
	return t, t != ""
}

// Env reads the token from an environment variable on every call, so a token
// exported after startup is picked up by the next reconnect.
type Env struct {
	Name string
}

func (e Env) Get() (string, bool) {
	if e.Name == "" {
		return "", false
	}
	t := strings.TrimSpace(os.Getenv(e.Name))
	return t, t != ""
}

// File reads the token from a file on every call.
type File struct {
	Path string
}

func (f File) Get() (string, bool) {
	if f.Path == "" {
		return "", false
	}
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return "", false
	}
	t := strings.TrimSpace(string(b))
	return t, t != ""
}

// Chain returns the first token any of its stores has.
type Chain []Store

func (c Chain) Get() (string, bool) {
	for _, s := range c {
		if s == nil {
			continue
		}
		if t, ok := s.Get(); ok {
			return t, true
		}
	}
	return "", false
}
