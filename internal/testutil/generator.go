package testutil

import (
	"context"
	"strings"
	"sync"
)

// ScriptedGenerator is a fake model gateway. It matches the prompt against
// registered substrings and returns the paired response; the fallback is
// returned when nothing matches. Prompts are recorded so tests can inspect
// which prompt variant (grounded vs fallback) was assembled.
//
// Thread-safe for concurrent use.
type ScriptedGenerator struct {
	mu       sync.Mutex
	rules    []generatorRule
	fallback string
	prompts  []string
	err      error
}

type generatorRule struct {
	pattern  string
	response string
}

// NewScriptedGenerator creates a generator with the given fallback
// response.
func NewScriptedGenerator(fallback string) *ScriptedGenerator {
	return &ScriptedGenerator{fallback: fallback}
}

// NewFailingGenerator creates a generator whose Generate always returns err.
func NewFailingGenerator(err error) *ScriptedGenerator {
	return &ScriptedGenerator{err: err}
}

// AddResponse registers a pattern-response pair. First match wins.
func (g *ScriptedGenerator) AddResponse(pattern, response string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rules = append(g.rules, generatorRule{pattern: pattern, response: response})
}

// Generate records the prompt and returns the scripted response.
func (g *ScriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	for _, r := range g.rules {
		if strings.Contains(prompt, r.pattern) {
			return r.response, nil
		}
	}
	return g.fallback, nil
}

// Prompts returns a copy of all recorded prompts.
func (g *ScriptedGenerator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := make([]string, len(g.prompts))
	copy(cp, g.prompts)
	return cp
}

// Calls returns how many times Generate was invoked.
func (g *ScriptedGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}
