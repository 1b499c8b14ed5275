package handlers

import (
	"chatstream/pkg/config"
	"chatstream/pkg/llm"
	"chatstream/pkg/stream"
)

var (
	hub      *stream.Hub
	provider llm.Provider
	llmCfg   config.LLMConfig

	// retentionRun is injected by the app so admin handlers can trigger a
	// sweep without importing the scheduler.
	retentionRun func(dryRun bool) (map[string]int, error)
)

// Configure injects the stream hub, generation provider and LLM settings.
// Must be called before the router serves traffic.
func Configure(h *stream.Hub, p llm.Provider, cfg config.LLMConfig) {
	hub = h
	provider = p
	llmCfg = cfg
}

// SetRetentionRunner wires the on-demand retention sweep.
func SetRetentionRunner(fn func(dryRun bool) (map[string]int, error)) {
	retentionRun = fn
}
