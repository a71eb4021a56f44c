// Package builtin ships the agents available out of the box: echo for
// smoke-testing the pipeline, prompt for free-form LLM queries, summarize
// for condensing text, and extract for JMESPath data extraction.
package builtin

import (
	"github.com/agentrun-io/agentrun/internal/agent"
	"github.com/agentrun-io/agentrun/internal/provider"
)

// RegisterAll registers every builtin agent. Provider-backed agents share the
// given registry; resolution happens at execution time so providers may be
// configured after registration.
func RegisterAll(agents *agent.Registry, providers *provider.Registry) {
	agents.Register(NewEchoAgent())
	agents.Register(NewPromptAgent(providers))
	agents.Register(NewSummarizeAgent(providers))
	agents.Register(NewExtractAgent())
}
