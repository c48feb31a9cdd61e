package workers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// LLMWorker answers a query with one chat completion. When Tool is set its
// output is attached to the user message, the way a tool call result would be.
type LLMWorker struct {
	Kind    Kind
	Persona Persona
	Client  ChatClient
	Tool    Tool
	Model   string
}

func (w *LLMWorker) Invoke(ctx context.Context, q Query) (string, error) {
	if w.Client == nil {
		return "", fmt.Errorf("%s worker has no chat client", w.Kind)
	}
	user := q.Text()
	if w.Tool != nil {
		out, err := w.Tool(ctx, q.Input)
		if err != nil {
			return "", fmt.Errorf("%s tool: %w", w.Kind, err)
		}
		user += "\n\nTool result:\n" + out
	}

	slog.DebugContext(ctx, "Invoking worker", "worker", string(w.Kind), "model", w.Model)
	resp, err := w.Client.Chat(ctx, ChatRequest{
		Model: w.Model,
		Messages: []Message{
			{Role: "system", Content: w.Persona.system()},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s worker: %w", w.Kind, err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// RegistryOptions tunes NewDefaultRegistry.
type RegistryOptions struct {
	Model   string
	Catalog []CatalogProduct
}

// NewDefaultRegistry binds all six worker kinds to client.
func NewDefaultRegistry(client ChatClient, opts RegistryOptions) *Registry {
	catalog := opts.Catalog
	if len(catalog) == 0 {
		catalog = DefaultCatalog
	}
	tools := map[Kind]Tool{
		KindExtraction: documentTool,
		KindRisk:       ratioTool,
		KindMatching:   catalogTool(catalog),
	}
	reg := NewRegistry()
	for _, kind := range AllKinds {
		reg.Register(kind, &LLMWorker{
			Kind:    kind,
			Persona: PersonaFor(kind),
			Client:  client,
			Tool:    tools[kind],
			Model:   opts.Model,
		})
	}
	return reg
}
