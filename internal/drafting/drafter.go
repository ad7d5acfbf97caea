// Package drafting composes prospectus sections from retrieved passages.
package drafting

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"prospectus/internal/index"
	"prospectus/internal/provider"
	"prospectus/internal/section"
)

// Drafter turns a section request plus evidence into section text.
type Drafter struct {
	chat         provider.Chatter
	providerName string
	rawLog       *RawLog
	maxContext   int
	temperature  float32
}

type Option func(*Drafter)

func WithRawLog(l *RawLog) Option {
	return func(d *Drafter) { d.rawLog = l }
}

func WithMaxContextChars(n int) Option {
	return func(d *Drafter) {
		if n > 0 {
			d.maxContext = n
		}
	}
}

func WithTemperature(t float32) Option {
	return func(d *Drafter) { d.temperature = t }
}

func New(chat provider.Chatter, providerName string, opts ...Option) *Drafter {
	d := &Drafter{
		chat:         chat,
		providerName: providerName,
		maxContext:   DefaultMaxContextChars,
		temperature:  DefaultTemperature,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Draft writes one section at the configured temperature.
func (d *Drafter) Draft(ctx context.Context, title, requirements string, chunks []index.Chunk) (string, error) {
	return d.DraftWithTemperature(ctx, title, requirements, chunks, d.temperature)
}

// DraftWithTemperature writes one section. Without evidence it returns the
// insufficient-evidence placeholder and never calls the model.
func (d *Drafter) DraftWithTemperature(ctx context.Context, title, requirements string, chunks []index.Chunk, temperature float32) (string, error) {
	contextBlock := BuildContext(chunks, d.maxContext)
	if contextBlock == "" {
		slog.InfoContext(ctx, "no evidence for section, using placeholder", "section", title, "chunks", len(chunks))
		return InsufficientEvidence(title), nil
	}
	if strings.TrimSpace(requirements) == "" {
		requirements = section.DefaultRequirementText(title)
	}

	raw, err := d.chat.Complete(ctx, systemPrompt(title), userPrompt(title, requirements, contextBlock), temperature)
	if err != nil {
		return "", fmt.Errorf("draft %q: %w", title, err)
	}

	if d.rawLog != nil {
		if path, err := d.rawLog.Save(title, d.providerName, raw); err != nil {
			slog.WarnContext(ctx, "failed to save raw model output", "section", title, "error", err)
		} else {
			slog.DebugContext(ctx, "raw model output saved", "section", title, "path", path)
		}
	}

	body := Sanitize(ExtractBody(raw))
	if strings.TrimSpace(body) == "" {
		slog.WarnContext(ctx, "model output had no usable content", "section", title, "raw_length", len(raw))
		return NoUsableContent(title), nil
	}
	return body, nil
}
