package usecases

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/abelzeko/kommunekamp/internal/entities"
	"github.com/abelzeko/kommunekamp/internal/integration"
	"github.com/abelzeko/kommunekamp/internal/integration/openai"
	"github.com/abelzeko/kommunekamp/internal/repository"
	"github.com/abelzeko/kommunekamp/internal/scoring"
	"github.com/abelzeko/kommunekamp/internal/telemetry"
)

// ErrReportsDisabled is returned when no report service is configured
var ErrReportsDisabled = errors.New("report service not configured")

// ReportGenerator renders a report for a scored pair
type ReportGenerator interface {
	Generate(ctx context.Context, komm1, komm2 *entities.Komm) (*integration.Document, error)
}

// Comparison is a scored pair of municipalities
type Comparison struct {
	Komm1  *entities.Komm
	Komm2  *entities.Komm
	Result scoring.Result
}

// WinnerName returns the display name of the winner, or empty on a tie
func (c *Comparison) WinnerName() string {
	switch c.Result.Winner {
	case scoring.WinnerKomm1:
		return displayName(c.Komm1)
	case scoring.WinnerKomm2:
		return displayName(c.Komm2)
	default:
		return ""
	}
}

// ComparisonDeps are the collaborators of a ComparisonUseCase. Only Builder and
// Engine are required.
type ComparisonDeps struct {
	Builder     EntityBuilder
	Engine      *scoring.Engine
	Weights     []entities.AttributeWeight
	Reports     ReportGenerator
	History     repository.ComparisonRepository
	Interpreter openai.Interpreter
	Metrics     *telemetry.Metrics
}

// ComparisonUseCase handles business logic related to municipality comparisons
type ComparisonUseCase struct {
	builder     EntityBuilder
	engine      *scoring.Engine
	weights     []entities.AttributeWeight
	reports     ReportGenerator
	history     repository.ComparisonRepository
	interpreter openai.Interpreter
	metrics     *telemetry.Metrics
}

// NewComparisonUseCase creates a new comparison use case
func NewComparisonUseCase(deps ComparisonDeps) (*ComparisonUseCase, error) {
	if deps.Builder == nil {
		return nil, errors.New("entity builder is required")
	}
	if deps.Engine == nil {
		return nil, errors.New("scoring engine is required")
	}
	weights := deps.Weights
	if len(weights) == 0 {
		weights = entities.DefaultWeights()
	}
	if err := entities.ValidateWeights(weights); err != nil {
		return nil, err
	}
	history := deps.History
	if history == nil {
		history = repository.NoopComparisonRepository{}
	}

	return &ComparisonUseCase{
		builder:     deps.Builder,
		engine:      deps.Engine,
		weights:     weights,
		reports:     deps.Reports,
		history:     history,
		interpreter: deps.Interpreter,
		metrics:     deps.Metrics,
	}, nil
}

// Compare builds both municipalities, scores them and flags the winner
func (uc *ComparisonUseCase) Compare(ctx context.Context, id1, id2 string) (*Comparison, error) {
	log.Info().Str("komm1", id1).Str("komm2", id2).Msg("Comparing municipalities")

	cmp, err := uc.compare(ctx, id1, id2)
	if err != nil {
		uc.metrics.CountComparison("error")
		return nil, err
	}
	uc.metrics.CountComparison(cmp.Result.Winner.String())

	rec := &entities.ComparisonRecord{
		Komm1:     cmp.Komm1.ID,
		Komm1Name: cmp.Komm1.Name,
		Komm2:     cmp.Komm2.ID,
		Komm2Name: cmp.Komm2.Name,
		Score1:    cmp.Result.Score1,
		Score2:    cmp.Result.Score2,
		CreatedAt: time.Now(),
	}
	switch cmp.Result.Winner {
	case scoring.WinnerKomm1:
		rec.Winner = cmp.Komm1.ID
	case scoring.WinnerKomm2:
		rec.Winner = cmp.Komm2.ID
	}
	if err := uc.history.SaveComparison(ctx, rec); err != nil {
		log.Warn().Err(err).Str("komm1", id1).Str("komm2", id2).Msg("Failed to record comparison")
	}

	log.Info().
		Str("komm1", cmp.Komm1.ID).
		Str("komm2", cmp.Komm2.ID).
		Float64("score1", cmp.Result.Score1).
		Float64("score2", cmp.Result.Score2).
		Str("winner", cmp.Result.Winner.String()).
		Msg("Comparison finished")
	return cmp, nil
}

func (uc *ComparisonUseCase) compare(ctx context.Context, id1, id2 string) (*Comparison, error) {
	k1, err := uc.builder.Build(ctx, id1)
	if err != nil {
		return nil, fmt.Errorf("komm1: %w", err)
	}
	k2, err := uc.builder.Build(ctx, id2)
	if err != nil {
		return nil, fmt.Errorf("komm2: %w", err)
	}

	result, err := uc.engine.Compare(k1, k2, uc.weights)
	if err != nil {
		return nil, fmt.Errorf("failed to score %s vs %s: %w", k1.ID, k2.ID, err)
	}
	return &Comparison{Komm1: k1, Komm2: k2, Result: result}, nil
}

// Report compares the pair and renders the result through the report service
func (uc *ComparisonUseCase) Report(ctx context.Context, id1, id2 string) (*integration.Document, error) {
	if uc.reports == nil {
		return nil, ErrReportsDisabled
	}
	cmp, err := uc.Compare(ctx, id1, id2)
	if err != nil {
		return nil, err
	}
	return uc.reports.Generate(ctx, cmp.Komm1, cmp.Komm2)
}

// RecentComparisons returns the newest entries of the comparison log
func (uc *ComparisonUseCase) RecentComparisons(ctx context.Context, limit int) ([]entities.ComparisonRecord, error) {
	recs, err := uc.history.RecentComparisons(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read comparison history: %w", err)
	}
	if recs == nil {
		recs = []entities.ComparisonRecord{}
	}
	return recs, nil
}

// Weights returns the attribute weights used for scoring
func (uc *ComparisonUseCase) Weights() []entities.AttributeWeight {
	out := make([]entities.AttributeWeight, len(uc.weights))
	copy(out, uc.weights)
	return out
}

// Reply is a chat answer, optionally carrying a rendered report
type Reply struct {
	Text     string
	Document *integration.Document
}

// HandleNaturalLanguageQuery interprets a user's free-text message using the AI service
// and returns an appropriate reply.
func (uc *ComparisonUseCase) HandleNaturalLanguageQuery(ctx context.Context, query string) *Reply {
	if uc.interpreter == nil {
		return &Reply{Text: HelpText}
	}

	log.Info().Str("query", query).Msg("Interpreting natural language query")
	agentResp, err := uc.interpreter.InterpretCompareQuery(ctx, query)
	if err != nil {
		log.Error().Err(err).Msg("Error interpreting user query via OpenAI")
		return &Reply{Text: "Sorry, I'm having trouble understanding right now. Please try again later or use /help."}
	}

	log.Info().
		Str("command", agentResp.CommandName).
		Str("komm1", agentResp.Komm1).
		Str("komm2", agentResp.Komm2).
		Msg("Agent response")

	switch agentResp.CommandName {
	case openai.CommandCompare, openai.CommandReport:
		if agentResp.Komm1 == "" || agentResp.Komm2 == "" {
			// intent understood, but the agent could not name both municipalities
			return &Reply{Text: agentResp.UserMessage}
		}
		prefix := agentResp.UserMessage
		if prefix != "" {
			prefix += "\n\n"
		}
		if agentResp.CommandName == openai.CommandReport {
			doc, err := uc.Report(ctx, agentResp.Komm1, agentResp.Komm2)
			if err != nil {
				return &Reply{Text: prefix + UserError(err)}
			}
			return &Reply{Text: agentResp.UserMessage, Document: doc}
		}
		cmp, err := uc.Compare(ctx, agentResp.Komm1, agentResp.Komm2)
		if err != nil {
			return &Reply{Text: prefix + UserError(err)}
		}
		return &Reply{Text: prefix + FormatComparison(cmp)}
	case openai.CommandGeneralQuery:
		return &Reply{Text: agentResp.UserMessage}
	default:
		log.Warn().Str("command", agentResp.CommandName).Msg("Agent returned unexpected command")
		return &Reply{Text: "I'm not sure how to respond to that. You can use /help for commands."}
	}
}

// HelpText lists the chat commands
const HelpText = `Available commands:
/compare <komm1> <komm2> - Compare two municipalities by number, e.g. /compare 0301 4601
/report <komm1> <komm2> - Get the comparison as a PDF report
/help - Show this help message`

// UserError turns a comparison error into a message fit for end users
func UserError(err error) string {
	switch {
	case errors.Is(err, entities.ErrInvalidKommID):
		return "That does not look like a municipality number. Use four digits, e.g. 0301."
	case errors.Is(err, entities.ErrKommNotFound):
		return "I could not find that municipality. Check the number and try again."
	case errors.Is(err, ErrReportsDisabled):
		return "Reports are not available right now."
	case errors.Is(err, integration.ErrReportFailed):
		return "The report service failed to render the report. Please try again later."
	default:
		return "Sorry, I couldn't complete the comparison right now."
	}
}

// FormatComparison formats a comparison for display in a text message
func FormatComparison(cmp *Comparison) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s vs %s\n\n", displayName(cmp.Komm1), displayName(cmp.Komm2))

	names := attributeUnion(cmp.Komm1, cmp.Komm2)
	for _, name := range names {
		fmt.Fprintf(&sb, "%s: %s vs %s\n", name, formatMetric(cmp.Komm1, name), formatMetric(cmp.Komm2, name))
	}

	fmt.Fprintf(&sb, "\nScore: %.3f vs %.3f\n", cmp.Result.Score1, cmp.Result.Score2)
	if winner := cmp.WinnerName(); winner != "" {
		fmt.Fprintf(&sb, "Winner: %s", winner)
	} else {
		sb.WriteString("It's a tie")
	}
	return sb.String()
}

func displayName(k *entities.Komm) string {
	if k.Name == "" {
		return k.ID
	}
	return fmt.Sprintf("%s (%s)", k.Name, k.ID)
}

func formatMetric(k *entities.Komm, name string) string {
	m, ok := k.Attributes[name]
	if !ok || !m.Available {
		return "n/a"
	}
	return fmt.Sprintf("%g", m.Value)
}

func attributeUnion(k1, k2 *entities.Komm) []string {
	seen := make(map[string]bool)
	var names []string
	for _, k := range []*entities.Komm{k1, k2} {
		for _, name := range k.AttributeNames() {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}
