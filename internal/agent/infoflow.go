package agent

import (
	"context"
	"fmt"
	"log/slog"

	"flowmind/internal/compose"
	"flowmind/internal/domain"
	"flowmind/internal/intent"
)

type infoStyle struct {
	emoji, label, offer, prompt string
}

var infoStyles = map[domain.InfoAction]infoStyle{
	domain.InfoExplanation: {"💡", "InfoFlow Explanation", "explain that for you", `You are InfoFlow, a knowledgeable assistant specializing in clear, comprehensive explanations.
Structure your response with:
1. A clear, concise definition
2. Key concepts or components
3. Real-world examples or applications
4. Why it matters or its significance
Keep explanations informative but not overwhelming.`},
	domain.InfoSummarization: {"📋", "InfoFlow Summary", "summarize that for you", `You are InfoFlow, an expert at creating concise, informative summaries.
1. Extract the most important points
2. Organize information logically
3. Use bullet points or numbered lists when appropriate
4. Maintain accuracy while being concise
5. Highlight key takeaways
If the user hasn't provided specific content to summarize, ask for clarification.`},
	domain.InfoDefinition: {"📖", "InfoFlow Definition", "define that for you", `You are InfoFlow, a precise and helpful assistant for definitions.
1. Give a clear, accurate definition
2. Provide context about when and where the term is used
3. Give 1-2 simple examples
4. Mention related terms if relevant`},
	domain.InfoHowTo: {"🛠️", "InfoFlow Guide", "guide you through that process", `You are InfoFlow, a helpful guide for step-by-step instructions.
1. Break down the process into clear, numbered steps
2. Include any prerequisites or materials needed
3. Provide tips or warnings where appropriate
4. End with next steps or related actions`},
	domain.InfoComparison: {"⚖️", "InfoFlow Comparison", "compare those options for you", `You are InfoFlow, an analytical assistant specializing in comparisons.
1. Create a clear structure (table, side-by-side, or categorized)
2. Compare key attributes or criteria
3. Highlight main similarities and differences
4. Explain when each option might be better
Be objective and help users make informed decisions.`},
	domain.InfoAnalysis: {"🔍", "InfoFlow Analysis", "analyze that for you", `You are InfoFlow, an analytical assistant providing thorough analysis.
1. Break down the subject into key components
2. Examine pros and cons objectively
3. Consider different perspectives or stakeholders
4. Provide actionable insights or recommendations`},
	domain.InfoGeneral: {"🧠", "InfoFlow", "help with that", `You are InfoFlow, a knowledgeable and helpful information assistant.
Be informative and accurate, structure your response clearly and admit if you're unsure about something.`},
}

type InfoFlowConfig struct {
	Completer  domain.Completer
	Classifier *intent.Classifier
	Logger     *slog.Logger
}

// InfoFlow answers informational questions through the model.
type InfoFlow struct {
	completer  domain.Completer
	classifier *intent.Classifier
	logger     *slog.Logger
}

func NewInfoFlow(cfg InfoFlowConfig) *InfoFlow {
	if cfg.Classifier == nil {
		cfg.Classifier = intent.NewClassifier()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &InfoFlow{
		completer:  cfg.Completer,
		classifier: cfg.Classifier,
		logger:     cfg.Logger.With("component", AgentInfoFlow),
	}
}

func (f *InfoFlow) Name() string                { return AgentInfoFlow }
func (f *InfoFlow) Domain() domain.IntentDomain { return domain.DomainInfo }

func (f *InfoFlow) Handle(ctx context.Context, _ string, text string) (Result, error) {
	in, ok := f.classifier.Classify(text, domain.DomainInfo).(domain.InfoIntent)
	if !ok {
		return Result{}, fmt.Errorf("info classifier returned unexpected intent: %w", domain.ErrInvalidInput)
	}
	style, ok := infoStyles[in.Action]
	if !ok {
		style = infoStyles[domain.InfoGeneral]
	}

	if f.completer == nil {
		return Result{Text: f.unavailable(style, domain.ErrProviderUnavailable), Intent: in}, nil
	}
	reply, err := f.completer.Complete(ctx, []domain.Message{{Role: "user", Content: in.Query}}, style.prompt)
	if err != nil {
		f.logger.Warn("info completion failed", "action", in.Action, "error", err)
		return Result{Text: f.unavailable(style, err), Intent: in}, nil
	}
	return Result{Text: compose.Labeled(style.emoji, style.label, reply), Intent: in}, nil
}

func (f *InfoFlow) unavailable(style infoStyle, err error) string {
	return fmt.Sprintf("%s I'd be happy to %s, but I'm experiencing some technical difficulties. Error: %v", style.emoji, style.offer, err)
}
