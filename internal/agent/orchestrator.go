package agent

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"flowmind/internal/bus"
	"flowmind/internal/compose"
	"flowmind/internal/domain"
	"flowmind/internal/intent"
	"flowmind/internal/metrics"
)

// Stage is a step of one request's lifecycle.
type Stage string

const (
	StageReceived   Stage = "received"
	StageClassified Stage = "classified"
	StageDispatched Stage = "dispatched"
	StageComposed   Stage = "composed"
	StageDone       Stage = "done"
)

// Reply is the outcome of one user turn. It always carries text; failures
// are folded into an apology.
type Reply struct {
	Text   string
	Agent  string
	Intent domain.Intent
	Stages []Stage
	Err    error
}

type OrchestratorConfig struct {
	Classifier  *intent.Classifier
	Router      *intent.Router
	MindFlow    *MindFlow
	Specialists []Specialist
	Store       domain.Store  // conversation log; optional
	Events      *bus.EventBus // optional
	Now         func() time.Time
	Logger      *slog.Logger
}

// Orchestrator runs the one-hop routing graph: mindflow answers its own
// intents, everything else goes to the specialist the router picks.
type Orchestrator struct {
	classifier  *intent.Classifier
	router      *intent.Router
	mindflow    *MindFlow
	specialists map[domain.IntentDomain]Specialist
	store       domain.Store
	events      *bus.EventBus
	now         func() time.Time
	logger      *slog.Logger
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Classifier == nil {
		cfg.Classifier = intent.NewClassifier()
	}
	if cfg.Router == nil {
		cfg.Router = intent.NewRouter(nil, cfg.Logger)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	specialists := make(map[domain.IntentDomain]Specialist, len(cfg.Specialists))
	for _, s := range cfg.Specialists {
		specialists[s.Domain()] = s
	}
	return &Orchestrator{
		classifier:  cfg.Classifier,
		router:      cfg.Router,
		mindflow:    cfg.MindFlow,
		specialists: specialists,
		store:       cfg.Store,
		events:      cfg.Events,
		now:         cfg.Now,
		logger:      cfg.Logger.With("component", "orchestrator"),
	}
}

// Handle processes one user message for owner. It never fails: handler
// errors and panics become apology text on the returned Reply.
func (o *Orchestrator) Handle(ctx context.Context, owner, text string) Reply {
	start := time.Now()
	metrics.MessagesTotal.Inc()
	metrics.InFlight.Inc()
	defer metrics.InFlight.Dec()

	reply := Reply{Stages: []Stage{StageReceived}}
	o.record(ctx, owner, domain.SenderUser, "", text)

	if err := o.dispatch(ctx, owner, text, &reply); err != nil {
		o.logger.Error("request failed", "owner", owner, "agent", reply.Agent, "error", err)
		metrics.ReplyErrors.Inc()
		reply.Err = err
		reply.Text = compose.Apology("process your request", err)
		if reply.Agent == "" {
			reply.Agent = AgentMindFlow
		}
	}
	reply.Stages = append(reply.Stages, StageComposed)

	o.record(ctx, owner, domain.SenderAgent, reply.Agent, reply.Text)
	reply.Stages = append(reply.Stages, StageDone)

	metrics.Dispatches(reply.Agent).Inc()
	metrics.ReplyLatency.ObserveSince(start)
	o.events.Emit(bus.Event{
		Type:   bus.EventMessageHandled,
		Source: "orchestrator",
		Payload: map[string]any{
			"owner":  owner,
			"agent":  reply.Agent,
			"intent": intentTag(reply.Intent),
			"failed": reply.Err != nil,
		},
	})
	o.logger.Debug("request done", "owner", owner, "agent", reply.Agent, "duration", time.Since(start))
	return reply
}

func (o *Orchestrator) dispatch(ctx context.Context, owner, text string, reply *Reply) (err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("handler panic", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	in, _ := o.classifier.Classify(text, domain.DomainOrchestration).(domain.OrchestrationIntent)
	reply.Intent = in
	reply.Stages = append(reply.Stages, StageClassified)

	if in.Action != domain.OrchestrationRoute && o.mindflow != nil {
		reply.Agent = AgentMindFlow
		reply.Stages = append(reply.Stages, StageDispatched)
		reply.Text = o.mindflow.Handle(ctx, owner, in)
		return nil
	}

	// The routing notice only matches custom routes; the defaults fall
	// through to the user text.
	target, ok := o.router.Route(compose.RoutingNotice)
	if !ok {
		target, ok = o.router.Route(text)
	}
	specialist, found := o.specialists[target]
	if !ok || !found {
		reply.Agent = AgentMindFlow
		reply.Text = compose.Help
		return nil
	}

	reply.Agent = specialist.Name()
	reply.Stages = append(reply.Stages, StageDispatched)
	o.logger.Debug("routed", "owner", owner, "agent", reply.Agent)

	res, err := specialist.Handle(ctx, owner, text)
	if err != nil {
		return fmt.Errorf("%s: %w", specialist.Name(), err)
	}
	reply.Text = res.Text
	reply.Intent = res.Intent
	return nil
}

// record appends to the conversation log. Failures are logged only.
func (o *Orchestrator) record(ctx context.Context, owner string, sender domain.Sender, agentName, content string) {
	if o.store == nil || owner == "" {
		return
	}
	msg := domain.ConversationMessage{
		Owner:     owner,
		Content:   content,
		Sender:    sender,
		Agent:     agentName,
		Timestamp: o.now(),
	}
	if err := o.store.AppendMessage(ctx, msg); err != nil {
		o.logger.Warn("conversation log append failed", "owner", owner, "error", err)
	}
}

func intentTag(in domain.Intent) string {
	if in == nil {
		return ""
	}
	return string(in.Domain()) + "." + in.Tag()
}
