// Package orchestrator handles one chat turn: it records the user message,
// routes the turn to a generation capability, and records the reply.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/meikuraledutech/chat"
	"github.com/meikuraledutech/chat/history"
)

const (
	imageSuffix       = " [Image Attached]"
	contextHeader     = "\n\nContext from uploaded files:\n"
	defaultExtractors = 4
)

// Turn is one incoming user message.
type Turn struct {
	SessionID    string
	Text         string
	Image        string
	ContextFiles []string
}

// Result is the outcome of a turn. When Failed is true the backend failed,
// Err holds the cause and Reply holds the error text stored in history.
type Result struct {
	Reply        string
	Capability   chat.Capability
	Model        string
	Failed       bool
	Err          error
	UserMessage  *chat.Message
	ModelMessage *chat.Message
}

// Backends groups the collaborators a turn may call. Sink may be nil.
type Backends struct {
	Text      chat.TextGenerator
	Vision    chat.VisionAnalyzer
	Images    chat.ImageGenerator
	Extractor chat.Extractor
	Sink      chat.InteractionSink
}

// Options tunes the orchestrator.
type Options struct {
	// PublicBaseURL prefixes generated image links, e.g. http://localhost:8000.
	PublicBaseURL string
	// Timeout bounds a single backend call. Zero means no limit.
	Timeout time.Duration
	// ExtractConcurrency caps parallel document extraction.
	ExtractConcurrency int
	// Rules overrides DefaultRules.
	Rules []Rule
}

type Orchestrator struct {
	history  *history.Manager
	backends Backends
	opts     Options
	logger   *zap.Logger
}

func New(h *history.Manager, backends Backends, opts Options, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if backends.Sink == nil {
		backends.Sink = chat.NopSink{}
	}
	if opts.Rules == nil {
		opts.Rules = DefaultRules()
	}
	if opts.ExtractConcurrency <= 0 {
		opts.ExtractConcurrency = defaultExtractors
	}
	return &Orchestrator{history: h, backends: backends, opts: opts, logger: logger}
}

// HandleTurn runs one turn. The user message is stored before generation.
// Backend failures are reported in the Result and stored as the reply; only
// store and validation failures are returned as errors.
func (o *Orchestrator) HandleTurn(ctx context.Context, t Turn) (*Result, error) {
	userMsg, err := o.history.AppendMessage(ctx, t.SessionID, chat.RoleUser, DisplayText(t), chat.TypeText)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Capability:  Route(o.opts.Rules, t),
		UserMessage: userMsg,
	}

	log := o.logger.With(
		zap.String("session_id", t.SessionID),
		zap.String("capability", string(res.Capability)),
	)

	prompt := t.Text
	if res.Capability != chat.CapabilityImage {
		prompt = EffectivePrompt(t.Text, o.contextBlock(ctx, t.ContextFiles))
	}

	start := time.Now()
	o.generate(ctx, res, prompt, t.Image)
	log.Info("turn generated",
		zap.String("model", res.Model),
		zap.Bool("failed", res.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	if res.Failed {
		log.Warn("generation failed", zap.Error(res.Err))
	} else {
		o.record(ctx, log, t, res, prompt)
	}

	modelMsg, err := o.history.AppendMessage(ctx, t.SessionID, chat.RoleModel, res.Reply, chat.TypeText)
	if err != nil {
		return nil, err
	}
	res.ModelMessage = modelMsg

	return res, nil
}

func (o *Orchestrator) generate(ctx context.Context, res *Result, prompt, image string) {
	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	switch res.Capability {
	case chat.CapabilityImage:
		img, err := o.generateImage(ctx, prompt)
		if err != nil {
			res.fail("Error generating image", err)
			return
		}
		res.Model = img.Model
		res.Reply = o.imageMarkdown(img.Path)

	case chat.CapabilityVision:
		out, err := o.analyze(ctx, prompt, image)
		if err != nil {
			res.fail("Error analyzing image", err)
			return
		}
		res.Model = out.Model
		res.Reply = out.Content

	default:
		out, err := o.generateText(ctx, prompt, res.Capability.TextKind())
		if err != nil {
			res.fail("Error generating response", err)
			return
		}
		res.Model = out.Model
		res.Reply = out.Content
	}
}

func (o *Orchestrator) generateText(ctx context.Context, prompt string, kind chat.TextKind) (*chat.Result, error) {
	if o.backends.Text == nil {
		return nil, errors.New("no text backend configured")
	}
	return o.backends.Text.Generate(ctx, prompt, kind)
}

func (o *Orchestrator) analyze(ctx context.Context, prompt, image string) (*chat.Result, error) {
	if o.backends.Vision == nil {
		return nil, errors.New("no vision backend configured")
	}
	return o.backends.Vision.Analyze(ctx, prompt, image)
}

func (o *Orchestrator) generateImage(ctx context.Context, prompt string) (*chat.Image, error) {
	if o.backends.Images == nil {
		return nil, errors.New("no image backend configured")
	}
	return o.backends.Images.GenerateImage(ctx, prompt)
}

// replySentinels are kept in Result.Err but left out of the reply text.
var replySentinels = []error{chat.ErrProviderFailed, chat.ErrMissingAPIKey, chat.ErrEmptyPrompt}

func (r *Result) fail(prefix string, err error) {
	r.Failed = true
	r.Err = err
	r.Reply = prefix + ": " + replyText(err)
}

// replyText is err's message without the package sentinel text.
func replyText(err error) string {
	msg := err.Error()
	for _, s := range replySentinels {
		msg = strings.ReplaceAll(msg, s.Error()+": ", "")
		msg = strings.ReplaceAll(msg, s.Error(), strings.TrimPrefix(s.Error(), "chat: "))
	}
	return strings.TrimPrefix(msg, "chat: ")
}

func (o *Orchestrator) imageMarkdown(path string) string {
	base := strings.TrimRight(o.opts.PublicBaseURL, "/")
	return fmt.Sprintf("![Generated Image](%s/images/%s)", base, url.PathEscape(filepath.Base(path)))
}

func (o *Orchestrator) record(ctx context.Context, log *zap.Logger, t Turn, res *Result, prompt string) {
	err := o.backends.Sink.Record(ctx, chat.Interaction{
		Timestamp:  time.Now().UTC(),
		SessionID:  t.SessionID,
		Capability: res.Capability,
		Model:      res.Model,
		Prompt:     prompt,
		Response:   res.Reply,
		HasImage:   res.Capability == chat.CapabilityVision,
	})
	if err != nil {
		log.Warn("record interaction", zap.Error(err))
	}
}

// contextBlock extracts every context file that exists on disk, in parallel,
// and joins the results in the order the files were given.
func (o *Orchestrator) contextBlock(ctx context.Context, files []string) string {
	if len(files) == 0 || o.backends.Extractor == nil {
		return ""
	}

	parts := make([]string, len(files))

	var g errgroup.Group
	g.SetLimit(o.opts.ExtractConcurrency)
	for i, path := range files {
		g.Go(func() error {
			if ctx.Err() != nil || !fileExists(path) {
				return nil
			}
			parts[i] = fmt.Sprintf("\n--- Content of %s ---\n%s\n", filepath.Base(path), o.backends.Extractor.Extract(path))
			return nil
		})
	}
	_ = g.Wait()

	return strings.Join(parts, "")
}

// DisplayText is the user message as stored in history: the raw text plus
// markers for an attached image and context files.
func DisplayText(t Turn) string {
	var b strings.Builder
	b.WriteString(t.Text)
	if t.Image != "" {
		b.WriteString(imageSuffix)
	}
	if n := len(t.ContextFiles); n > 0 {
		fmt.Fprintf(&b, " [%d Files Attached]", n)
	}
	return b.String()
}

// EffectivePrompt is the text sent to a generation backend.
func EffectivePrompt(text, block string) string {
	if block == "" {
		return text
	}
	return text + contextHeader + block
}
