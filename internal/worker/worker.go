package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aescanero/dago-libs/pkg/domain/state"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aescanero/dago-node-compilex/internal/config"
	"github.com/aescanero/dago-node-compilex/internal/render"
	"github.com/aescanero/dago-node-compilex/internal/store"
)

// Worker consumes render and store jobs from a Redis stream
type Worker struct {
	id            string
	config        *config.Config
	redisClient   *redis.Client
	renderer      *render.Service
	templates     store.TemplateStore
	states        store.StateStore
	logger        *zap.Logger
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	streamKey     string
	consumerGroup string
	resultStream  string
}

// NewWorker creates a new worker. templates and states may be nil, in which
// case jobs must carry the template text and attributes inline.
func NewWorker(
	cfg *config.Config,
	redisClient *redis.Client,
	renderer *render.Service,
	templates store.TemplateStore,
	states store.StateStore,
	logger *zap.Logger,
) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		id:            cfg.WorkerID,
		config:        cfg,
		redisClient:   redisClient,
		renderer:      renderer,
		templates:     templates,
		states:        states,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
		streamKey:     cfg.StreamKey,
		consumerGroup: cfg.ConsumerGroup,
		resultStream:  cfg.ResultStream,
	}
}

// Start starts the worker
func (w *Worker) Start() error {
	w.logger.Info("starting render worker",
		zap.String("worker_id", w.id),
		zap.String("stream_key", w.streamKey),
		zap.String("consumer_group", w.consumerGroup),
	)

	if err := w.ensureConsumerGroup(); err != nil {
		return fmt.Errorf("failed to ensure consumer group: %w", err)
	}

	w.wg.Add(1)
	go w.processWork()

	w.logger.Info("render worker started", zap.String("worker_id", w.id))
	return nil
}

// Stop stops the worker and waits for the in-flight job
func (w *Worker) Stop() error {
	w.logger.Info("stopping render worker", zap.String("worker_id", w.id))

	w.cancel()
	w.wg.Wait()

	w.logger.Info("render worker stopped", zap.String("worker_id", w.id))
	return nil
}

// ensureConsumerGroup creates the consumer group if it doesn't exist
func (w *Worker) ensureConsumerGroup() error {
	err := w.redisClient.XGroupCreateMkStream(w.ctx, w.streamKey, w.consumerGroup, "0").Err()
	if err != nil {
		if strings.HasPrefix(err.Error(), "BUSYGROUP") {
			w.logger.Debug("consumer group already exists",
				zap.String("group", w.consumerGroup),
			)
			return nil
		}
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	w.logger.Info("created consumer group",
		zap.String("group", w.consumerGroup),
		zap.String("stream", w.streamKey),
	)
	return nil
}

// processWork reads render jobs until the worker is stopped
func (w *Worker) processWork() {
	defer w.wg.Done()
	w.logger.Info("starting work processing loop")

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Info("work processing loop stopped")
			return
		default:
		}

		streams, err := w.redisClient.XReadGroup(w.ctx, &redis.XReadGroupArgs{
			Group:    w.consumerGroup,
			Consumer: w.id,
			Streams:  []string{w.streamKey, ">"},
			Count:    1,
			Block:    w.config.BlockTime,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) || w.ctx.Err() != nil {
				continue
			}
			w.logger.Error("failed to read from stream", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				w.handleMessage(message)
			}
		}
	}
}

// handleMessage handles a single job message
func (w *Worker) handleMessage(message redis.XMessage) {
	messageID := message.ID
	w.logger.Info("processing request",
		zap.String("message_id", messageID),
	)

	request, err := parseRenderRequest(message.Values)
	if err != nil {
		w.logger.Error("failed to parse request",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
		w.acknowledgeMessage(messageID)
		return
	}

	result, err := w.processRequest(w.ctx, request)
	if err == nil {
		err = w.publish(w.ctx, w.resultStream, result)
	}
	if err != nil {
		w.logger.Error("failed to process request",
			zap.String("message_id", messageID),
			zap.String("kind", request.kind()),
			zap.String("execution_id", request.ExecutionID),
			zap.Error(err),
		)
		w.publishError(request, err)
	} else {
		w.logger.Info("published result",
			zap.String("kind", result.Kind),
			zap.String("execution_id", request.ExecutionID),
			zap.String("engine", string(result.Engine)),
			zap.Int("output_size", len(result.Output)),
		)
	}

	w.acknowledgeMessage(messageID)
}

// Job kinds accepted on the work stream
const (
	KindRender         = "render"
	KindTemplatePut    = "template_put"
	KindTemplateDelete = "template_delete"
	KindStatePut       = "state_put"
)

// RenderRequest is a job read from the work stream. Kind defaults to render.
type RenderRequest struct {
	Kind         string                 `json:"kind,omitempty"`
	ExecutionID  string                 `json:"execution_id"`
	NodeID       string                 `json:"node_id"`
	Engine       string                 `json:"engine,omitempty"`
	Template     string                 `json:"template,omitempty"`
	TemplateName string                 `json:"template_name,omitempty"`
	Attributes   map[string]interface{} `json:"attributes,omitempty"`
}

func (r *RenderRequest) kind() string {
	if r.Kind == "" {
		return KindRender
	}
	return r.Kind
}

// RenderResult is published to the result stream
type RenderResult struct {
	Kind         string        `json:"kind"`
	ExecutionID  string        `json:"execution_id,omitempty"`
	NodeID       string        `json:"node_id,omitempty"`
	TemplateName string        `json:"template_name,omitempty"`
	Engine       render.Engine `json:"engine,omitempty"`
	Output       string        `json:"output"`
	Timestamp    time.Time     `json:"timestamp"`
}

// parseRenderRequest parses a job from a Redis message
func parseRenderRequest(values map[string]interface{}) (*RenderRequest, error) {
	dataStr, ok := values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'data' field")
	}

	var request RenderRequest
	if err := json.Unmarshal([]byte(dataStr), &request); err != nil {
		return nil, fmt.Errorf("failed to unmarshal render request: %w", err)
	}

	switch request.kind() {
	case KindRender:
		if request.ExecutionID == "" {
			return nil, fmt.Errorf("execution_id is required")
		}
		if request.Template == "" && request.TemplateName == "" {
			return nil, fmt.Errorf("template or template_name is required")
		}
		if _, err := render.ParseEngine(request.Engine); err != nil {
			return nil, err
		}
	case KindTemplatePut:
		if request.TemplateName == "" || request.Template == "" {
			return nil, fmt.Errorf("template_name and template are required for %s", KindTemplatePut)
		}
	case KindTemplateDelete:
		if request.TemplateName == "" {
			return nil, fmt.Errorf("template_name is required for %s", KindTemplateDelete)
		}
	case KindStatePut:
		if request.ExecutionID == "" || request.Attributes == nil {
			return nil, fmt.Errorf("execution_id and attributes are required for %s", KindStatePut)
		}
	default:
		return nil, fmt.Errorf("unknown job kind %q", request.Kind)
	}

	return &request, nil
}

// processRequest dispatches a job by kind
func (w *Worker) processRequest(ctx context.Context, request *RenderRequest) (*RenderResult, error) {
	if request.kind() == KindRender {
		return w.processRenderRequest(ctx, request)
	}

	result := &RenderResult{
		Kind:         request.kind(),
		ExecutionID:  request.ExecutionID,
		NodeID:       request.NodeID,
		TemplateName: request.TemplateName,
	}

	switch request.kind() {
	case KindTemplatePut:
		if w.templates == nil {
			return nil, fmt.Errorf("template store not configured for %s", KindTemplatePut)
		}
		if err := w.templates.Put(ctx, request.TemplateName, request.Template); err != nil {
			return nil, fmt.Errorf("failed to store template %q: %w", request.TemplateName, err)
		}
	case KindTemplateDelete:
		if w.templates == nil {
			return nil, fmt.Errorf("template store not configured for %s", KindTemplateDelete)
		}
		if err := w.templates.Delete(ctx, request.TemplateName); err != nil {
			return nil, fmt.Errorf("failed to delete template %q: %w", request.TemplateName, err)
		}
	case KindStatePut:
		if w.states == nil {
			return nil, fmt.Errorf("state store not configured for %s", KindStatePut)
		}
		if err := w.states.Save(ctx, request.ExecutionID, state.State(request.Attributes)); err != nil {
			return nil, fmt.Errorf("failed to save state: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown job kind %q", request.Kind)
	}

	result.Timestamp = time.Now().UTC()
	return result, nil
}

// processRenderRequest resolves the template and attributes of a request and
// renders it
func (w *Worker) processRenderRequest(ctx context.Context, request *RenderRequest) (*RenderResult, error) {
	template, err := w.resolveTemplate(ctx, request)
	if err != nil {
		return nil, err
	}

	attrs, err := w.resolveAttributes(ctx, request)
	if err != nil {
		return nil, err
	}

	// An empty engine lets the service apply its configured default
	var engine render.Engine
	if request.Engine != "" {
		if engine, err = render.ParseEngine(request.Engine); err != nil {
			return nil, err
		}
	}

	result, err := w.renderer.Render(ctx, &render.Request{
		Engine:     engine,
		Template:   template,
		Attributes: attrs,
	})
	if err != nil {
		return nil, fmt.Errorf("render failed: %w", err)
	}

	return &RenderResult{
		Kind:        KindRender,
		ExecutionID: request.ExecutionID,
		NodeID:      request.NodeID,
		Engine:      result.Engine,
		Output:      result.Output,
		Timestamp:   time.Now().UTC(),
	}, nil
}

// resolveTemplate returns the inline template or loads it by name
func (w *Worker) resolveTemplate(ctx context.Context, request *RenderRequest) (string, error) {
	if request.Template != "" {
		return request.Template, nil
	}
	if w.templates == nil {
		return "", fmt.Errorf("template store not configured for template %q", request.TemplateName)
	}

	template, err := w.templates.Get(ctx, request.TemplateName)
	if err != nil {
		return "", fmt.Errorf("failed to load template: %w", err)
	}
	return template, nil
}

// resolveAttributes returns the inline attributes or loads them from the
// state store by execution id
func (w *Worker) resolveAttributes(ctx context.Context, request *RenderRequest) (map[string]interface{}, error) {
	if request.Attributes != nil {
		return request.Attributes, nil
	}
	if w.states == nil {
		return map[string]interface{}{}, nil
	}

	st, err := w.states.Load(ctx, request.ExecutionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	return map[string]interface{}(st), nil
}

// publish appends payload to stream, retrying up to MaxRetries times
func (w *Worker) publish(ctx context.Context, stream string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}

		lastErr = w.redisClient.XAdd(ctx, &redis.XAddArgs{
			Stream: stream,
			Values: map[string]interface{}{
				"data": string(data),
			},
		}).Err()
		if lastErr == nil {
			return nil
		}

		w.logger.Warn("failed to publish to stream",
			zap.String("stream", stream),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
	}

	return fmt.Errorf("failed to publish to stream: %w", lastErr)
}

// backoff returns the delay before a publish retry
func backoff(attempt int) time.Duration {
	const maxDelay = 2 * time.Second
	if attempt < 1 {
		return 0
	}
	// 100ms << 5 already exceeds maxDelay; larger shifts overflow
	if attempt > 5 {
		return maxDelay
	}
	d := 100 * time.Millisecond << (attempt - 1)
	if d > maxDelay {
		d = maxDelay
	}
	return d
}

// publishError publishes an error event
func (w *Worker) publishError(request *RenderRequest, err error) {
	errorEvent := map[string]interface{}{
		"kind":         request.kind(),
		"execution_id": request.ExecutionID,
		"node_id":      request.NodeID,
		"error":        err.Error(),
		"timestamp":    time.Now().UTC(),
	}

	if publishErr := w.publish(w.ctx, w.config.ErrorStream(), errorEvent); publishErr != nil {
		w.logger.Error("failed to publish error event", zap.Error(publishErr))
	}
}

// acknowledgeMessage acknowledges a message from the stream
func (w *Worker) acknowledgeMessage(messageID string) {
	err := w.redisClient.XAck(w.ctx, w.streamKey, w.consumerGroup, messageID).Err()
	if err != nil {
		w.logger.Error("failed to acknowledge message",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	}
}
