// Package queue runs verification jobs delivered over NSQ and publishes their results.
package queue

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/octobees/mailprobe/internal/config"
	"github.com/octobees/mailprobe/internal/dto"
	"github.com/octobees/mailprobe/internal/entity"
)

// Verifier runs the validation and enrichment pipelines.
type Verifier interface {
	Validate(ctx context.Context, email string) (entity.ValidationResult, error)
	Enrich(ctx context.Context, email string) (entity.EnrichmentResult, error)
}

// Publisher sends a message body to a topic. *nsq.Producer satisfies it.
type Publisher interface {
	Publish(topic string, body []byte) error
}

// Handler processes VerifyJob messages.
type Handler struct {
	verifier     Verifier
	publisher    Publisher
	defaultTopic string
	log          logrus.FieldLogger
}

// NewHandler builds a handler publishing to defaultTopic unless a job names its own.
func NewHandler(verifier Verifier, publisher Publisher, defaultTopic string, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{verifier: verifier, publisher: publisher, defaultTopic: defaultTopic, log: log}
}

var _ nsq.Handler = (*Handler)(nil)

// HandleMessage runs one job. Bad jobs are answered with an error result and
// finished; only publish failures are returned, so NSQ requeues the message.
func (h *Handler) HandleMessage(m *nsq.Message) error {
	topic, result := h.Process(context.Background(), m.Body)

	body, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, "encode job result")
	}
	if err := h.publisher.Publish(topic, body); err != nil {
		h.log.WithError(err).WithField("topic", topic).Warn("publishing job result failed")
		return errors.Wrapf(err, "publish result to %s", topic)
	}

	h.log.WithFields(logrus.Fields{
		"email":     result.Email,
		"operation": result.Operation,
		"topic":     topic,
		"failed":    result.Error != "",
	}).Info("job processed")
	return nil
}

// Process decodes and runs a job, returning the result and the topic it belongs on.
func (h *Handler) Process(ctx context.Context, body []byte) (string, dto.VerifyJobResult) {
	var job dto.VerifyJob
	if err := json.Unmarshal(body, &job); err != nil {
		return h.defaultTopic, dto.VerifyJobResult{Error: "invalid job payload: " + err.Error()}
	}

	topic := strings.TrimSpace(job.ResultTopic)
	if topic == "" {
		topic = h.defaultTopic
	}
	result := dto.VerifyJobResult{Email: job.Email, Operation: job.Operation}

	switch job.Operation {
	case dto.OperationValidate, "":
		result.Operation = dto.OperationValidate
		validation, err := h.verifier.Validate(ctx, job.Email)
		if err != nil {
			result.Error = err.Error()
			break
		}
		result.Validation = &validation
	case dto.OperationEnrich:
		enrichment, err := h.verifier.Enrich(ctx, job.Email)
		if err != nil {
			result.Error = err.Error()
			break
		}
		result.Enrichment = &enrichment
	default:
		result.Error = "unsupported operation: " + string(job.Operation)
	}
	return topic, result
}

// Consume subscribes h to the configured topic and blocks until ctx is done.
func Consume(ctx context.Context, cfg config.NSQConfig, h *Handler, log logrus.FieldLogger) error {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxInFlight = concurrency
	// Probes can take tens of seconds when a domain is rate limited.
	nsqCfg.MsgTimeout = 2 * time.Minute

	consumer, err := nsq.NewConsumer(cfg.Topic, cfg.Channel, nsqCfg)
	if err != nil {
		return errors.Wrap(err, "create nsq consumer")
	}
	consumer.SetLogger(NewLogger(log), nsq.LogLevelWarning)
	consumer.AddConcurrentHandlers(h, concurrency)

	if cfg.LookupdAddr != "" {
		err = consumer.ConnectToNSQLookupd(cfg.LookupdAddr)
	} else {
		err = consumer.ConnectToNSQD(cfg.NSQDAddr)
	}
	if err != nil {
		return errors.Wrap(err, "connect nsq consumer")
	}

	select {
	case <-ctx.Done():
		consumer.Stop()
		<-consumer.StopChan
	case <-consumer.StopChan:
	}
	return nil
}

// NewProducer connects a producer to nsqd.
func NewProducer(cfg config.NSQConfig, log logrus.FieldLogger) (*nsq.Producer, error) {
	producer, err := nsq.NewProducer(cfg.NSQDAddr, nsq.NewConfig())
	if err != nil {
		return nil, errors.Wrap(err, "create nsq producer")
	}
	producer.SetLogger(NewLogger(log), nsq.LogLevelWarning)
	if err := producer.Ping(); err != nil {
		producer.Stop()
		return nil, errors.Wrapf(err, "ping nsqd at %s", cfg.NSQDAddr)
	}
	return producer, nil
}

// Logger adapts a logrus logger to the go-nsq logger interface.
type Logger struct {
	log logrus.FieldLogger
}

// NewLogger wraps log for go-nsq.
func NewLogger(log logrus.FieldLogger) *Logger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Logger{log: log.WithField("component", "nsq")}
}

// Output implements the go-nsq logger interface. go-nsq prefixes every line
// with its level, which is mapped onto the logrus level.
func (l *Logger) Output(_ int, s string) error {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "ERR"):
		l.log.Error(s)
	case strings.HasPrefix(s, "WRN"):
		l.log.Warn(s)
	case strings.HasPrefix(s, "DBG"):
		l.log.Debug(s)
	default:
		l.log.Info(s)
	}
	return nil
}
