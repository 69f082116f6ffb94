package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/hub"
	"github.com/cwrk-planet/realtime-service/internal/service"

	"github.com/segmentio/kafka-go"
)

// headerEvent — имя события в заголовке, если его нет в теле.
const headerEvent = "event"

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
	MaxWait time.Duration
}

type Emitter interface {
	Emit(ctx context.Context, req service.EmitRequest) (hub.Report, error)
}

// messageReader — часть *kafka.Reader, которую использует Consumer.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer — ингресс внутренних сервисов через топик: каждое сообщение
// это one-shot запрос {event, data, room?} без соединения-отправителя.
type Consumer struct {
	cfg    Config
	reader messageReader
	svc    Emitter
}

func NewConsumer(cfg Config, svc Emitter) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker address is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "realtime-service"
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 500 * time.Millisecond
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  cfg.MaxWait,
	})
	return newConsumer(cfg, reader, svc), nil
}

func newConsumer(cfg Config, r messageReader, svc Emitter) *Consumer {
	return &Consumer{cfg: cfg, reader: r, svc: svc}
}

// Run читает топик до отмены ctx. Отклонённые сообщения коммитятся и пропускаются,
// иначе одно битое сообщение остановило бы весь поток.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		if err := c.reader.Close(); err != nil {
			slog.Warn("kafka: reader close failed", "err", err)
		}
	}()
	slog.Info("kafka consumer started", "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("kafka: fetch failed", "topic", c.cfg.Topic, "err", err)
			select {
			case <-time.After(time.Second):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		if err := c.handle(ctx, msg); err != nil {
			// сервис остановлен: сообщение не коммитим, его дочитает следующий экземпляр
			return err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			slog.Warn("kafka: commit failed", "offset", msg.Offset, "err", err)
		}
	}
}

// handle возвращает ошибку только если обработку нельзя продолжать.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	log := slog.With("topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)

	req, err := decode(msg)
	if err != nil {
		log.Warn("kafka: message skipped", "err", err)
		return nil
	}

	rep, err := c.svc.Emit(ctx, req)
	switch {
	case err == nil:
		log.Debug("kafka: event dispatched", "event", req.Event, "delivered", rep.Delivered)
		return nil
	case errors.Is(err, domain.ErrHubClosed):
		return err
	default:
		log.Warn("kafka: event rejected", "event", req.Event, "err", err)
		return nil
	}
}

func decode(msg kafka.Message) (service.EmitRequest, error) {
	var req service.EmitRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return req, fmt.Errorf("decode value: %w", err)
	}
	if req.Event == "" {
		for _, h := range msg.Headers {
			if h.Key == headerEvent {
				req.Event = string(h.Value)
				break
			}
		}
	}
	if req.Event == "" {
		return req, fmt.Errorf("%w: event name is missing", domain.ErrUnknownEvent)
	}
	return req, nil
}
