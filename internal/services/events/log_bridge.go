package events

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	arborlevels "github.com/ternarybob/arbor/levels"
	arbormodels "github.com/ternarybob/arbor/models"
	"github.com/ternarybob/indago/internal/interfaces"
)

// LogBridge consumes log batches from arbor's context channel and republishes
// them on the event bus so the dashboard can stream server logs live.
type LogBridge struct {
	eventService interfaces.EventService
	logger       arbor.ILogger
	channel      chan []arbormodels.LogEvent
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	minLevel     arbor.LogLevel
}

// NewLogBridge creates a bridge publishing logs at or above minLevel.
func NewLogBridge(eventService interfaces.EventService, logger arbor.ILogger, minLevel string) *LogBridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &LogBridge{
		eventService: eventService,
		logger:       logger,
		channel:      make(chan []arbormodels.LogEvent, 10),
		ctx:          ctx,
		cancel:       cancel,
		minLevel:     parseLogLevel(minLevel),
	}
}

// parseLogLevel converts string log level to arbor.LogLevel
func parseLogLevel(levelStr string) arbor.LogLevel {
	switch strings.ToLower(levelStr) {
	case "debug":
		return arbor.DebugLevel
	case "info":
		return arbor.InfoLevel
	case "warn", "warning":
		return arbor.WarnLevel
	case "error":
		return arbor.ErrorLevel
	default:
		return arbor.InfoLevel
	}
}

// GetChannel returns the channel for arbor to send log batches to
func (b *LogBridge) GetChannel() chan []arbormodels.LogEvent {
	return b.channel
}

// Start launches the consumer goroutine
func (b *LogBridge) Start() error {
	b.wg.Add(1)
	go b.consume()
	return nil
}

// Stop gracefully shuts down the bridge
func (b *LogBridge) Stop() error {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
	return nil
}

func (b *LogBridge) consume() {
	defer b.wg.Done()

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("LogBridge panic recovered")
		}
	}()

	for {
		select {
		case batch, ok := <-b.channel:
			if !ok {
				return
			}
			for _, event := range batch {
				// Skip chatter that would feed back into the bridge:
				// request tracing and the bus's own publish logging.
				if event.Message == "Publishing event" ||
					event.Message == "Event published" ||
					strings.HasPrefix(event.Message, "HTTP request") ||
					strings.HasPrefix(event.Message, "HTTP response") ||
					strings.Contains(event.Message, "WebSocket client") {
					continue
				}

				if arborlevels.FromLogLevel(event.Level) < b.minLevel {
					continue
				}

				b.publish(event)
			}

		case <-b.ctx.Done():
			return
		}
	}
}

func (b *LogBridge) publish(event arbormodels.LogEvent) {
	message := event.Message
	for key, value := range event.Fields {
		message += fmt.Sprintf(" %s=%v", key, value)
	}

	err := b.eventService.Publish(b.ctx, interfaces.Event{
		Type: interfaces.EventLogMessage,
		Payload: map[string]interface{}{
			"level":     strings.ToLower(event.Level.String()),
			"message":   message,
			"timestamp": event.Timestamp.Format("15:04:05"),
		},
	})
	if err != nil {
		b.logger.Warn().Err(err).Msg("Failed to publish log event")
	}
}
