package bootstrap

import (
	"context"
	"fmt"

	"orderflow/internal/broker"
	"orderflow/internal/config"
	"orderflow/internal/logger"
)

type Base struct {
	Config    *config.Config
	Logger    logger.Logger
	Sender    broker.Sender
	Processor broker.Processor
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

func (b *Base) InitSender() error {
	sender, err := broker.NewSender(b.Config.Broker, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create sender: %w", err)
	}
	b.Sender = sender
	return nil
}

func (b *Base) InitProcessor() error {
	opts := broker.ProcessorOptions{
		MaxConcurrentCalls: b.Config.Worker.MaxConcurrentCalls,
		SessionTimeout:     b.Config.Worker.SessionTimeout,
	}

	processor, err := broker.NewProcessor(b.Config.Broker, opts, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create processor: %w", err)
	}
	b.Processor = processor
	return nil
}

func (b *Base) ShutdownBroker() []error {
	var errs []error

	if b.Sender != nil {
		if err := b.Sender.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sender close error: %w", err))
		}
	}

	if b.Processor != nil {
		if err := b.Processor.Close(); err != nil {
			errs = append(errs, fmt.Errorf("processor close error: %w", err))
		}
	}

	return errs
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	errs = append(errs, b.ShutdownBroker()...)

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
