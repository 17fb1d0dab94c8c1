package messaging

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	nsq "github.com/nsqio/go-nsq"
)

var (
	ErrNSQProducerAddrRequired  = errors.New("messaging: nsq producer address is required")
	ErrNSQConsumerAddrsRequired = errors.New("messaging: nsq consumer nsqd/lookupd addresses are required")
)

// NSQConfig addresses one nsqd for publishing and either nsqds or lookupds
// for consuming. Lookupds win when both are set. Nil configs use nsq.NewConfig.
type NSQConfig struct {
	ProducerAddr         string
	ConsumerNSQDAddrs    []string
	ConsumerLookupdAddrs []string
	ProducerConfig       *nsq.Config
	ConsumerConfig       *nsq.Config
}

// NSQ delivers at least once. A nacked message is requeued with nsqd's
// backoff; headers ride in an envelope since NSQ has none.
type NSQ struct {
	producer    *nsq.Producer
	consumerCfg *nsq.Config
	connect     func(*nsq.Consumer) error
	consumers   stopList
}

func NewNSQ(cfg NSQConfig) (*NSQ, error) {
	n := &NSQ{consumerCfg: cfg.ConsumerConfig}
	if n.consumerCfg == nil {
		n.consumerCfg = nsq.NewConfig()
	}

	switch lookupds, nsqds := slices.Clone(cfg.ConsumerLookupdAddrs), slices.Clone(cfg.ConsumerNSQDAddrs); {
	case len(lookupds) > 0:
		n.connect = func(c *nsq.Consumer) error { return c.ConnectToNSQLookupds(lookupds) }
	case len(nsqds) > 0:
		n.connect = func(c *nsq.Consumer) error { return c.ConnectToNSQDs(nsqds) }
	}

	if cfg.ProducerAddr == "" {
		return n, nil
	}
	pcfg := cfg.ProducerConfig
	if pcfg == nil {
		pcfg = nsq.NewConfig()
	}
	producer, err := nsq.NewProducer(cfg.ProducerAddr, pcfg)
	if err != nil {
		return nil, fmt.Errorf("messaging: nsq new producer: %w", err)
	}
	producer.SetLoggerLevel(nsq.LogLevelError)
	n.producer = producer

	return n, nil
}

// Close stops every consumer, then the producer.
func (n *NSQ) Close() error {
	first, err := n.consumers.stopAll()
	if first && n.producer != nil {
		n.producer.Stop()
	}
	return err
}

func (n *NSQ) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := checkPublish(ctx, destination); err != nil {
		return PublishResult{}, err
	}
	if n.producer == nil {
		return PublishResult{}, ErrNSQProducerAddrRequired
	}

	body, err := sealEnvelope(msg)
	if err != nil {
		return PublishResult{}, fmt.Errorf("messaging: nsq envelope: %w", err)
	}

	if msg.Delay > 0 {
		err = n.producer.DeferredPublish(destination, msg.Delay, body)
	} else {
		err = n.producer.Publish(destination, body)
	}
	if err != nil {
		return PublishResult{}, fmt.Errorf("messaging: nsq publish: %w", err)
	}
	return PublishResult{Destination: destination, Timestamp: time.Now()}, nil
}

// Consume reads source through the NSQ channel named by WithGroup, which is
// required. It blocks until ctx ends or the client is closed.
func (n *NSQ) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	if err := checkConsume(ctx, source, handler); err != nil {
		return err
	}
	if n.connect == nil {
		return ErrNSQConsumerAddrsRequired
	}
	co := newConsumeOptions(opts...)
	if co.group == "" {
		return ErrGroupRequired
	}

	ccfg := *n.consumerCfg
	ccfg.MaxInFlight = max(ccfg.MaxInFlight, co.concurrency)
	if co.maxInFlight > 0 {
		ccfg.MaxInFlight = co.inFlight()
	}

	consumer, err := nsq.NewConsumer(source, co.group, &ccfg)
	if err != nil {
		return fmt.Errorf("messaging: nsq new consumer: %w", err)
	}
	consumer.SetLoggerLevel(nsq.LogLevelError)
	consumer.AddConcurrentHandlers(nsq.HandlerFunc(func(m *nsq.Message) error {
		// dispatch or the handler always finishes or requeues the message.
		m.DisableAutoResponse()
		//nolint:errcheck // dispatch logs handler failures
		_ = dispatch(ctx, "nsq", handler, newNSQMessage(source, m), co.autoAck)
		return nil
	}), co.concurrency)

	stop := func() error {
		consumer.Stop()
		<-consumer.StopChan
		return nil
	}
	if err := n.consumers.add(stop); err != nil {
		return errors.Join(err, stop())
	}
	if err := n.connect(consumer); err != nil {
		return errors.Join(fmt.Errorf("messaging: nsq connect: %w", err), stop())
	}

	select {
	case <-ctx.Done():
		return errors.Join(ctx.Err(), stop())
	case <-consumer.StopChan:
		return nil
	}
}
