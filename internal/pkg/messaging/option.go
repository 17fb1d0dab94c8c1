package messaging

// ConsumeOption tunes one Consume call.
type ConsumeOption func(*consumeOptions)

type consumeOptions struct {
	group       string
	concurrency int
	maxInFlight int
	autoAck     bool
}

func newConsumeOptions(opts ...ConsumeOption) consumeOptions {
	co := consumeOptions{concurrency: 1}
	for _, apply := range opts {
		if apply != nil {
			apply(&co)
		}
	}
	co.concurrency = max(co.concurrency, 1)
	return co
}

// inFlight is how many unsettled deliveries the consumer may hold. It never
// drops below the handler count so no handler sits idle.
func (co consumeOptions) inFlight() int {
	return max(co.maxInFlight, co.concurrency)
}

// WithGroup names the competing consumer group: the NSQ channel or the NATS
// queue group. Each group receives every message once.
func WithGroup(group string) ConsumeOption {
	return func(co *consumeOptions) { co.group = group }
}

// WithConcurrency sets the number of handler goroutines.
func WithConcurrency(n int) ConsumeOption {
	return func(co *consumeOptions) { co.concurrency = n }
}

// WithMaxInFlight caps unsettled deliveries.
func WithMaxInFlight(n int) ConsumeOption {
	return func(co *consumeOptions) { co.maxInFlight = n }
}

// WithAutoAck acks after a nil handler error and nacks otherwise, unless the
// handler already settled the message.
func WithAutoAck(on bool) ConsumeOption {
	return func(co *consumeOptions) { co.autoAck = on }
}
