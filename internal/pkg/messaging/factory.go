package messaging

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Driver names accepted by messaging.driver.
const (
	DriverNSQ    = "nsq"
	DriverNATS   = "nats"
	DriverMemory = "memory"
)

// ErrUnknownDriver is returned for a driver name not in Drivers.
var ErrUnknownDriver = errors.New("messaging: unknown driver")

// FactoryOptions holds the settings of every broker; only the selected
// driver's block is read.
type FactoryOptions struct {
	NSQ  NSQConfig
	NATS NATSConfig
}

var constructors = map[string]func(FactoryOptions) (Messaging, error){
	DriverNSQ:    func(o FactoryOptions) (Messaging, error) { return NewNSQ(o.NSQ) },
	DriverNATS:   func(o FactoryOptions) (Messaging, error) { return NewNATS(o.NATS) },
	DriverMemory: func(FactoryOptions) (Messaging, error) { return NewMemory(), nil },
}

// Drivers lists the accepted driver names in sorted order.
func Drivers() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewFromDriver builds the broker client named by driver. An empty name
// selects the in-process broker, which is what single-node deployments run.
func NewFromDriver(driver string, opts FactoryOptions) (Messaging, error) {
	name := strings.ToLower(strings.TrimSpace(driver))
	if name == "" {
		name = DriverMemory
	}
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w %q, want one of %v", ErrUnknownDriver, driver, Drivers())
	}
	return ctor(opts)
}
