package llc

import (
	"os"

	"github.com/sarchlab/llcsim/llc/internal/tagging"
	"github.com/sarchlab/llcsim/logging"
)

// Builder can build LLC components.
type Builder struct {
	geometry Geometry
	policy   InvalidatePolicy
	bus      BusConnector
	snoop    SnoopResponder
	l1       L1Messenger
	log      *logging.Logger
}

// MakeBuilder creates a builder with the default 16 MiB, 64 B line, 16-way
// geometry over 32-bit addresses.
func MakeBuilder() Builder {
	geometry, err := MakeGeometry(16<<20, 64, 16, 32)
	if err != nil {
		panic(err)
	}

	return Builder{
		geometry: geometry,
		policy:   KeepOnRemoteInvalidate,
	}
}

// WithGeometry sets the cache geometry of the builder.
func (b Builder) WithGeometry(geometry Geometry) Builder {
	b.geometry = geometry
	return b
}

// WithInvalidatePolicy sets the command-6 M/E policy of the builder.
func (b Builder) WithInvalidatePolicy(policy InvalidatePolicy) Builder {
	b.policy = policy
	return b
}

// WithBus sets the bus connector of the builder.
func (b Builder) WithBus(bus BusConnector) Builder {
	b.bus = bus
	return b
}

// WithSnoopResponder sets the snoop responder of the builder.
func (b Builder) WithSnoopResponder(snoop SnoopResponder) Builder {
	b.snoop = snoop
	return b
}

// WithL1 sets the L1 messenger of the builder.
func (b Builder) WithL1(l1 L1Messenger) Builder {
	b.l1 = l1
	return b
}

// WithLogger sets the logger of the builder.
func (b Builder) WithLogger(log *logging.Logger) Builder {
	b.log = log
	return b
}

// Build builds an LLC component.
func (b Builder) Build(name string) *Comp {
	if b.bus == nil || b.snoop == nil || b.l1 == nil {
		panic("llc: builder needs a bus connector, a snoop responder, and an L1 messenger")
	}
	if b.log == nil {
		b.log = logging.New(logging.Silent, os.Stdout, os.Stderr)
	}

	return &Comp{
		name:     name,
		geometry: b.geometry,
		policy:   b.policy,
		tags:     tagging.NewTags(b.geometry.NumSets(), b.geometry.Associativity),
		bus:      b.bus,
		snoop:    b.snoop,
		l1:       b.l1,
		log:      b.log,
	}
}
