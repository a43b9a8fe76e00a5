// Package llc implements a trace-driven, shared, inclusive last-level
// cache: a set-associative tag array with tree-PLRU replacement driven by a
// MESI coherence controller.
package llc

import (
	"fmt"

	"github.com/sarchlab/llcsim/llc/internal/tagging"
	"github.com/sarchlab/llcsim/logging"
)

// InvalidatePolicy selects how the controller reacts to a snooped
// invalidate (command 6) that hits a Modified or Exclusive line.
type InvalidatePolicy int

const (
	// KeepOnRemoteInvalidate preserves M/E lines, treating them as
	// authoritative against a stale invalidate.
	KeepOnRemoteInvalidate InvalidatePolicy = iota
	// DropOnRemoteInvalidate applies the textbook MESI response: write back
	// Modified data, then invalidate.
	DropOnRemoteInvalidate
)

// An UnknownCommandError reports a trace command code outside the dispatch
// table. It is recoverable: the run loop logs it and moves on.
type UnknownCommandError struct {
	Code int
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command code %d", e.Code)
}

// Comp is the LLC engine. It owns the tag array and statistics and drives
// all externally observable effects through the bus and L1 connectors. A
// single trace advances sequentially; Comp is not safe for concurrent use.
type Comp struct {
	name     string
	geometry Geometry
	policy   InvalidatePolicy

	tags  *tagging.Tags
	stats Stats

	bus   BusConnector
	snoop SnoopResponder
	l1    L1Messenger
	log   *logging.Logger
}

// Name returns the name of the component.
func (c *Comp) Name() string {
	return c.name
}

// Geometry returns the cache geometry the component was built with.
func (c *Comp) Geometry() Geometry {
	return c.geometry
}

// Stats returns a snapshot of the access counters.
func (c *Comp) Stats() Stats {
	return c.stats
}

// Execute dispatches one trace command. Codes outside the table return an
// UnknownCommandError; everything else runs to completion, including all
// side effects, before Execute returns.
func (c *Comp) Execute(code int, addr uint64) error {
	c.log.Debugf("Entering command %d, Address: 0x%08X", code, addr)

	switch code {
	case CmdDataRead, CmdInstRead:
		c.read(addr)
	case CmdDataWrite:
		c.write(addr)
	case CmdSnoopRead:
		c.snoopRead(addr)
	case CmdSnoopWrite:
		// A peer writing back to memory: any line we hold for the address
		// was already downgraded or invalidated by the preceding snoop.
	case CmdSnoopRWIM:
		c.snoopRWIM(addr)
	case CmdSnoopInvalidate:
		c.snoopInvalidate(addr)
	case CmdReset:
		c.ResetAll()
	case CmdDump:
		c.Dump()
	default:
		return &UnknownCommandError{Code: code}
	}

	c.log.Debugf("Exiting command %d", code)

	return nil
}

// read handles commands 0 and 2. The LLC is unified, so data and
// instruction reads are identical.
func (c *Comp) read(addr uint64) {
	c.stats.Reads++

	tag, index, _ := c.geometry.Decode(addr)
	set := c.tags.Set(index)

	if way, ok := set.Lookup(tag); ok {
		c.stats.Hits++
		set.Touch(way)
		c.l1.MessageToCache(MsgSendLine, addr)
		c.log.Debugf("read 0x%08X: hit, state %s", addr, set.Way(way).State)

		return
	}

	c.stats.Misses++
	c.bus.BusOperation(BusRead, addr)

	var state tagging.State
	switch c.snoop.GetSnoopResult(addr) {
	case SnoopHit:
		state = tagging.StateShared
	case SnoopNoHit, SnoopHitM:
		// On HITM the peer writes its data back before our fill completes,
		// leaving us the only holder.
		state = tagging.StateExclusive
	}

	c.fill(set, index, tag, state)
	c.l1.MessageToCache(MsgSendLine, addr)
	c.log.Debugf("read 0x%08X: miss, installed %s", addr, state)
}

// write handles command 1.
func (c *Comp) write(addr uint64) {
	c.stats.Writes++

	tag, index, _ := c.geometry.Decode(addr)
	set := c.tags.Set(index)

	if way, ok := set.Lookup(tag); ok {
		c.stats.Hits++
		set.Touch(way)

		switch set.Way(way).State {
		case tagging.StateModified:
		case tagging.StateExclusive:
			set.SetState(way, tagging.StateModified)
		case tagging.StateShared:
			c.bus.BusOperation(BusInvalidate, addr)
			set.SetState(way, tagging.StateModified)
		}

		c.l1.MessageToCache(MsgSendLine, addr)
		c.log.Debugf("write 0x%08X: hit", addr)

		return
	}

	c.stats.Misses++
	c.bus.BusOperation(BusRWIM, addr)
	// Peers invalidate or flush on RWIM; the result does not change the
	// local outcome.
	c.snoop.GetSnoopResult(addr)

	c.fill(set, index, tag, tagging.StateModified)
	c.l1.MessageToCache(MsgSendLine, addr)
	c.log.Debugf("write 0x%08X: miss, installed Modified", addr)
}

// fill installs a line on the miss path and discharges inclusivity and
// write-back duties for the victim, if any.
func (c *Comp) fill(set *tagging.Set, index int, tag uint64, state tagging.State) {
	_, victim, evicted := set.Allocate(tag, state)
	if !evicted {
		return
	}

	victimAddr := c.geometry.LineAddr(victim.Tag, index)
	c.l1.MessageToCache(MsgEvictLine, victimAddr)
	if victim.Modified() {
		c.bus.BusOperation(BusWrite, victimAddr)
	}
}

// snoopRead handles command 3. Snoops are not accesses: the PLRU bits stay
// untouched.
func (c *Comp) snoopRead(addr uint64) {
	tag, index, _ := c.geometry.Decode(addr)
	set := c.tags.Set(index)

	way, ok := set.Lookup(tag)
	if !ok {
		c.bus.PutSnoopResult(addr, SnoopNoHit)

		return
	}

	switch set.Way(way).State {
	case tagging.StateModified:
		c.bus.PutSnoopResult(addr, SnoopHitM)
		c.l1.MessageToCache(MsgGetLine, addr)
		c.bus.BusOperation(BusWrite, addr)
		set.SetState(way, tagging.StateShared)
	case tagging.StateExclusive:
		c.bus.PutSnoopResult(addr, SnoopHit)
		set.SetState(way, tagging.StateShared)
	case tagging.StateShared:
		c.bus.PutSnoopResult(addr, SnoopHit)
	}
}

// snoopRWIM handles command 5: a peer announced an impending write, so any
// copy we hold must go.
func (c *Comp) snoopRWIM(addr uint64) {
	tag, index, _ := c.geometry.Decode(addr)
	set := c.tags.Set(index)

	way, ok := set.Lookup(tag)
	if !ok {
		return
	}

	if set.Way(way).State == tagging.StateModified {
		c.l1.MessageToCache(MsgGetLine, addr)
		c.bus.BusOperation(BusWrite, addr)
	}

	c.l1.MessageToCache(MsgInvalidateLine, addr)
	set.Invalidate(way)
}

// snoopInvalidate handles command 6.
func (c *Comp) snoopInvalidate(addr uint64) {
	tag, index, _ := c.geometry.Decode(addr)
	set := c.tags.Set(index)

	way, ok := set.Lookup(tag)
	if !ok {
		return
	}

	switch set.Way(way).State {
	case tagging.StateShared:
		c.l1.MessageToCache(MsgInvalidateLine, addr)
		set.Invalidate(way)
	case tagging.StateModified, tagging.StateExclusive:
		if c.policy == KeepOnRemoteInvalidate {
			return
		}
		if set.Way(way).State == tagging.StateModified {
			c.l1.MessageToCache(MsgGetLine, addr)
			c.bus.BusOperation(BusWrite, addr)
		}
		c.l1.MessageToCache(MsgInvalidateLine, addr)
		set.Invalidate(way)
	}
}

// ResetAll reinitializes the tag array and zeroes the statistics as one
// unit (command 8).
func (c *Comp) ResetAll() {
	c.tags.Reset()
	c.stats.Reset()
}

// Dump prints every valid line followed by the statistics block on the
// normal sink (command 9).
func (c *Comp) Dump() {
	tagDigits := (c.geometry.tagBits + 3) / 4
	plruWidth := c.geometry.Associativity - 1

	c.tags.VisitValid(func(setIndex, way int, line tagging.Line, plruBits uint32) {
		plruStr := "-"
		if plruWidth > 0 {
			plruStr = fmt.Sprintf("%0*b", plruWidth, plruBits)
		}

		c.log.Printf("set %6d way %2d tag 0x%0*X plru %s state %s",
			setIndex, way, tagDigits, line.Tag, plruStr, line.State)
	})

	c.log.Printf("%s", c.stats.Report())
}
