package llc

import "fmt"

// BusOp identifies an operation the LLC drives onto the system bus.
type BusOp int

const (
	BusRead BusOp = iota + 1
	BusWrite
	BusInvalidate
	BusRWIM
)

func (op BusOp) String() string {
	switch op {
	case BusRead:
		return "READ"
	case BusWrite:
		return "WRITE"
	case BusInvalidate:
		return "INVALIDATE"
	case BusRWIM:
		return "RWIM"
	}
	panic(fmt.Sprintf("unknown bus operation %d", int(op)))
}

// SnoopResult is the answer a cache gives to a snooped bus operation.
type SnoopResult int

const (
	SnoopNoHit SnoopResult = iota
	SnoopHit
	SnoopHitM
)

func (r SnoopResult) String() string {
	switch r {
	case SnoopNoHit:
		return "NOHIT"
	case SnoopHit:
		return "HIT"
	case SnoopHitM:
		return "HITM"
	}
	panic(fmt.Sprintf("unknown snoop result %d", int(r)))
}

// L1Message is an inclusivity signal sent from the LLC up to L1.
type L1Message int

const (
	MsgGetLine L1Message = iota + 1
	MsgSendLine
	MsgEvictLine
	MsgInvalidateLine
)

func (m L1Message) String() string {
	switch m {
	case MsgGetLine:
		return "GETLINE"
	case MsgSendLine:
		return "SENDLINE"
	case MsgEvictLine:
		return "EVICTLINE"
	case MsgInvalidateLine:
		return "INVALIDATELINE"
	}
	panic(fmt.Sprintf("unknown L1 message %d", int(m)))
}

// Trace command codes.
const (
	CmdDataRead        = 0
	CmdDataWrite       = 1
	CmdInstRead        = 2
	CmdSnoopRead       = 3
	CmdSnoopWrite      = 4
	CmdSnoopRWIM       = 5
	CmdSnoopInvalidate = 6
	CmdReset           = 8
	CmdDump            = 9
)

// A BusConnector carries the LLC's outbound bus traffic: operations it
// drives and responses to snoops it observed.
type BusConnector interface {
	BusOperation(op BusOp, addr uint64)
	PutSnoopResult(addr uint64, result SnoopResult)
}

// A SnoopResponder answers the LLC's own bus operations with the combined
// snoop result of the peer caches. Kept separate from BusConnector so the
// address-based stub can be swapped for a recorded oracle.
type SnoopResponder interface {
	GetSnoopResult(addr uint64) SnoopResult
}

// An L1Messenger delivers inclusivity messages to the private L1 caches.
type L1Messenger interface {
	MessageToCache(msg L1Message, addr uint64)
}
