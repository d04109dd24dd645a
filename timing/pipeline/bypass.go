package pipeline

// BypassRecord is one forwarding source: a destination register that an
// in-flight op will write, and whether its data is already available this
// cycle. A record that matches a consumer but cannot forward is a data
// hazard: the consumer must stall rather than fall back to the stale
// register-file value.
type BypassRecord struct {
	Valid      bool
	Rd         uint8
	Data       uint64
	CanForward bool
}

// BypassNetwork is the set of forwarding sources assembled fresh each
// cycle. Sources are appended in fixed priority order: the long-latency
// write first, then writeback lanes, then memory lanes, then execute lanes,
// lane 0 first within each stage. Lookups scan the whole list and keep the
// LAST match, so the youngest producer (execute, highest lane) wins when
// several in-flight ops target the same register. This last-match-wins
// precedence over the fixed list is a tested contract; do not replace it
// with a first-match scan.
type BypassNetwork struct {
	records []BypassRecord
}

// NewBypassNetwork creates a network sized for one long-latency source
// plus three stages of width lanes.
func NewBypassNetwork(width int) *BypassNetwork {
	return &BypassNetwork{
		records: make([]BypassRecord, 0, 1+3*width),
	}
}

// Reset discards the previous cycle's sources. Records are never persisted
// across cycles.
func (b *BypassNetwork) Reset() {
	b.records = b.records[:0]
}

// AddLongLatency publishes this cycle's arbitrated long-latency write.
func (b *BypassNetwork) AddLongLatency(rd uint8, data uint64) {
	b.records = append(b.records, BypassRecord{
		Valid: true, Rd: rd, Data: data, CanForward: true,
	})
}

// AddLane publishes one pipeline lane as a forwarding source. Ops with an
// integer destination always occupy a record; canForward distinguishes
// results available now from results still pending (loads before the cache
// responds, multiplies still in the pipe).
func (b *BypassNetwork) AddLane(u *UOP) {
	if !u.HasIntRd() || u.Exception || u.NeedsReplay {
		return
	}
	b.records = append(b.records, BypassRecord{
		Valid:      true,
		Rd:         u.Inst.Rd,
		Data:       u.Wdata,
		CanForward: u.WdataReady,
	})
}

// Lookup resolves a source register against the network.
// found=false means no in-flight producer targets reg and the register
// file value is current. found && !record.CanForward is a stall.
func (b *BypassNetwork) Lookup(reg uint8) (record BypassRecord, found bool) {
	if reg == 0 {
		return BypassRecord{}, false
	}
	for i := range b.records {
		if b.records[i].Valid && b.records[i].Rd == reg {
			record = b.records[i]
			found = true
		}
	}
	return record, found
}
