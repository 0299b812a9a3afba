package vm

import (
	"fmt"
	"sort"
	"strings"
)

// OpCounter tallies executed opcodes. Install it with SetObserver.
type OpCounter struct {
	Counts [NumOpcodes]int
	Steps  int
	Jumps  int
	Emits  int
}

// ObserveStep implements Observer.
func (c *OpCounter) ObserveStep(ev StepEvent) {
	c.Steps++
	if int(ev.Opcode) < NumOpcodes {
		c.Counts[ev.Opcode]++
	}
	if ev.Jumped {
		c.Jumps++
	}
	if ev.Emitted {
		c.Emits++
	}
}

// ByName returns the non-zero counts keyed by mnemonic.
func (c *OpCounter) ByName() map[string]int {
	m := make(map[string]int)
	for i, n := range c.Counts {
		if n > 0 {
			m[Opcode(i).String()] = n
		}
	}
	return m
}

// String renders counts in descending frequency.
func (c *OpCounter) String() string {
	type entry struct {
		op Opcode
		n  int
	}
	var entries []entry
	for i, n := range c.Counts {
		if n > 0 {
			entries = append(entries, entry{Opcode(i), n})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].n != entries[j].n {
			return entries[i].n > entries[j].n
		}
		return entries[i].op < entries[j].op
	})
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = fmt.Sprintf("%s=%d", e.op, e.n)
	}
	return strings.Join(parts, " ")
}

// MultiObserver fans a step event out to several observers.
type MultiObserver []Observer

// ObserveStep implements Observer.
func (mo MultiObserver) ObserveStep(ev StepEvent) {
	for _, o := range mo {
		o.ObserveStep(ev)
	}
}
