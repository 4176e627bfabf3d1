// Package instrument - Instrumentation statistics.
package instrument

// InstrumentStats tracks instrumentation statistics.
//
// Use Case:
// Enable with -v flag to see what was traced:
//
//	sledgehammer build -v main.go
//	Instrumented main.go:
//	  - 2 functions traced
//	  - 14 statements traced (3 range loops bracketed)
//	  Total: 17 trace statements inserted
//
// Thread Safety: NOT thread-safe (single-threaded instrumentation).
//
//nolint:revive // InstrumentStats is clear and descriptive despite stuttering
type InstrumentStats struct {
	FunctionsRewritten int // Number of marked functions rewritten
	StatementsTraced   int // Number of original statements preceded by a trace
	LoopsBracketed     int // Number of range loops that also got a closing trace
	TracesInserted     int // Number of trace statements inserted
}

// Total returns the number of trace statements inserted.
func (s *InstrumentStats) Total() int {
	return s.TracesInserted
}

func (s *InstrumentStats) add(other InstrumentStats) {
	s.FunctionsRewritten += other.FunctionsRewritten
	s.StatementsTraced += other.StatementsTraced
	s.LoopsBracketed += other.LoopsBracketed
	s.TracesInserted += other.TracesInserted
}
