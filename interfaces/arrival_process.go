package interfaces

import "time"

// ArrivalProcess schedules the source's emissions. The feeding stage uses a
// fixed count at a fixed interval (node.NewFixedIntervalArrivals); a future
// validation stage plugs in here without touching the emission loop.
//
//go:generate moq -stub -out mock/arrival_process.go -pkg mock . ArrivalProcess
type ArrivalProcess interface {
	// Next returns the wait before the next emission and ok=false once the
	// schedule is exhausted. The first call returns a zero wait.
	// Called from the node.Source emission goroutine before every emission.
	Next() (wait time.Duration, ok bool)
}
