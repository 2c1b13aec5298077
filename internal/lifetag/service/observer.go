package service

import "github.com/mohamedS2020/lifetag/internal/lifetag/store"

// GateObserver receives access gate events, typically for metrics.
type GateObserver interface {
	ObserveVerification(outcome string)
	ObserveGrant()
}

// RetentionObserver receives retention manager events.
type RetentionObserver interface {
	ObserveRun(rec store.RunRecord, fatal bool)
	SetCleanupRunning(running bool)
}

type noopObserver struct{}

func (noopObserver) ObserveVerification(string) {}
func (noopObserver) ObserveGrant() {}
func (noopObserver) ObserveRun(store.RunRecord, bool) {}
func (noopObserver) SetCleanupRunning(bool) {}
