// Package discovery orchestrates container discovery, resolution, code
// injection and plugin scanning.
//
// The phases are strictly linear:
//
//	INIT -> DISCOVER -> INJECT -> REGISTER -> FINALIZED
//
// and each is represented by a handle that can only be used once:
//
//	e := discovery.New(opts...)     // INIT
//	e.AddModule(locator.NewDirectory(...))
//	staged := e.PreInit(ctx)        // DISCOVER, early-extension INJECT
//	fin := staged.Init(ctx)         // INJECT, REGISTER, FINALIZED
//	for _, rec := range fin.Records() { ... }
//
// Reusing a handle, or calling a locator.Sink method outside DISCOVER,
// panics with a *PhaseError. These are programming errors, not runtime
// conditions.
package discovery
