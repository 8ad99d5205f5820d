package metrics

import "testing"

func TestRegisterIdempotent(t *testing.T) {
	Register()
	Register() // must not panic on double registration
}

func TestIncrementsDoNotPanic(t *testing.T) {
	Register()
	IncHTTP("/appointments")
	IncTransition("confirm", "ok")
	IncTransition("confirm", "conflict")
	IncConflict()
	IncTxRetry()
	IncSlotQuery("hit")
	IncSlotQuery("miss")
}
