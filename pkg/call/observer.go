// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package call

// Observer receives call events. Methods are called from the call's own
// goroutines, one at a time and in order, and must not block; they may call
// back into the Manager. OnTerminated is always the last event.
type Observer interface {
	OnStateChange(state State)
	// OnIncomingCall asks the user to Answer.
	OnIncomingCall(session Session)
	OnRinging()
	// OnConnected is followed by a wait for AckConnected.
	OnConnected(session Session)
	// OnTerminated is called exactly once per call.
	OnTerminated(reason Reason, err error)
}

// NopObserver ignores every event. Embed it to implement only some methods.
type NopObserver struct{}

// OnStateChange implements Observer.
func (NopObserver) OnStateChange(State) {}

// OnIncomingCall implements Observer.
func (NopObserver) OnIncomingCall(Session) {}

// OnRinging implements Observer.
func (NopObserver) OnRinging() {}

// OnConnected implements Observer.
func (NopObserver) OnConnected(Session) {}

// OnTerminated implements Observer.
func (NopObserver) OnTerminated(Reason, error) {}
