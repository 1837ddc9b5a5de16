package notify

import "log"

// Dispatcher is the seam to whatever actually delivers notifications
// (email, SMS, push). The core calls it fire-and-forget: a delivery
// failure must never fail the purchasing flow.
type Dispatcher interface {
	Notify(userID uint, event string, data map[string]interface{})
}

// LogDispatcher just writes the event to the server log. Real delivery
// lives outside this service.
type LogDispatcher struct{}

func (LogDispatcher) Notify(userID uint, event string, data map[string]interface{}) {
	log.Printf("notify user=%d event=%s data=%v", userID, event, data)
}
