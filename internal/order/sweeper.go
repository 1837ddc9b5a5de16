package order

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Sweeper runs the two periodic background scans: expiring overdue
// bank-transfer orders and sending one-time payment reminders. The two
// run on independent timers and are safe to run concurrently with
// user-initiated cancellations - the status guards in the service make
// every transition act at most once.
type Sweeper struct {
	Orders *Service

	ExpiryInterval   time.Duration
	ReminderInterval time.Duration
}

func NewSweeper(orders *Service) *Sweeper {
	s := &Sweeper{
		Orders:           orders,
		ExpiryInterval:   5 * time.Minute,
		ReminderInterval: 15 * time.Minute,
	}
	if v := os.Getenv("EXPIRY_SWEEP_MINUTES"); v != "" {
		if mins, err := strconv.Atoi(v); err == nil && mins > 0 {
			s.ExpiryInterval = time.Duration(mins) * time.Minute
		}
	}
	if v := os.Getenv("REMINDER_SWEEP_MINUTES"); v != "" {
		if mins, err := strconv.Atoi(v); err == nil && mins > 0 {
			s.ReminderInterval = time.Duration(mins) * time.Minute
		}
	}
	return s
}

// Start launches both sweep loops in the background
func (s *Sweeper) Start() {
	go s.runExpiry()
	go s.runReminders()
	log.Printf("order sweeps started (expiry every %s, reminders every %s)",
		s.ExpiryInterval, s.ReminderInterval)
}

func (s *Sweeper) runExpiry() {
	ticker := time.NewTicker(s.ExpiryInterval)
	defer ticker.Stop()

	for range ticker.C {
		count, err := s.Orders.ExpireOverdue(time.Now())
		if err != nil {
			log.Printf("expiry sweep failed: %v", err)
			continue
		}
		if count > 0 {
			log.Printf("expiry sweep: expired %d overdue order(s)", count)
		}
	}
}

func (s *Sweeper) runReminders() {
	ticker := time.NewTicker(s.ReminderInterval)
	defer ticker.Stop()

	for range ticker.C {
		count, err := s.Orders.RemindUpcoming(time.Now())
		if err != nil {
			log.Printf("reminder sweep failed: %v", err)
			continue
		}
		if count > 0 {
			log.Printf("reminder sweep: notified %d order(s)", count)
		}
	}
}
