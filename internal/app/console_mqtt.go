package app

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/relabs-tech/motion_suit/internal/config"
	"github.com/relabs-tech/motion_suit/internal/humanoid"
)

// throttle lets one call per interval through for each key.
type throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[string]time.Time
}

func newThrottle(interval time.Duration) *throttle {
	return &throttle{interval: interval, last: make(map[string]time.Time)}
}

func (t *throttle) allow(key string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if now.Sub(t.last[key]) < t.interval {
		return false
	}
	t.last[key] = now
	return true
}

func RunConsoleMQTT() error {
	cfg := config.Get()

	client, err := connectMQTT("console", cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}

	gate := newThrottle(time.Duration(cfg.ConsoleLogInterval) * time.Millisecond)

	// Absolute angles
	if err := subscribeJSON(client, "console", cfg.TopicAbsoluteUpper, func(m AbsoluteUpperMsg) {
		if gate.allow("upper", time.Now()) {
			fmt.Println(formatUpper(m.Joints))
		}
	}); err != nil {
		return err
	}
	if err := subscribeJSON(client, "console", cfg.TopicAbsoluteLower, func(m AbsoluteLowerMsg) {
		if gate.allow("lower", time.Now()) {
			fmt.Println(formatLower(m.Joints))
		}
	}); err != nil {
		return err
	}

	// Local chest and waist rotations
	if err := subscribeJSON(client, "console", cfg.TopicLocalUpper, func(m LocalUpperMsg) {
		if gate.allow("local-upper", time.Now()) {
			q := m.Joints.Chest
			fmt.Printf("[LOCAL-U] chest w=%6.3f x=%6.3f y=%6.3f z=%6.3f\n", q.W, q.X, q.Y, q.Z)
		}
	}); err != nil {
		return err
	}
	if err := subscribeJSON(client, "console", cfg.TopicLocalLower, func(m LocalLowerMsg) {
		if gate.allow("local-lower", time.Now()) {
			q := m.Joints.Waist
			fmt.Printf("[LOCAL-L] waist w=%6.3f x=%6.3f y=%6.3f z=%6.3f\n", q.W, q.X, q.Y, q.Z)
		}
	}); err != nil {
		return err
	}

	// Events are never throttled
	if err := subscribeJSON(client, "console", eventsFilter(cfg.TopicEvents), func(e EventMsg) {
		fmt.Printf("[EVENT]   %s\n", e)
	}); err != nil {
		return err
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

func formatUpper(u humanoid.UpperBody[humanoid.Vec3]) string {
	return fmt.Sprintf("[UPPER]   chest=%s  L arm=%s/%s  R arm=%s/%s",
		u.Chest, u.LeftUpperArm, u.LeftLowerArm, u.RightUpperArm, u.RightLowerArm)
}

func formatLower(l humanoid.LowerBody[humanoid.Vec3]) string {
	return fmt.Sprintf("[LOWER]   waist=%s  L leg=%s/%s  R leg=%s/%s",
		l.Waist, l.LeftUpperLeg, l.LeftLowerLeg, l.RightUpperLeg, l.RightLowerLeg)
}
