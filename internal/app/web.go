package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/relabs-tech/motion_suit/internal/config"
	"github.com/relabs-tech/motion_suit/internal/suit"
)

// maxEvents bounds the event history served on /api/events.
const maxEvents = 50

// Snapshot is the latest known suit picture as served on /api/angles.
type Snapshot struct {
	Seq        uint64            `json:"seq"`
	Shirt      suit.DeviceState  `json:"shirt"`
	Pants      suit.DeviceState  `json:"pants"`
	Upper      *AbsoluteUpperMsg `json:"upper,omitempty"`
	Lower      *AbsoluteLowerMsg `json:"lower,omitempty"`
	LocalUpper *LocalUpperMsg    `json:"local_upper,omitempty"`
	LocalLower *LocalLowerMsg    `json:"local_lower,omitempty"`
}

// suitCache keeps the most recent message of every kind. Seq increases on
// each update so pushers can skip unchanged snapshots.
type suitCache struct {
	mu     sync.RWMutex
	snap   Snapshot
	events []EventMsg
	subs   map[chan EventMsg]struct{}
}

func newSuitCache() *suitCache {
	return &suitCache{subs: make(map[chan EventMsg]struct{})}
}

func (c *suitCache) setUpper(m AbsoluteUpperMsg) {
	c.mu.Lock()
	c.snap.Upper = &m
	c.snap.Seq++
	c.mu.Unlock()
}

func (c *suitCache) setLower(m AbsoluteLowerMsg) {
	c.mu.Lock()
	c.snap.Lower = &m
	c.snap.Seq++
	c.mu.Unlock()
}

func (c *suitCache) setLocalUpper(m LocalUpperMsg) {
	c.mu.Lock()
	c.snap.LocalUpper = &m
	c.snap.Seq++
	c.mu.Unlock()
}

func (c *suitCache) setLocalLower(m LocalLowerMsg) {
	c.mu.Lock()
	c.snap.LocalLower = &m
	c.snap.Seq++
	c.mu.Unlock()
}

// addEvent records e, tracks device states and fans the event out to
// subscribers. Slow subscribers miss events rather than block the cache.
func (c *suitCache) addEvent(e EventMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e.Kind == EventState && e.State != nil {
		if e.Device.Has(suit.Shirt) {
			c.snap.Shirt = e.State.Next
		}
		if e.Device.Has(suit.Pants) {
			c.snap.Pants = e.State.Next
		}
		c.snap.Seq++
	}

	c.events = append(c.events, e)
	if len(c.events) > maxEvents {
		c.events = c.events[len(c.events)-maxEvents:]
	}

	for ch := range c.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (c *suitCache) snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

func (c *suitCache) recentEvents() []EventMsg {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]EventMsg, len(c.events))
	copy(out, c.events)
	return out
}

func (c *suitCache) subscribeEvents() (<-chan EventMsg, func()) {
	ch := make(chan EventMsg, 16)
	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()
	return ch, func() {
		c.mu.Lock()
		delete(c.subs, ch)
		c.mu.Unlock()
	}
}

// webServer serves the cached suit data and forwards control actions to the
// streamer through pub.
type webServer struct {
	cache        *suitCache
	pub          publisher
	commandTopic string
}

func (s *webServer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/angles", s.handleAngles)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/ws/angles", s.handleAnglesWS)
	mux.HandleFunc("/ws/control", s.handleControlWS)

	// Static files from ./web as the root
	mux.Handle("/", http.FileServer(http.Dir("web")))
	return mux
}

func (s *webServer) handleAngles(w http.ResponseWriter, r *http.Request) {
	snap := s.cache.snapshot()
	if snap.Seq == 0 {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, snap)
}

func (s *webServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.cache.recentEvents())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

func RunWeb() error {
	cfg := config.Get()

	client, err := connectMQTT("web", cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	cache := newSuitCache()

	if err := subscribeJSON(client, "web", cfg.TopicAbsoluteUpper, cache.setUpper); err != nil {
		return err
	}
	if err := subscribeJSON(client, "web", cfg.TopicAbsoluteLower, cache.setLower); err != nil {
		return err
	}
	if err := subscribeJSON(client, "web", cfg.TopicLocalUpper, cache.setLocalUpper); err != nil {
		return err
	}
	if err := subscribeJSON(client, "web", cfg.TopicLocalLower, cache.setLocalLower); err != nil {
		return err
	}
	if err := subscribeJSON(client, "web", eventsFilter(cfg.TopicEvents), cache.addEvent); err != nil {
		return err
	}

	srv := &webServer{
		cache:        cache,
		pub:          mqttPublisher{client: client, component: "web"},
		commandTopic: cfg.TopicCommand,
	}

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, srv.routes())
}
