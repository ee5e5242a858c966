package app

import (
	"fmt"
	"image"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/motion_suit/internal/config"
	"github.com/relabs-tech/motion_suit/internal/suit"
)

// DisplayData holds the latest data for display
type DisplayData struct {
	mu sync.RWMutex

	shirt suit.DeviceState
	pants suit.DeviceState

	upper     AbsoluteUpperMsg
	haveUpper bool
	lower     AbsoluteLowerMsg
	haveLower bool

	lastEvent string
}

// displayView is a lock-free copy of DisplayData for one redraw.
type displayView struct {
	shirt, pants         suit.DeviceState
	chestYaw, waistYaw   float64
	haveUpper, haveLower bool
	lastEvent            string
}

func (d *DisplayData) setUpper(m AbsoluteUpperMsg) {
	d.mu.Lock()
	d.upper, d.haveUpper = m, true
	d.mu.Unlock()
}

func (d *DisplayData) setLower(m AbsoluteLowerMsg) {
	d.mu.Lock()
	d.lower, d.haveLower = m, true
	d.mu.Unlock()
}

func (d *DisplayData) addEvent(e EventMsg) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e.Kind == EventState && e.State != nil {
		if e.Device.Has(suit.Shirt) {
			d.shirt = e.State.Next
		}
		if e.Device.Has(suit.Pants) {
			d.pants = e.State.Next
		}
		return
	}
	d.lastEvent = e.String()
}

func (d *DisplayData) view() displayView {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return displayView{
		shirt:     d.shirt,
		pants:     d.pants,
		chestYaw:  d.upper.Joints.Chest.Z,
		waistYaw:  d.lower.Joints.Waist.Z,
		haveUpper: d.haveUpper,
		haveLower: d.haveLower,
		lastEvent: d.lastEvent,
	}
}

func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := openDisplay(bus, cfg.DisplayI2CAddr)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized at 0x%02X", cfg.DisplayI2CAddr)

	if err := dev.Draw(dev.Bounds(), renderSplash(), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &DisplayData{}

	client, err := connectMQTT("display", cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	if err := subscribeJSON(client, "display", cfg.TopicAbsoluteUpper, data.setUpper); err != nil {
		return err
	}
	if err := subscribeJSON(client, "display", cfg.TopicAbsoluteLower, data.setLower); err != nil {
		return err
	}
	if err := subscribeJSON(client, "display", eventsFilter(cfg.TopicEvents), data.addEvent); err != nil {
		return err
	}

	// Display update loop
	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		if err := dev.Draw(dev.Bounds(), renderStatus(data.view()), image.Point{}); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

// displayBus sends every transaction to addr. ssd1306.NewI2C always talks
// to 0x3C, so the configured address is applied here.
type displayBus struct {
	i2c.Bus
	addr uint16
}

func (b *displayBus) Tx(_ uint16, w, r []byte) error {
	return b.Bus.Tx(b.addr, w, r)
}

func (b *displayBus) String() string {
	return fmt.Sprintf("%s@0x%02X", b.Bus.String(), b.addr)
}

func openDisplay(bus i2c.Bus, addr uint16) (*ssd1306.Dev, error) {
	return ssd1306.NewI2C(&displayBus{Bus: bus, addr: addr}, &ssd1306.DefaultOpts)
}

// newCanvas returns a blank 128x64 frame and a drawer for it.
func newCanvas() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func drawLine(drawer *font.Drawer, x, y int, text string) {
	drawer.Dot = fixed.P(x, y)
	drawer.DrawString(text)
}

// renderStatus shows both halves' states and the chest and waist headings.
func renderStatus(v displayView) *image1bit.VerticalLSB {
	img, drawer := newCanvas()

	drawLine(drawer, 0, 12, "SHIRT "+shortState(v.shirt))
	drawLine(drawer, 0, 25, "PANTS "+shortState(v.pants))

	if v.haveUpper {
		drawLine(drawer, 0, 38, fmt.Sprintf("Chest Y:%6.1f", v.chestYaw))
	} else {
		drawLine(drawer, 0, 38, "Chest  ...")
	}
	if v.haveLower {
		drawLine(drawer, 0, 51, fmt.Sprintf("Waist Y:%6.1f", v.waistYaw))
	} else {
		drawLine(drawer, 0, 51, "Waist  ...")
	}

	if v.lastEvent != "" {
		drawLine(drawer, 0, 63, clip(v.lastEvent, 18))
	}
	return img
}

func renderSplash() *image1bit.VerticalLSB {
	img, drawer := newCanvas()
	drawLine(drawer, 10, 26, "Motion Suit")
	drawLine(drawer, 5, 43, "Waiting for")
	drawLine(drawer, 25, 56, "streamer")
	return img
}

func shortState(s suit.DeviceState) string {
	return strings.ToUpper(clip(s.String(), 12))
}

// clip cuts s to the n characters that fit on one line.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
