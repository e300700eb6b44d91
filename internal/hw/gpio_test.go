package hw

import (
	"sync/atomic"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func testGPIO(pins ...*gpiotest.Pin) *GPIO {
	byName := map[string]gpio.PinIO{}
	for _, p := range pins {
		byName[p.N] = p
	}
	return newGPIO(func(name string) gpio.PinIO {
		if p, ok := byName[name]; ok {
			return p
		}
		return nil
	}, GPIOConfig{})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestGPIOEdgeDelivery(t *testing.T) {
	btn := &gpiotest.Pin{N: "GPIO17", EdgesChan: make(chan gpio.Level, 4)}
	g := testGPIO(btn)
	defer g.Close()

	var presses atomic.Int32
	if err := g.ConfigureEdgeInterrupt("GPIO17", EdgeFalling, 0, func() { presses.Add(1) }); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if btn.P != gpio.PullUp {
		t.Fatalf("button not pulled up: %v", btn.P)
	}
	btn.EdgesChan <- gpio.Low
	btn.EdgesChan <- gpio.Low
	waitFor(t, func() bool { return presses.Load() == 2 })
}

func TestGPIOEdgeDebounced(t *testing.T) {
	btn := &gpiotest.Pin{N: "GPIO17", EdgesChan: make(chan gpio.Level, 4)}
	g := testGPIO(btn)
	defer g.Close()

	var presses atomic.Int32
	if err := g.ConfigureEdgeInterrupt("GPIO17", EdgeFalling, time.Hour, func() { presses.Add(1) }); err != nil {
		t.Fatalf("configure: %v", err)
	}
	for i := 0; i < 3; i++ {
		btn.EdgesChan <- gpio.Low
	}
	waitFor(t, func() bool { return len(btn.EdgesChan) == 0 })
	time.Sleep(20 * time.Millisecond)
	if got := presses.Load(); got != 1 {
		t.Fatalf("expected 1 accepted edge, got %d", got)
	}
}

func TestGPIOIndicator(t *testing.T) {
	led := &gpiotest.Pin{N: "GPIO27", L: gpio.High}
	g := testGPIO(led)
	ind, err := g.Indicator("GPIO27")
	if err != nil {
		t.Fatalf("indicator: %v", err)
	}
	if led.Read() != gpio.Low {
		t.Fatalf("indicator should start off")
	}
	if err := ind.Set(true); err != nil {
		t.Fatalf("set: %v", err)
	}
	if led.Read() != gpio.High {
		t.Fatalf("indicator not on")
	}
	if err := g.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestGPIOUnknownPin(t *testing.T) {
	g := testGPIO()
	if _, err := g.Indicator("GPIO99"); err == nil {
		t.Fatalf("expected error for unknown pin")
	}
	if err := g.ConfigureEdgeInterrupt("GPIO99", EdgeFalling, 0, func() {}); err == nil {
		t.Fatalf("expected error for unknown pin")
	}
	if err := g.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := g.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestGPIOConfigureAfterClose(t *testing.T) {
	btn := &gpiotest.Pin{N: "GPIO17", EdgesChan: make(chan gpio.Level, 1)}
	g := testGPIO(btn)
	_ = g.Close()
	if err := g.ConfigureEdgeInterrupt("GPIO17", EdgeFalling, 0, func() {}); err == nil {
		t.Fatalf("expected error after close")
	}
}
