package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeTickerFiresOnAdvance(t *testing.T) {
	start := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	f := NewFake(start)
	tk := f.NewTicker(time.Minute)

	f.Advance(30 * time.Second)
	select {
	case <-tk.C:
		t.Fatal("ticker fired early")
	default:
	}

	f.Advance(30 * time.Second)
	select {
	case got := <-tk.C:
		assert.Equal(t, start.Add(time.Minute), got)
	default:
		t.Fatal("ticker did not fire")
	}

	tk.Stop()
	assert.Equal(t, 0, f.TickerCount())
	f.Advance(time.Hour)
	select {
	case <-tk.C:
		t.Fatal("stopped ticker fired")
	default:
	}
}
