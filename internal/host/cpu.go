package host

import (
	"time"

	"golang.org/x/sys/unix"
)

// cpuMeter reports the process's CPU share since the previous sample.
type cpuMeter struct {
	lastWall time.Time
	lastCPU  time.Duration
}

func (m *cpuMeter) sample() float64 {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	cpu := time.Duration(ru.Utime.Nano() + ru.Stime.Nano())
	now := time.Now()

	var usage float64
	if !m.lastWall.IsZero() {
		if wall := now.Sub(m.lastWall); wall > 0 {
			usage = float64(cpu-m.lastCPU) / float64(wall)
		}
	}
	m.lastWall = now
	m.lastCPU = cpu
	return usage
}
