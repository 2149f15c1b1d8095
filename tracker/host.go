package tracker

import (
	"time"

	"github.com/outofforest/msgbus/wire"
)

const hostAliveTimeout = 5 * time.Minute

// Host is a physical or virtual host observed indirectly through the
// instances running on it: hostname, concurrency and sensor readings,
// gathered from whichever instance last reported them.
type Host struct {
	ID ID

	Hostname             string
	CPUConcurrentThreads int
	ShortAverageLoad     float64
	LongAverageLoad      float64
	TotalRAM             uint64
	FreeRAM              uint64
	TotalSwap            uint64
	FreeSwap             uint64
	MinTemperature       float64
	MaxTemperature       float64
	PowerSupplyKind      string

	live    liveness
	changes changeSet
}

// ID is a numeric identifier shared by hosts, instances and nodes.
type ID = wire.ID

func newHost(id ID) *Host {
	return &Host{ID: id, live: newLiveness(hostAliveTimeout)}
}

// Changes drains the accumulated change mask.
func (h *Host) Changes() Changes {
	return h.changes.drain()
}

// IsAlive reports whether the host's alive timeout has not expired.
func (h *Host) IsAlive() bool {
	return h.live.isAlive()
}

func (h *Host) noticeAlive(now time.Time) {
	if h.live.noticeAlive(now) {
		h.changes.add(ChangeStartedResponding)
	}
}

func (h *Host) update(now time.Time) {
	if h.live.update(now) {
		h.changes.add(ChangeStoppedResponding)
	}
}

// SetHostname records the host's name, interned through cache.
func (h *Host) SetHostname(name string, cache *StringCache) {
	h.Hostname = cache.Cached(name)
	h.changes.add(ChangeSensors)
}

// SetCPUConcurrentThreads records the hardware concurrency sensor value.
func (h *Host) SetCPUConcurrentThreads(n int) {
	h.CPUConcurrentThreads = n
	h.changes.add(ChangeSensors)
}

// SetAverageLoad records the short and long rolling load averages.
func (h *Host) SetAverageLoad(short, long float64) {
	h.ShortAverageLoad = short
	h.LongAverageLoad = long
	h.changes.add(ChangeSensors)
}

// SetRAMUsage records total/free RAM in bytes.
func (h *Host) SetRAMUsage(total, free uint64) {
	h.TotalRAM = total
	h.FreeRAM = free
	h.changes.add(ChangeSensors)
}

// SetSwapUsage records total/free swap in bytes.
func (h *Host) SetSwapUsage(total, free uint64) {
	h.TotalSwap = total
	h.FreeSwap = free
	h.changes.add(ChangeSensors)
}

// SetTemperatureRange records the minimum and maximum reported
// temperatures.
func (h *Host) SetTemperatureRange(min, max float64) {
	h.MinTemperature = min
	h.MaxTemperature = max
	h.changes.add(ChangeSensors)
}

// SetPowerSupplyKind records the power supply kind sensor value.
func (h *Host) SetPowerSupplyKind(kind string, cache *StringCache) {
	h.PowerSupplyKind = cache.Cached(kind)
	h.changes.add(ChangeSensors)
}
