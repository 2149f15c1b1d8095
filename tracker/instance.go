package tracker

import "time"

const instanceAliveTimeout = 3 * time.Minute

// Instance is one running process of the bus, observed through the
// endpoints/routers/bridges it hosts.
type Instance struct {
	ID ID

	HostID       ID
	AppName      string
	CompilerInfo string
	VersionInfo  string

	live    liveness
	changes changeSet
}

func newInstance(id ID) *Instance {
	return &Instance{live: newLiveness(instanceAliveTimeout), ID: id}
}

// Changes drains the accumulated change mask.
func (in *Instance) Changes() Changes {
	return in.changes.drain()
}

// IsAlive reports whether the instance's alive timeout has not expired.
func (in *Instance) IsAlive() bool {
	return in.live.isAlive()
}

func (in *Instance) noticeAlive(now time.Time) {
	if in.live.noticeAlive(now) {
		in.changes.add(ChangeStartedResponding)
	}
}

func (in *Instance) update(now time.Time) {
	if in.live.update(now) {
		in.changes.add(ChangeStoppedResponding)
	}
}

// SetHostID records which host this instance runs on.
func (in *Instance) SetHostID(hostID ID) {
	if in.HostID != hostID {
		in.HostID = hostID
		in.changes.add(ChangeEndpointInfo)
	}
}

// SetAppName records the application name, interned through cache.
func (in *Instance) SetAppName(name string, cache *StringCache) {
	in.AppName = cache.Cached(name)
	in.changes.add(ChangeEndpointInfo)
}

// SetCompilerInfo records the build's compiler identification string.
func (in *Instance) SetCompilerInfo(info string, cache *StringCache) {
	in.CompilerInfo = cache.Cached(info)
	in.changes.add(ChangeEndpointInfo)
}

// SetVersionInfo records the build's version identification string.
func (in *Instance) SetVersionInfo(info string, cache *StringCache) {
	in.VersionInfo = cache.Cached(info)
	in.changes.add(ChangeEndpointInfo)
}
