package service

import "sync"

// DeviceLocks serializes entitlement operations per device id so concurrent
// requests for the same device never interleave a read-modify-write cycle.
// Operations on different devices do not contend. The lock set is shared by
// every service that mutates licenses.
type DeviceLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewDeviceLocks() *DeviceLocks {
	return &DeviceLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for a device and returns its unlock func.
func (d *DeviceLocks) Lock(deviceID string) func() {
	d.mu.Lock()
	m, ok := d.locks[deviceID]
	if !ok {
		m = &sync.Mutex{}
		d.locks[deviceID] = m
	}
	d.mu.Unlock()

	m.Lock()
	return m.Unlock
}
