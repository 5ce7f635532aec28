package devices

import (
	"sort"
	"sync"
	"time"

	"agrodetect/models"
)

// ControlFunc is called after a device is enabled or disabled.
type ControlFunc func(models.EspControl)

// Registry tracks ESP camera units for the lifetime of the process.
// Devices are created lazily by the first heartbeat, enable or disable.
type Registry struct {
	mu        sync.RWMutex
	devices   map[string]*models.EspDevice
	onControl []ControlFunc
	now       func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[string]*models.EspDevice),
		now:     time.Now,
	}
}

// OnControl registers fn to be notified of enable/disable changes. Call before serving.
func (r *Registry) OnControl(fn ControlFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onControl = append(r.onControl, fn)
}

func (r *Registry) getOrCreate(id string) *models.EspDevice {
	d, ok := r.devices[id]
	if !ok {
		d = &models.EspDevice{DeviceID: id, Enabled: true}
		r.devices[id] = d
	}
	return d
}

// Heartbeat records a status report and returns a copy of the device.
func (r *Registry) Heartbeat(hb models.Heartbeat) models.EspDevice {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.getOrCreate(hb.DeviceID)
	now := r.now().UTC()
	d.LastSeen = &now
	d.IP = hb.IP
	d.FreeHeap = hb.FreeHeap
	return *d
}

// SetEnabled flips the enabled flag and notifies the control listeners.
func (r *Registry) SetEnabled(id string, enabled bool) models.EspDevice {
	r.mu.Lock()
	d := r.getOrCreate(id)
	d.Enabled = enabled
	snapshot := *d
	listeners := append([]ControlFunc(nil), r.onControl...)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(models.EspControl{DeviceID: id, Enabled: enabled})
	}
	return snapshot
}

// Get returns a copy of the device, if known.
func (r *Registry) Get(id string) (models.EspDevice, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	if !ok {
		return models.EspDevice{}, false
	}
	return *d, true
}

// List returns copies of all devices sorted by id.
func (r *Registry) List() []models.EspDevice {
	r.mu.RLock()
	out := make([]models.EspDevice, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, *d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}
