//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Backend errors.
var (
	// ErrNoGPU is returned when no usable GPU backend or adapter exists.
	ErrNoGPU = errors.New("gpu: no GPU available")

	// ErrNotInitialized is returned when using a backend before Init.
	ErrNotInitialized = errors.New("gpu: backend not initialized")

	// ErrNilHALDevice is returned when an operation requires a device.
	ErrNilHALDevice = errors.New("gpu: hal device is nil")
)

// Backend owns the GPU instance, device, and queue the compositor runs on.
//
// A backend is created in one of two ways:
//   - Init() brings up its own instance and opens the best adapter
//   - NewBackendWithDevice adopts a device shared by a host application
//     (a gpucontext provider); shared resources are not destroyed on Close.
type Backend struct {
	mu sync.RWMutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	adapterName string

	initialized    bool
	externalDevice bool
}

// NewBackend creates an uninitialized backend. Call Init before use.
func NewBackend() *Backend {
	return &Backend{}
}

// NewBackendWithDevice creates a backend around a device owned by the host
// application. The backend never destroys shared resources.
func NewBackendWithDevice(device hal.Device, queue hal.Queue) (*Backend, error) {
	if device == nil {
		return nil, ErrNilHALDevice
	}
	if queue == nil {
		return nil, fmt.Errorf("gpu: hal queue is nil")
	}
	return &Backend{
		device:         device,
		queue:          queue,
		initialized:    true,
		externalDevice: true,
	}, nil
}

// Init creates the GPU instance, picks an adapter (discrete preferred, then
// integrated), and opens the device and queue.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return nil
	}

	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("%w: vulkan backend not available", ErrNoGPU)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("%w: create instance: %w", ErrNoGPU, err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return fmt.Errorf("%w: no adapters found", ErrNoGPU)
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		for i := range adapters {
			if adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
				selected = &adapters[i]
				break
			}
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return fmt.Errorf("open device: %w", err)
	}

	b.instance = instance
	b.device = openDev.Device
	b.queue = openDev.Queue
	b.adapterName = selected.Info.Name
	b.initialized = true

	slogger().Info("gpu: backend initialized", "adapter", b.adapterName)
	return nil
}

// Close releases the backend's resources in reverse order of creation.
// Shared devices adopted via NewBackendWithDevice are left untouched.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return
	}

	if !b.externalDevice {
		if b.device != nil {
			b.device.Destroy()
		}
		if b.instance != nil {
			b.instance.Destroy()
		}
	}
	b.device = nil
	b.queue = nil
	b.instance = nil
	b.initialized = false
	b.externalDevice = false

	slogger().Debug("gpu: backend closed")
}

// IsInitialized returns true if the backend has been initialized.
func (b *Backend) IsInitialized() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.initialized
}

// AdapterName returns the selected adapter's name, or "" for shared devices.
func (b *Backend) AdapterName() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.adapterName
}

// Device returns the hal device, or nil if not initialized.
func (b *Backend) Device() hal.Device {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.device
}

// Queue returns the hal queue, or nil if not initialized.
func (b *Backend) Queue() hal.Queue {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.queue
}
