// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ErrNoHALAccess is returned when a device provider does not expose the
// underlying HAL device and queue.
var ErrNoHALAccess = errors.New("render: device provider does not expose HAL types")

// DeviceHandle provides GPU device access from the host application.
//
// The host (e.g. a gogpu.App) implements DeviceHandle and passes it to the
// compositor, which then renders on the shared device instead of creating
// its own. DeviceHandle is an alias for gpucontext.DeviceProvider so any
// provider from that ecosystem plugs in directly.
type DeviceHandle = gpucontext.DeviceProvider

// HALFromProvider extracts the hal device and queue from a device provider.
// The provider must additionally implement HalDevice() any and HalQueue()
// any returning hal.Device and hal.Queue, the way gogpu contexts do.
func HALFromProvider(provider any) (hal.Device, hal.Queue, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, nil, ErrNoHALAccess
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHALAccess)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHALAccess)
	}
	return device, queue, nil
}

// NullDeviceHandle is a DeviceHandle that provides nil implementations.
// Used where no GPU is available.
type NullDeviceHandle struct{}

// Device returns nil for the null device.
func (NullDeviceHandle) Device() gpucontext.Device { return nil }

// Queue returns nil for the null device.
func (NullDeviceHandle) Queue() gpucontext.Queue { return nil }

// Adapter returns nil for the null device.
func (NullDeviceHandle) Adapter() gpucontext.Adapter { return nil }

// SurfaceFormat returns undefined format for the null device.
func (NullDeviceHandle) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

// Ensure NullDeviceHandle implements DeviceHandle.
var _ DeviceHandle = NullDeviceHandle{}
