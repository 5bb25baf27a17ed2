//go:build !nogpu

package gpu

import (
	"testing"

	"github.com/gogpu/gputypes"
)

func TestAlignBufferSize(t *testing.T) {
	cases := []struct{ in, want uint64 }{
		{1, 4}, {3, 4}, {4, 4}, {5, 8}, {44, 44}, {45, 48},
	}
	for _, c := range cases {
		if got := alignBufferSize(c.in); got != c.want {
			t.Errorf("alignBufferSize(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestPoolSizeClass(t *testing.T) {
	cases := []struct{ in, want uint64 }{
		{1, 1024}, {1024, 1024}, {1025, 2048}, {4096, 4096}, {5000, 8192},
	}
	for _, c := range cases {
		if got := poolSizeClass(c.in); got != c.want {
			t.Errorf("poolSizeClass(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestBufferPoolReuse(t *testing.T) {
	device := &mockDevice{}
	pool := newBufferPool()
	usage := gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst

	buf, props, err := pool.get(device, "test", 100, usage)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if props.size != 1024 {
		t.Errorf("size class = %d, want 1024", props.size)
	}
	pool.put(props, buf)

	// Same class, different requested size: must reuse, not allocate.
	buf2, props2, err := pool.get(device, "test", 900, usage)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if device.buffersCreated != 1 {
		t.Errorf("buffers created = %d, want 1", device.buffersCreated)
	}
	if buf2 != buf || props2 != props {
		t.Error("pooled buffer was not reused for the same size class")
	}

	// Different usage lands in a different bucket.
	if _, _, err := pool.get(device, "test", 100, gputypes.BufferUsageIndex|gputypes.BufferUsageCopyDst); err != nil {
		t.Fatalf("get: %v", err)
	}
	if device.buffersCreated != 2 {
		t.Errorf("buffers created = %d, want 2", device.buffersCreated)
	}
}

func TestBufferPoolDestroy(t *testing.T) {
	device := &mockDevice{}
	pool := newBufferPool()
	usage := gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst

	buf, props, err := pool.get(device, "test", 10, usage)
	if err != nil {
		t.Fatal(err)
	}
	pool.put(props, buf)
	pool.destroy(device)

	if device.buffersDestroyed != 1 {
		t.Errorf("buffers destroyed = %d, want 1", device.buffersDestroyed)
	}
}

func TestCreateBufferZeroSize(t *testing.T) {
	if _, err := createBuffer(&mockDevice{}, "test", 0, gputypes.BufferUsageVertex); err == nil {
		t.Error("createBuffer(0) succeeded, want error")
	}
}
