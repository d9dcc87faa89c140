package vm

import (
	"gopheraml/device/acpi/aml/object"
	ksync "gopheraml/kernel/sync"
	"sync"
)

// RegionHandler performs the accesses to an operation region space.
// Address is the absolute address (region offset plus the offset of the
// access) and accessBits is one of 8, 16, 32 or 64.
type RegionHandler interface {
	Read(region *object.Region, address uint64, accessBits uint8) (uint64, error)
	Write(region *object.Region, address uint64, accessBits uint8, value uint64) error
}

// RegisterRegionHandler installs h as the handler for space, replacing
// any previous handler. Passing nil removes the handler.
func (vm *VM) RegisterRegionHandler(space object.RegionSpace, h RegionHandler) {
	// Handlers are only looked up while the interpreter lock is held.
	vm.lock.AcquireTimeout(ksync.Forever)
	defer vm.lock.Release()

	if h == nil {
		delete(vm.regionHandlers, space)
		return
	}
	vm.regionHandlers[space] = h
}

func (c *execContext) regionAccess(regionObj *object.Object, byteOffset, width uint64) (*object.Region, RegionHandler, error) {
	region := regionObj.Region
	if byteOffset+width/8 > region.Length {
		c.vm.log.Warn("field access outside of its region", "table", c.table, "region", regionObj.Path(), "offset", byteOffset, "width", width, "length", region.Length)
		return nil, nil, c.raise(ExceptionRegionLimit, errRegionLimit)
	}

	if region.Data != nil {
		return region, nil, nil
	}

	h := c.vm.regionHandlers[region.Space]
	if h == nil {
		c.vm.log.Warn("no handler for region space", "table", c.table, "region", regionObj.Path(), "space", region.Space.String())
		return nil, nil, c.raise(ExceptionInvalidSpaceID, errNoRegionHandler)
	}

	return region, h, nil
}

func (c *execContext) readRegion(regionObj *object.Object, byteOffset, width uint64) (uint64, error) {
	region, h, err := c.regionAccess(regionObj, byteOffset, width)
	if err != nil {
		return 0, err
	}

	if h == nil {
		return readLE(region.Data[byteOffset:], width/8), nil
	}

	v, err := h.Read(region, region.Offset+byteOffset, uint8(width))
	if err != nil {
		return 0, c.raise(ExceptionError, err)
	}
	return v, nil
}

func (c *execContext) writeRegion(regionObj *object.Object, byteOffset, width, v uint64) error {
	region, h, err := c.regionAccess(regionObj, byteOffset, width)
	if err != nil {
		return err
	}

	if h == nil {
		writeLE(region.Data[byteOffset:], width/8, v)
		return nil
	}

	if err = h.Write(region, region.Offset+byteOffset, uint8(width), v); err != nil {
		return c.raise(ExceptionError, err)
	}
	return nil
}

func readLE(b []byte, n uint64) uint64 {
	var v uint64
	for i := uint64(0); i < n; i++ {
		v |= uint64(b[i]) << (8 * i)
	}

	return v
}

func writeLE(b []byte, n, v uint64) {
	for i := uint64(0); i < n; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// MemorySpace is a sparse, byte addressable RegionHandler backed by host
// memory. It serves tests and offline tools that run AML without access to
// real hardware.
type MemorySpace struct {
	mu    sync.Mutex
	bytes map[uint64]byte
}

// NewMemorySpace returns an empty MemorySpace; unwritten bytes read as 0.
func NewMemorySpace() *MemorySpace {
	return &MemorySpace{bytes: make(map[uint64]byte)}
}

// Read implements RegionHandler.
func (m *MemorySpace) Read(_ *object.Region, address uint64, accessBits uint8) (uint64, error) {
	if !validAccessBits(accessBits) {
		return 0, errAccessWidth
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var v uint64
	for i := uint64(0); i < uint64(accessBits/8); i++ {
		v |= uint64(m.bytes[address+i]) << (8 * i)
	}
	return v, nil
}

// Write implements RegionHandler.
func (m *MemorySpace) Write(_ *object.Region, address uint64, accessBits uint8, value uint64) error {
	if !validAccessBits(accessBits) {
		return errAccessWidth
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := uint64(0); i < uint64(accessBits/8); i++ {
		m.bytes[address+i] = byte(value >> (8 * i))
	}
	return nil
}

// Peek copies len(b) bytes starting at address into b.
func (m *MemorySpace) Peek(address uint64, b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range b {
		b[i] = m.bytes[address+uint64(i)]
	}
}

// Poke writes b starting at address.
func (m *MemorySpace) Poke(address uint64, b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, v := range b {
		m.bytes[address+uint64(i)] = v
	}
}

func validAccessBits(bits uint8) bool {
	switch bits {
	case 8, 16, 32, 64:
		return true
	}

	return false
}
