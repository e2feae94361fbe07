package dsp

// Buffer is a stereo, block-sized sample buffer. Its backing array is
// allocated once at pool-creation time and padded to a 16-byte-aligned
// length so SIMD-friendly code can walk it without a bounds-straddling
// tail; the audio thread only ever reads slices of it, never grows it.
type Buffer struct {
	L []float32
	R []float32
}

func newBuffer(blockSize int) *Buffer {
	return &Buffer{L: make([]float32, alignedLen(blockSize)), R: make([]float32, alignedLen(blockSize))}
}

// alignedLen pads n up to a multiple of 4 float32s (16 bytes), the
// alignment the pre-allocated pool buffers are sized to.
func alignedLen(n int) int {
	const align = 4
	if rem := n % align; rem != 0 {
		n += align - rem
	}
	return n
}

func (b *Buffer) Clear() {
	for i := range b.L {
		b.L[i] = 0
		b.R[i] = 0
	}
}

func (b *Buffer) AddFrom(other *Buffer) {
	for i := range b.L {
		b.L[i] += other.L[i]
		b.R[i] += other.R[i]
	}
}

// Pool hands out pre-allocated Buffers from a fixed-size free list. Get
// never allocates; an empty pool returns nil, and a caller on the audio
// thread must treat that as "drop this unit of work," per the real-time
// safety rule that the audio thread never allocates.
type Pool struct {
	free      chan *Buffer
	blockSize int
}

// NewPool pre-allocates n buffers of blockSize stereo samples each.
func NewPool(n, blockSize int) *Pool {
	p := &Pool{free: make(chan *Buffer, n), blockSize: blockSize}
	for i := 0; i < n; i++ {
		p.free <- newBuffer(blockSize)
	}
	return p
}

// lease hands out a buffer for the caller's lifetime rather than one
// block — used by Track/SendBus setup, which runs before the real-time
// loop starts, not from inside ProcessBlock. Falls back to a fresh
// allocation only if the pool is unexpectedly exhausted at setup time.
func (p *Pool) lease() *Buffer {
	select {
	case b := <-p.free:
		b.Clear()
		return b
	default:
		return newBuffer(p.blockSize)
	}
}

func (p *Pool) Get() *Buffer {
	select {
	case b := <-p.free:
		b.Clear()
		return b
	default:
		return nil
	}
}

func (p *Pool) Put(b *Buffer) {
	select {
	case p.free <- b:
	default:
		// pool over-full (shouldn't happen if every Get is paired with a
		// Put); drop rather than block the audio thread.
	}
}
