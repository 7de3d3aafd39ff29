package source

// Fake is an in-memory Source backed by a byte slice, for driving the
// sender state machine in tests without touching disk.
type Fake struct {
	Data []byte
}

// NewFake returns a Fake wrapping data directly; callers should not mutate
// data afterward.
func NewFake(data []byte) *Fake {
	return &Fake{Data: data}
}

func (f *Fake) Size() int64 {
	return int64(len(f.Data))
}

func (f *Fake) ReadAt(buf []byte, off int64) (int, error) {
	if off >= int64(len(f.Data)) {
		return 0, nil
	}
	n := copy(buf, f.Data[off:])
	return n, nil
}

func (f *Fake) Close() error {
	return nil
}
