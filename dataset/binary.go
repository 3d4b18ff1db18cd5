package dataset

import (
	"encoding/binary"
	"math"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/gomachine/gomachine/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	binaryMagic = "GMXMAT01"
	headerSize  = 24
)

// WriteBinary writes m to path in the .gmx format. The file is sized up
// front and filled through a writable mapping.
func WriteBinary(path string, m mat.Matrix) (err error) {
	const op = "dataset.WriteBinary"
	if m == nil {
		return errors.Wrap(errors.ErrEmptyData, op)
	}
	rows, cols := m.Dims()

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "%s: create %s", op, path)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, op)
		}
	}()
	if err := f.Truncate(int64(headerSize + 8*rows*cols)); err != nil {
		return errors.Wrap(err, op)
	}

	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		return errors.Wrap(err, op)
	}
	defer func() {
		if uerr := data.Unmap(); err == nil && uerr != nil {
			err = errors.Wrap(uerr, op)
		}
	}()

	copy(data[:8], binaryMagic)
	binary.LittleEndian.PutUint64(data[8:16], uint64(rows))
	binary.LittleEndian.PutUint64(data[16:24], uint64(cols))
	off := headerSize
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			binary.LittleEndian.PutUint64(data[off:off+8], math.Float64bits(m.At(i, j)))
			off += 8
		}
	}
	return errors.Wrap(data.Flush(), op)
}

// MappedMatrix is a read-only mat.Matrix backed by a memory-mapped .gmx file.
// It must not be used after Close.
type MappedMatrix struct {
	file *os.File
	data mmap.MMap
	rows int
	cols int
}

// OpenBinary maps a .gmx file. A wrong magic or a size that does not match
// the header yields a ValueError.
func OpenBinary(path string) (*MappedMatrix, error) {
	const op = "dataset.OpenBinary"
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	if info.Size() < headerSize {
		return nil, errors.NewValueError(op, "file is too small for a .gmx header")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, op)
	}

	mm := &MappedMatrix{file: f, data: data}
	if err := mm.readHeader(info.Size()); err != nil {
		mm.Close()
		return nil, err
	}
	return mm, nil
}

func (m *MappedMatrix) readHeader(size int64) error {
	const op = "dataset.OpenBinary"
	if string(m.data[:8]) != binaryMagic {
		return errors.NewValueError(op, "bad magic, not a .gmx file")
	}
	rows := binary.LittleEndian.Uint64(m.data[8:16])
	cols := binary.LittleEndian.Uint64(m.data[16:24])
	if rows == 0 || cols == 0 {
		return errors.NewValueError(op, "matrix has a zero dimension")
	}
	if uint64(size-headerSize)/8/cols < rows || uint64(size) != headerSize+8*rows*cols {
		return errors.NewValueError(op, "file size does not match header")
	}
	m.rows, m.cols = int(rows), int(cols)
	return nil
}

// Dims implements mat.Matrix.
func (m *MappedMatrix) Dims() (int, int) { return m.rows, m.cols }

// At implements mat.Matrix.
func (m *MappedMatrix) At(i, j int) float64 {
	if uint(i) >= uint(m.rows) {
		panic(mat.ErrRowAccess)
	}
	if uint(j) >= uint(m.cols) {
		panic(mat.ErrColAccess)
	}
	off := headerSize + 8*(i*m.cols+j)
	return math.Float64frombits(binary.LittleEndian.Uint64(m.data[off : off+8]))
}

// T implements mat.Matrix.
func (m *MappedMatrix) T() mat.Matrix { return mat.Transpose{Matrix: m} }

// Row copies row i into dst (allocated when nil) and returns it.
func (m *MappedMatrix) Row(dst []float64, i int) []float64 {
	if dst == nil {
		dst = make([]float64, m.cols)
	}
	for j := range dst[:m.cols] {
		dst[j] = m.At(i, j)
	}
	return dst
}

// Close unmaps the data and closes the file.
func (m *MappedMatrix) Close() error {
	var err error
	if m.data != nil {
		err = m.data.Unmap()
		m.data = nil
	}
	if m.file != nil {
		if cerr := m.file.Close(); err == nil {
			err = cerr
		}
		m.file = nil
	}
	return err
}
