package alarms

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sync"
)

const (
	// sectionVersion is written into every slot header.
	sectionVersion uint32 = 1
	// headerSize is the section header: payload size, version, CRC32.
	headerSize = 12
	// SlotPayloadSize bounds an encoded record.
	SlotPayloadSize = 116
	// slotSize is the on-image size of one slot.
	slotSize = headerSize + SlotPayloadSize

	imagePermissions = 0o600
)

// errRecordTooLarge is returned when an encoded record exceeds SlotPayloadSize.
var errRecordTooLarge = errors.New("alarm record too large for slot")

// FileRepository keeps the slots in a fixed-size image file laid out like the
// FRAM alarm section: every slot is a header {size, version, crc32} followed
// by the payload. A zero size marks an empty slot.
type FileRepository struct {
	// mu serialises access to the file.
	mu sync.Mutex
	// file is the open image.
	file *os.File
	// capacity is the number of slots in the image.
	capacity int
}

var _ Repository = (*FileRepository)(nil)

// OpenFile opens or creates the image at path with capacity slots.
func OpenFile(path string, capacity int) (*FileRepository, error) {
	file, err := os.OpenFile(filepath.Clean(path), os.O_RDWR|os.O_CREATE, imagePermissions)
	if err != nil {
		return nil, fmt.Errorf("open alarm image: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("stat alarm image: %w", err)
	}

	if size := int64(capacity * slotSize); info.Size() < size {
		if err = file.Truncate(size); err != nil {
			_ = file.Close()

			return nil, fmt.Errorf("size alarm image: %w", err)
		}
	}

	return &FileRepository{
		file:     file,
		capacity: capacity,
	}, nil
}

// Capacity implements Repository.
func (r *FileRepository) Capacity() int {
	return r.capacity
}

// Get implements Repository.
func (r *FileRepository) Get(_ context.Context, slot int) (Record, error) {
	if err := checkSlot(slot, r.capacity); err != nil {
		return Record{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var buf [slotSize]byte
	if _, err := r.file.ReadAt(buf[:], int64(slot*slotSize)); err != nil {
		return Record{}, fmt.Errorf("read slot %d: %w", slot, err)
	}

	size := binary.LittleEndian.Uint32(buf[0:4])
	if size == 0 {
		return Record{}, ErrNotFound
	}

	version := binary.LittleEndian.Uint32(buf[4:8])
	sum := binary.LittleEndian.Uint32(buf[8:12])

	if size > SlotPayloadSize || version != sectionVersion {
		return Record{}, fmt.Errorf("%w: slot %d size %d version %d", ErrCorrupt, slot, size, version)
	}

	payload := buf[headerSize : headerSize+size]
	if crc32.ChecksumIEEE(payload) != sum {
		return Record{}, fmt.Errorf("%w: slot %d checksum mismatch", ErrCorrupt, slot)
	}

	var rec Record
	if err := rec.UnmarshalBinary(payload); err != nil {
		return Record{}, fmt.Errorf("%w: slot %d: %w", ErrCorrupt, slot, err)
	}

	return rec, nil
}

// Set implements Repository.
func (r *FileRepository) Set(_ context.Context, slot int, rec *Record) error {
	if err := checkSlot(slot, r.capacity); err != nil {
		return err
	}

	payload, err := rec.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	if len(payload) > SlotPayloadSize {
		return fmt.Errorf("%w: %d bytes", errRecordTooLarge, len(payload))
	}

	var buf [slotSize]byte

	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(buf[4:8], sectionVersion)
	binary.LittleEndian.PutUint32(buf[8:12], crc32.ChecksumIEEE(payload))
	copy(buf[headerSize:], payload)

	return r.write(slot, buf[:])
}

// Delete implements Repository.
func (r *FileRepository) Delete(_ context.Context, slot int) error {
	if err := checkSlot(slot, r.capacity); err != nil {
		return err
	}

	var buf [slotSize]byte

	return r.write(slot, buf[:])
}

// Close implements Repository.
func (r *FileRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.file.Close()
}

func (r *FileRepository) write(slot int, buf []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.file.WriteAt(buf, int64(slot*slotSize)); err != nil {
		return fmt.Errorf("write slot %d: %w", slot, err)
	}

	if err := r.file.Sync(); err != nil {
		return fmt.Errorf("sync alarm image: %w", err)
	}

	return nil
}
