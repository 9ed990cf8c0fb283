package edgecache

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// FileStore persists one framed record file per key under a directory, so
// cached edge sets survive process restarts. File names are the xxhash of
// the key; the key itself is stored inside the frame and verified on read,
// so hash collisions degrade to a miss.
type FileStore struct {
	dir string
}

// Frame layout: [Magic(1)][Length(4)][CRC32(4)][Payload(N)].
const (
	frameMagic      = 0xE7
	frameHeaderSize = 9
)

var (
	errBadMagic    = errors.New("edgecache: invalid frame magic")
	errBadChecksum = errors.New("edgecache: frame checksum mismatch")
)

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("edgecache: creating cache dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

type fileRecord struct {
	Key    string  `json:"key"`
	Record *Record `json:"record"`
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%016x.vedge", xxhash.Sum64String(key)))
}

// Get reads and validates the framed record for key. A missing file is a
// miss; a corrupt frame is an error the caller logs and treats as a miss.
func (s *FileStore) Get(key string) (*Record, bool, error) {
	f, err := os.Open(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	payload, err := readFrame(f)
	if err != nil {
		return nil, false, err
	}

	var fr fileRecord
	if err := json.Unmarshal(payload, &fr); err != nil {
		return nil, false, err
	}
	if fr.Key != key {
		return nil, false, nil
	}
	return fr.Record, true, nil
}

// Put writes the record atomically: frame into a temp file, then rename.
func (s *FileStore) Put(key string, rec *Record) error {
	payload, err := json.Marshal(fileRecord{Key: key, Record: rec})
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "vedge-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := writeFrame(tmp, payload); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path(key))
}

func writeFrame(w io.Writer, payload []byte) error {
	header := make([]byte, frameHeaderSize)
	header[0] = frameMagic
	binary.LittleEndian.PutUint32(header[1:5], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[5:9], crc32.ChecksumIEEE(payload))

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	if header[0] != frameMagic {
		return nil, errBadMagic
	}

	length := binary.LittleEndian.Uint32(header[1:5])
	expectedCRC := binary.LittleEndian.Uint32(header[5:9])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	if crc32.ChecksumIEEE(payload) != expectedCRC {
		return nil, errBadChecksum
	}
	return payload, nil
}
