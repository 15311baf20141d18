package profile

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const fileExt = ".json"

// ErrBadName is returned for profile names that cannot be used as file names.
var ErrBadName = errors.New("bad profile name")

// ErrNotFound is returned when no profile file exists for a name.
var ErrNotFound = errors.New("profile not found")

// Store keeps one JSON document per profile in a directory. Profiles are keyed
// by file stem.
type Store struct {
	dir    string
	logger *zap.SugaredLogger
	mu     sync.Mutex
}

// NewStore opens (and creates if needed) a profile directory.
func NewStore(dir string, logger *zap.SugaredLogger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating profile dir %s", dir)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the backing directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\:`) {
		return "", errors.Wrapf(ErrBadName, "%q", name)
	}
	return filepath.Join(s.dir, name+fileExt), nil
}

// List returns the sorted names of all stored profiles.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrap(err, "listing profiles")
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != fileExt {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), fileExt))
	}
	sort.Strings(names)
	return names, nil
}

// Load reads and validates a stored profile.
func (s *Store) Load(name string) (Profile, error) {
	path, err := s.path(name)
	if err != nil {
		return Profile{}, err
	}
	p, err := LoadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Profile{}, errors.Wrapf(ErrNotFound, "%q", name)
	}
	return p, err
}

// LoadOrDefault loads name and falls back to Default on any failure. The
// error is still returned so the caller can report it.
func (s *Store) LoadOrDefault(name string) (Profile, error) {
	if name == "" {
		name = DefaultName
	}
	p, err := s.Load(name)
	if name == DefaultName && errors.Is(err, ErrNotFound) {
		return Default(), nil
	}
	if err != nil {
		s.logger.Warnw("profile rejected, using default", "profile", name, "error", err)
		return Default(), err
	}
	return p, nil
}

// LoadFile reads and validates a profile document anywhere on disk. The
// profile is named after the file stem; a name field in the document is
// ignored so that the file, the store listing and the running profile agree.
func LoadFile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, err
	}
	p, err := decodeFile(path, data)
	if err != nil {
		return Profile{}, errors.Wrapf(err, "loading %s", path)
	}
	return p, nil
}

func stemOf(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func decodeFile(path string, data []byte) (Profile, error) {
	stem := stemOf(path)
	p, err := Decode(bytes.NewReader(data), stem)
	if err != nil {
		return Profile{}, err
	}
	p.Name = stem
	return p, nil
}

// Save validates p and writes it under its name.
func (s *Store) Save(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	path, err := s.path(p.Name)
	if err != nil {
		return err
	}
	data, err := Marshal(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFileAtomic(path, data); err != nil {
		return err
	}
	s.logger.Infow("profile saved", "profile", p.Name)
	return nil
}

// Delete removes a stored profile.
func (s *Store) Delete(name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errors.Wrapf(ErrNotFound, "%q", name)
		}
		return errors.Wrapf(err, "deleting profile %q", name)
	}
	return nil
}

// Import validates the document at src and copies it verbatim into the store,
// keyed by its file stem, which also becomes the profile name. Nothing is
// written when validation fails.
func (s *Store) Import(src string) (Profile, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return Profile{}, errors.Wrapf(err, "importing %s", src)
	}
	p, err := decodeFile(src, data)
	if err != nil {
		return Profile{}, errors.Wrapf(err, "importing %s", src)
	}
	stem := p.Name
	dst, err := s.path(stem)
	if err != nil {
		return Profile{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFileAtomic(dst, data); err != nil {
		return Profile{}, err
	}
	s.logger.Infow("profile imported", "profile", stem, "from", src)
	return p, nil
}

// Export validates the stored profile and copies its file to dst.
func (s *Store) Export(name, dst string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if _, err := s.Load(name); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "exporting %q", name)
	}
	if err := writeFileAtomic(dst, data); err != nil {
		return err
	}
	s.logger.Infow("profile exported", "profile", name, "to", dst)
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".profile-*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "replacing %s", path)
}
