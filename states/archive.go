package states

import (
	"archive/zip"
	"io"
	"io/ioutil"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	ManifestPath  = "manifest.yaml"
	FormatVersion = 1
)

type Writer interface {
	InsertFile(f *RegisterFile) error
}

type Reader interface {
	ReadRegisterFile(path string) (*RegisterFile, error)
}

type Manifest struct {
	Id      uuid.UUID `yaml:"id"`
	Version int       `yaml:"version"`
	Created time.Time `yaml:"created"`
	Files   []string  `yaml:"files"`
}

// ZipWriter packs register files into zip archive
type ZipWriter struct {
	zw       *zip.Writer
	manifest Manifest
}

func NewZipWriter(w io.Writer) *ZipWriter {
	return &ZipWriter{
		zw: zip.NewWriter(w),
		manifest: Manifest{
			Id:      uuid.New(),
			Version: FormatVersion,
			Created: time.Now().UTC(),
		},
	}
}

func (a *ZipWriter) Id() uuid.UUID {
	return a.manifest.Id
}

func (a *ZipWriter) insert(path string, data []byte) error {
	w, err := a.zw.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Failed to create %q in archive", path)
	}
	if _, err := w.Write(data); err != nil {
		return errors.Wrapf(err, "Failed to write %q to archive", path)
	}
	return nil
}

func (a *ZipWriter) InsertFile(f *RegisterFile) error {
	data, err := f.Marshal()
	if err != nil {
		return err
	}
	if err := a.insert(f.Path(), data); err != nil {
		return err
	}
	a.manifest.Files = append(a.manifest.Files, f.Path())
	return nil
}

// Close writes manifest and finishes archive
func (a *ZipWriter) Close() error {
	data, err := yaml.Marshal(&a.manifest)
	if err != nil {
		return errors.Wrapf(err, "Failed to marshal manifest")
	}
	if err := a.insert(ManifestPath, data); err != nil {
		return err
	}
	return a.zw.Close()
}

type ZipReader struct {
	files    map[string]*zip.File
	manifest Manifest
}

func NewZipReader(r io.ReaderAt, size int64) (*ZipReader, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open snapshot archive")
	}
	a := &ZipReader{files: make(map[string]*zip.File)}
	for _, f := range zr.File {
		a.files[f.Name] = f
	}

	data, err := a.read(ManifestPath)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &a.manifest); err != nil {
		return nil, errors.Wrapf(err, "Failed to unmarshal manifest")
	}
	if a.manifest.Version != FormatVersion {
		return nil, errors.Errorf("Unsupported snapshot version %d", a.manifest.Version)
	}
	return a, nil
}

func (a *ZipReader) Manifest() Manifest {
	return a.manifest
}

func (a *ZipReader) read(path string) ([]byte, error) {
	f, ok := a.files[path]
	if !ok {
		return nil, errors.Errorf("File %q not found in archive", path)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open %q", path)
	}
	defer rc.Close()
	data, err := ioutil.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read %q", path)
	}
	return data, nil
}

func (a *ZipReader) ReadRegisterFile(path string) (*RegisterFile, error) {
	data, err := a.read(path)
	if err != nil {
		return nil, err
	}
	return UnmarshalRegisterFile(path, data)
}

// MemoryArchive keeps marshaled register files in memory
type MemoryArchive struct {
	files map[string][]byte
}

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{files: make(map[string][]byte)}
}

func (a *MemoryArchive) InsertFile(f *RegisterFile) error {
	data, err := f.Marshal()
	if err != nil {
		return err
	}
	a.files[f.Path()] = data
	return nil
}

func (a *MemoryArchive) ReadRegisterFile(path string) (*RegisterFile, error) {
	data, ok := a.files[path]
	if !ok {
		return nil, errors.Errorf("File %q not found in archive", path)
	}
	return UnmarshalRegisterFile(path, data)
}

func (a *MemoryArchive) Files() []string {
	list := make([]string, 0, len(a.files))
	for path := range a.files {
		list = append(list, path)
	}
	sort.Strings(list)
	return list
}
