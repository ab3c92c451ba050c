package states

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Uint128 stored as 4 words, D[0] is the lowest
type Uint128 [4]uint32

func Uint128FromBytes(b []byte) Uint128 {
	var v Uint128
	for i := range v {
		v[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return v
}

func (v Uint128) PutBytes(b []byte) {
	for i := range v {
		binary.LittleEndian.PutUint32(b[i*4:], v[i])
	}
}

func (v Uint128) String() string {
	return fmt.Sprintf("0x%.8x%.8x%.8x%.8x", v[3], v[2], v[1], v[0])
}

type register struct {
	value Uint128
	wide  bool
}

// RegisterFile is named set of 32 and 128 bit registers saved as one archive entry
type RegisterFile struct {
	path  string
	names []string
	regs  map[string]register
}

type yamlRegister struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

type yamlRegisterFile struct {
	Registers []yamlRegister `yaml:"registers"`
}

func NewRegisterFile(path string) *RegisterFile {
	return &RegisterFile{
		path: path,
		regs: make(map[string]register),
	}
}

func (f *RegisterFile) Path() string {
	return f.path
}

func (f *RegisterFile) set(name string, r register) {
	if _, exists := f.regs[name]; !exists {
		f.names = append(f.names, name)
	}
	f.regs[name] = r
}

func (f *RegisterFile) SetRegister32(name string, value uint32) {
	f.set(name, register{value: Uint128{value}})
}

func (f *RegisterFile) SetRegister128(name string, value Uint128) {
	f.set(name, register{value: value, wide: true})
}

func (f *RegisterFile) get(name string, wide bool) (register, error) {
	r, ok := f.regs[name]
	if !ok {
		return r, errors.Errorf("register %q not found in %q", name, f.path)
	}
	if r.wide != wide {
		return r, errors.Errorf("register %q in %q has wrong width", name, f.path)
	}
	return r, nil
}

func (f *RegisterFile) GetRegister32(name string) (uint32, error) {
	r, err := f.get(name, false)
	return r.value[0], err
}

func (f *RegisterFile) GetRegister128(name string) (Uint128, error) {
	r, err := f.get(name, true)
	return r.value, err
}

func (f *RegisterFile) Marshal() ([]byte, error) {
	var yf yamlRegisterFile
	for _, name := range f.names {
		r := f.regs[name]
		value := fmt.Sprintf("0x%.8x", r.value[0])
		if r.wide {
			value = r.value.String()
		}
		yf.Registers = append(yf.Registers, yamlRegister{Name: name, Value: value})
	}

	var buffer bytes.Buffer
	enc := yaml.NewEncoder(&buffer)
	enc.SetIndent(2)
	if err := enc.Encode(&yf); err != nil {
		return nil, errors.Wrapf(err, "Failed to marshal register file %q", f.path)
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrapf(err, "Failed to close yaml encoder")
	}
	return buffer.Bytes(), nil
}

func parseHexWord(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 16, 32)
	return uint32(v), err
}

func UnmarshalRegisterFile(path string, data []byte) (*RegisterFile, error) {
	var yf yamlRegisterFile
	if err := yaml.Unmarshal(data, &yf); err != nil {
		return nil, errors.Wrapf(err, "Failed to unmarshal register file %q", path)
	}

	f := NewRegisterFile(path)
	for _, yr := range yf.Registers {
		digits := strings.TrimPrefix(yr.Value, "0x")
		switch len(digits) {
		case 8:
			v, err := parseHexWord(digits)
			if err != nil {
				return nil, errors.Wrapf(err, "register %q", yr.Name)
			}
			f.SetRegister32(yr.Name, v)
		case 32:
			var v Uint128
			for i := range v {
				word := digits[(3-i)*8 : (4-i)*8]
				w, err := parseHexWord(word)
				if err != nil {
					return nil, errors.Wrapf(err, "register %q", yr.Name)
				}
				v[i] = w
			}
			f.SetRegister128(yr.Name, v)
		default:
			return nil, errors.Errorf("register %q has malformed value %q", yr.Name, yr.Value)
		}
	}
	return f, nil
}
