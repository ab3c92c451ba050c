package utils

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log"

	"github.com/davecgh/go-spew/spew"
)

var spewConfig *spew.ConfigState

func init() {
	spewConfig = spew.NewDefaultConfig()
	spewConfig.DisableCapacities = true
	spewConfig.DisablePointerAddresses = true
}

func Dump(a ...interface{}) {
	fmt.Println(spewConfig.Sdump(a...))
}

// DumpQuadwords formats buf as rows of 4 little endian words, highest first
func DumpQuadwords(buf []byte) string {
	var out bytes.Buffer

	for off := 0; off+0x10 <= len(buf); off += 0x10 {
		qw := buf[off:]
		fmt.Fprintf(&out, "%.6x: %.8x %.8x %.8x %.8x\n", off,
			binary.LittleEndian.Uint32(qw[12:]), binary.LittleEndian.Uint32(qw[8:]),
			binary.LittleEndian.Uint32(qw[4:]), binary.LittleEndian.Uint32(qw[0:]))
	}
	if tail := len(buf) % 0x10; tail != 0 {
		fmt.Fprintf(&out, "%.6x: % x\n", len(buf)-tail, buf[len(buf)-tail:])
	}

	return out.String()
}

func SDump(a ...interface{}) string {
	return spewConfig.Sdump(a...)
}

func LogDump(a ...interface{}) {
	log.Println(spewConfig.Sdump(a...))
}
