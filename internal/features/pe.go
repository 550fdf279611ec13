package features

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"strings"
)

// Walk bounds for corrupt headers.
const (
	maxExports = 1 << 16
	maxImports = 1 << 12
)

// importDescriptorSize is the size of one IMAGE_IMPORT_DESCRIPTOR.
const importDescriptorSize = 20

// ExtractPE parses a PE image held in memory and returns its 8 structural
// features. Any parse failure, including a panic inside the parser, yields
// the zero sub-vector.
func ExtractPE(data []byte) (out PEFeatures) {
	defer func() {
		if r := recover(); r != nil {
			out = PEFeatures{}
		}
	}()

	f, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return PEFeatures{}
	}
	defer f.Close()

	var entry uint32
	var dirs [16]pe.DataDirectory
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		entry = oh.AddressOfEntryPoint
		dirs = oh.DataDirectory
	case *pe.OptionalHeader64:
		entry = oh.AddressOfEntryPoint
		dirs = oh.DataDirectory
	default:
		// object files carry no optional header
		return PEFeatures{}
	}

	out[Sections-PEStart] = float64(len(f.Sections))
	out[TextEntropy-PEStart] = textEntropy(f)

	out[Imports-PEStart] = float64(importCount(f, dirs[pe.IMAGE_DIRECTORY_ENTRY_IMPORT]))
	out[Exports-PEStart] = float64(exportCount(f, dirs[pe.IMAGE_DIRECTORY_ENTRY_EXPORT]))

	out[HasDebug-PEStart] = flag(present(dirs[pe.IMAGE_DIRECTORY_ENTRY_DEBUG]))
	out[HasReloc-PEStart] = flag(present(dirs[pe.IMAGE_DIRECTORY_ENTRY_BASERELOC]))
	out[HasResource-PEStart] = flag(present(dirs[pe.IMAGE_DIRECTORY_ENTRY_RESOURCE]))
	out[EntryPoint-PEStart] = float64(entry)

	return out
}

func textEntropy(f *pe.File) float64 {
	for _, s := range f.Sections {
		if !strings.Contains(s.Name, ".text") {
			continue
		}
		data, err := s.Data()
		if err != nil {
			return 0
		}
		return ShannonEntropy(data)
	}
	return 0
}

// importCount returns the number of import descriptors, one per imported
// library, up to the all-zero terminator. A missing or unreadable import
// directory counts as zero.
func importCount(f *pe.File, dir pe.DataDirectory) int {
	if !present(dir) {
		return 0
	}
	sec, off := sectionFor(f, dir.VirtualAddress)
	if sec == nil {
		return 0
	}
	data, err := sec.Data()
	if err != nil {
		return 0
	}

	count := 0
	for pos := uint64(off); pos+importDescriptorSize <= uint64(len(data)) && count < maxImports; pos += importDescriptorSize {
		if allZero(data[pos : pos+importDescriptorSize]) {
			break
		}
		count++
	}
	return count
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// exportCount returns the number of non-empty slots in the export address
// table, or 0 when the export directory is absent or unreadable.
func exportCount(f *pe.File, dir pe.DataDirectory) int {
	if !present(dir) {
		return 0
	}
	sec, off := sectionFor(f, dir.VirtualAddress)
	if sec == nil {
		return 0
	}
	data, err := sec.Data()
	if err != nil || uint64(off)+40 > uint64(len(data)) {
		return 0
	}
	hdr := data[off : off+40]
	numFuncs := binary.LittleEndian.Uint32(hdr[20:24])
	funcsRVA := binary.LittleEndian.Uint32(hdr[28:32])
	if numFuncs == 0 || numFuncs > maxExports {
		return 0
	}

	tsec, toff := sectionFor(f, funcsRVA)
	if tsec == nil {
		return 0
	}
	tdata, err := tsec.Data()
	if err != nil {
		return 0
	}
	count := 0
	for i := uint32(0); i < numFuncs; i++ {
		pos := uint64(toff) + uint64(i)*4
		if pos+4 > uint64(len(tdata)) {
			break
		}
		if binary.LittleEndian.Uint32(tdata[pos:pos+4]) != 0 {
			count++
		}
	}
	return count
}

// sectionFor finds the section containing rva and the offset of rva inside it.
func sectionFor(f *pe.File, rva uint32) (*pe.Section, uint32) {
	for _, s := range f.Sections {
		size := s.VirtualSize
		if s.Size > size {
			size = s.Size
		}
		// subtraction keeps hostile VirtualAddress+size from wrapping
		if rva >= s.VirtualAddress && rva-s.VirtualAddress < size {
			return s, rva - s.VirtualAddress
		}
	}
	return nil, 0
}

func present(d pe.DataDirectory) bool {
	return d.VirtualAddress != 0 && d.Size != 0
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
