// Package mocks contains an emulated engine used by the tests: a PE image
// builder, reflected types laid out in an arena and a software dispatcher.
package mocks

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
)

// PESection describes a section of a generated PE image.
type PESection struct {
	Name           string
	VirtualAddress uint32
	Data           []byte
	Executable     bool
}

const (
	peHeaderOffset = 0x40
	peFileAlign    = 0x200
)

// BuildPE returns a minimal 64 bit PE image containing the given sections.
func BuildPE(imageBase uint64, sections ...PESection) []byte {
	var buf bytes.Buffer

	dos := make([]byte, peHeaderOffset)
	copy(dos, "MZ")
	binary.LittleEndian.PutUint32(dos[0x3C:], peHeaderOffset)
	buf.Write(dos)
	buf.WriteString("PE\x00\x00")

	var optional pe.OptionalHeader64
	fileHeader := pe.FileHeader{
		Machine:              pe.IMAGE_FILE_MACHINE_AMD64,
		NumberOfSections:     uint16(len(sections)),
		SizeOfOptionalHeader: uint16(binary.Size(optional)),
		Characteristics:      pe.IMAGE_FILE_EXECUTABLE_IMAGE | pe.IMAGE_FILE_LARGE_ADDRESS_AWARE,
	}

	sizeOfImage := uint32(0x1000)
	for _, s := range sections {
		end := alignUp(s.VirtualAddress+uint32(len(s.Data)), 0x1000)
		sizeOfImage = max(sizeOfImage, end)
	}

	optional.Magic = 0x20B
	optional.ImageBase = imageBase
	optional.SectionAlignment = 0x1000
	optional.FileAlignment = peFileAlign
	optional.SizeOfImage = sizeOfImage
	optional.SizeOfHeaders = peFileAlign
	optional.NumberOfRvaAndSizes = 16

	_ = binary.Write(&buf, binary.LittleEndian, fileHeader)
	_ = binary.Write(&buf, binary.LittleEndian, optional)

	rawOffset := uint32(peFileAlign)
	for _, s := range sections {
		header := pe.SectionHeader32{
			VirtualSize:      uint32(len(s.Data)),
			VirtualAddress:   s.VirtualAddress,
			SizeOfRawData:    alignUp(uint32(len(s.Data)), peFileAlign),
			PointerToRawData: rawOffset,
			Characteristics:  pe.IMAGE_SCN_MEM_READ,
		}
		copy(header.Name[:], s.Name)
		if s.Executable {
			header.Characteristics |= pe.IMAGE_SCN_CNT_CODE | pe.IMAGE_SCN_MEM_EXECUTE
		} else {
			header.Characteristics |= pe.IMAGE_SCN_CNT_INITIALIZED_DATA | pe.IMAGE_SCN_MEM_WRITE
		}
		_ = binary.Write(&buf, binary.LittleEndian, header)
		rawOffset += header.SizeOfRawData
	}

	image := make([]byte, rawOffset)
	copy(image, buf.Bytes())
	rawOffset = peFileAlign
	for _, s := range sections {
		copy(image[rawOffset:], s.Data)
		rawOffset += alignUp(uint32(len(s.Data)), peFileAlign)
	}
	return image
}

func alignUp(value, alignment uint32) uint32 {
	return (value + alignment - 1) &^ (alignment - 1)
}
