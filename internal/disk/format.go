package disk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Format is a disk image format name as understood by qemu-img.
type Format string

const (
	FormatQCOW2 Format = "qcow2"
	FormatQCOW  Format = "qcow"
	FormatVMDK  Format = "vmdk"
	FormatVHDX  Format = "vhdx"
	FormatVDI   Format = "vdi"
	FormatRaw   Format = "raw"
)

// Magic bytes for disk image format detection
var (
	// qcowMagic is "QFI" followed by 0xfb. It is shared by qcow (version 1)
	// and qcow2 (versions 2 and 3); the big-endian version follows it.
	// Reference: https://www.qemu.org/docs/master/interop/qcow2.html
	qcowMagic = []byte{0x51, 0x46, 0x49, 0xfb}

	// vmdkMagic is the sparse extent header magic "KDMV".
	vmdkMagic = []byte("KDMV")

	// vhdxMagic is the file type identifier signature at offset 0.
	vhdxMagic = []byte("vhdxfile")
)

// vdiSignature is the little-endian image signature at offset 0x40.
const (
	vdiSignature       = 0xbeda107f
	vdiSignatureOffset = 0x40
)

// headerSize is enough to read every signature checked below.
const headerSize = 512

// DetectImageFormat detects the disk image format of the file at path by
// reading magic bytes. Files without a recognised header are reported as raw.
//
// An error is returned if the file cannot be opened or is empty.
func DetectImageFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	header := make([]byte, headerSize)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		if err == io.EOF {
			return "", fmt.Errorf("file is empty")
		}
		return "", fmt.Errorf("failed to read image header: %w", err)
	}
	header = header[:n]

	return detectFormat(header), nil
}

// detectFormat classifies an image header.
func detectFormat(header []byte) Format {
	if bytes.HasPrefix(header, qcowMagic) {
		if len(header) >= 8 && binary.BigEndian.Uint32(header[4:8]) == 1 {
			return FormatQCOW
		}
		return FormatQCOW2
	}
	if bytes.HasPrefix(header, vmdkMagic) {
		return FormatVMDK
	}
	if bytes.HasPrefix(header, vhdxMagic) {
		return FormatVHDX
	}
	if len(header) >= vdiSignatureOffset+4 &&
		binary.LittleEndian.Uint32(header[vdiSignatureOffset:vdiSignatureOffset+4]) == vdiSignature {
		return FormatVDI
	}
	return FormatRaw
}
