package msc

import "encoding/binary"

// InquiryResponse is the standard 36-byte INQUIRY data SCSIInquiry returns.
type InquiryResponse struct {
	DeviceType       uint8
	RMB              uint8
	Version          uint8
	ResponseFormat   uint8
	AdditionalLength uint8
	Flags            [3]uint8
	VendorID         [8]byte
	ProductID        [16]byte
	ProductRev       [4]byte
}

// NewInquiryResponse builds a standard INQUIRY response reporting a fixed
// SPC-4 disk peripheral, padding vendor, product, and revision to their
// wire widths.
func NewInquiryResponse(deviceType uint8, removable bool, vendor, product, revision string) *InquiryResponse {
	resp := &InquiryResponse{
		DeviceType:       deviceType,
		Version:          InquiryVersionSPC4,
		ResponseFormat:   InquiryResponseFormatSPC,
		AdditionalLength: InquiryStandardSize - 5,
	}
	if removable {
		resp.RMB = InquiryRMB
	}
	copy(resp.VendorID[:], padString(vendor, len(resp.VendorID)))
	copy(resp.ProductID[:], padString(product, len(resp.ProductID)))
	copy(resp.ProductRev[:], padString(revision, len(resp.ProductRev)))
	return resp
}

// MarshalTo writes the response to buf, returning the byte count or 0 if
// buf is too small.
func (r *InquiryResponse) MarshalTo(buf []byte) int {
	if len(buf) < InquiryStandardSize {
		return 0
	}
	buf[0] = r.DeviceType
	buf[1] = r.RMB
	buf[2] = r.Version
	buf[3] = r.ResponseFormat
	buf[4] = r.AdditionalLength
	copy(buf[5:8], r.Flags[:])
	copy(buf[8:16], r.VendorID[:])
	copy(buf[16:32], r.ProductID[:])
	copy(buf[32:36], r.ProductRev[:])
	return InquiryStandardSize
}

// ReadCapacity10Response answers SCSIReadCapacity10.
type ReadCapacity10Response struct {
	LastLBA     uint32
	BlockLength uint32
}

// MarshalTo writes the response to buf, returning the byte count or 0 if
// buf is too small.
func (r *ReadCapacity10Response) MarshalTo(buf []byte) int {
	const size = 8
	if len(buf) < size {
		return 0
	}
	binary.BigEndian.PutUint32(buf[0:4], r.LastLBA)
	binary.BigEndian.PutUint32(buf[4:8], r.BlockLength)
	return size
}

// ReadCapacity16Response answers the READ CAPACITY (16) service action of
// SCSIServiceActionIn16, used once a disk outgrows the 32-bit LBA space
// ReadCapacity10Response can report.
type ReadCapacity16Response struct {
	LastLBA     uint64
	BlockLength uint32
}

// MarshalTo writes the response to buf, returning the byte count or 0 if
// buf is too small. Bytes beyond the LBA and block length are reserved
// and left zero.
func (r *ReadCapacity16Response) MarshalTo(buf []byte) int {
	const size = 32
	if len(buf) < size {
		return 0
	}
	binary.BigEndian.PutUint64(buf[0:8], r.LastLBA)
	binary.BigEndian.PutUint32(buf[8:12], r.BlockLength)
	return size
}

// RequestSenseResponse is the fixed-format sense data SCSIRequestSense
// returns after a failed command.
type RequestSenseResponse struct {
	ResponseCode     uint8
	SenseKey         uint8
	Information      uint32
	AdditionalLength uint8
	ASC              uint8
	ASCQ             uint8
}

// NewRequestSenseResponse builds a current-errors, fixed-format sense
// response for the given key/ASC/ASCQ triple.
func NewRequestSenseResponse(key, asc, ascq uint8) *RequestSenseResponse {
	return &RequestSenseResponse{
		ResponseCode:     0x70,
		SenseKey:         key & 0x0F,
		AdditionalLength: 10,
		ASC:              asc,
		ASCQ:             ascq,
	}
}

// MarshalTo writes the fixed 18-byte sense response to buf, returning the
// byte count or 0 if buf is too small.
func (r *RequestSenseResponse) MarshalTo(buf []byte) int {
	const size = 18
	if len(buf) < size {
		return 0
	}
	for i := range buf[:size] {
		buf[i] = 0
	}
	buf[0] = r.ResponseCode
	buf[2] = r.SenseKey & 0x0F
	binary.BigEndian.PutUint32(buf[3:7], r.Information)
	buf[7] = r.AdditionalLength
	buf[12] = r.ASC
	buf[13] = r.ASCQ
	return size
}

// ModeSense6Response is the 4-byte mode parameter header SCSIModeSense6
// returns; no mode pages are appended since this driver advertises none.
type ModeSense6Response struct {
	ModeDataLength uint8
	MediumType     uint8
	DeviceParam    uint8
	BlockDescLen   uint8
}

// MarshalTo writes the header to buf, returning the byte count or 0 if buf
// is too small.
func (r *ModeSense6Response) MarshalTo(buf []byte) int {
	const size = 4
	if len(buf) < size {
		return 0
	}
	buf[0] = r.ModeDataLength
	buf[1] = r.MediumType
	buf[2] = r.DeviceParam
	buf[3] = r.BlockDescLen
	return size
}

// ReadFormatCapacitiesHeader precedes the capacity descriptor list
// SCSIReadFormatCapacities returns.
type ReadFormatCapacitiesHeader struct {
	CapacityLength uint8
}

// MarshalTo writes the header to buf, returning the byte count or 0 if buf
// is too small. The three reserved bytes are always zero.
func (r *ReadFormatCapacitiesHeader) MarshalTo(buf []byte) int {
	const size = 4
	if len(buf) < size {
		return 0
	}
	buf[0], buf[1], buf[2] = 0, 0, 0
	buf[3] = r.CapacityLength
	return size
}

// CurrentMaximumCapacityDescriptor is the single descriptor this driver
// appends after ReadFormatCapacitiesHeader, reporting the disk's full
// capacity as both its current and maximum formattable size.
type CurrentMaximumCapacityDescriptor struct {
	BlockCount  uint32
	DescType    uint8
	BlockLength uint32
}

// MarshalTo writes the descriptor to buf, returning the byte count or 0 if
// buf is too small. BlockLength is packed 24-bit per the format spec.
func (d *CurrentMaximumCapacityDescriptor) MarshalTo(buf []byte) int {
	const size = 8
	if len(buf) < size {
		return 0
	}
	binary.BigEndian.PutUint32(buf[0:4], d.BlockCount)
	buf[4] = d.DescType
	buf[5] = uint8(d.BlockLength >> 16)
	buf[6] = uint8(d.BlockLength >> 8)
	buf[7] = uint8(d.BlockLength)
	return size
}

// padString right-pads s with spaces to length, truncating if s is longer.
func padString(s string, length int) []byte {
	out := make([]byte, length)
	copy(out, s)
	for i := len(s); i < length; i++ {
		out[i] = ' '
	}
	return out
}
