package msc

import (
	"encoding/binary"

	"github.com/ardnew/usbengine/device"
	"github.com/ardnew/usbengine/device/bus"
	"github.com/ardnew/usbengine/pkg"
)

// CommandBlockWrapper is the 31-byte envelope a host sends to open a
// Bulk-Only Transport command.
type CommandBlockWrapper struct {
	Signature          uint32
	Tag                uint32
	DataTransferLength uint32
	Flags              uint8
	LUN                uint8
	CBLength           uint8
	CB                 [16]byte
}

// ParseCBW decodes a CommandBlockWrapper from data, validating length and
// signature.
func ParseCBW(data []byte, out *CommandBlockWrapper) bool {
	if len(data) < CBWSize {
		return false
	}
	out.Signature = binary.LittleEndian.Uint32(data[0:4])
	if out.Signature != CBWSignature {
		return false
	}
	out.Tag = binary.LittleEndian.Uint32(data[4:8])
	out.DataTransferLength = binary.LittleEndian.Uint32(data[8:12])
	out.Flags = data[12]
	out.LUN = data[13] & 0x0F
	out.CBLength = data[14] & 0x1F
	copy(out.CB[:], data[15:31])
	return true
}

// IsDataIn reports whether the CBW's data phase, if any, is device-to-host.
func (cbw *CommandBlockWrapper) IsDataIn() bool {
	return cbw.Flags&CBWFlagDataIn != 0
}

// CommandStatusWrapper is the 13-byte envelope a device sends to close a
// Bulk-Only Transport command.
type CommandStatusWrapper struct {
	Signature   uint32
	Tag         uint32
	DataResidue uint32
	Status      uint8
}

// NewCSW builds a CommandStatusWrapper answering the CBW identified by tag.
func NewCSW(tag uint32, residue uint32, status uint8) *CommandStatusWrapper {
	return &CommandStatusWrapper{Signature: CSWSignature, Tag: tag, DataResidue: residue, Status: status}
}

// MarshalTo writes the CSW to buf, returning the byte count or 0 if buf is
// too small.
func (csw *CommandStatusWrapper) MarshalTo(buf []byte) int {
	if len(buf) < CSWSize {
		return 0
	}
	binary.LittleEndian.PutUint32(buf[0:4], csw.Signature)
	binary.LittleEndian.PutUint32(buf[4:8], csw.Tag)
	binary.LittleEndian.PutUint32(buf[8:12], csw.DataResidue)
	buf[12] = csw.Status
	return CSWSize
}

// botState tracks where a Bulk-Only Transport command sequence stands
// across Poll cycles.
type botState uint8

const (
	botWaitCBW botState = iota
	botWaitDataOut
	botWaitDataInAck
	botWaitCSWAck
)

// MSC implements the device.Class contract for a single Bulk-Only
// Transport mass storage interface.
type MSC struct {
	InterfaceNumber uint8

	bus       bus.Bus
	bulkInEP  bus.EndpointAddress
	bulkOutEP bus.EndpointAddress

	storage Storage
	inquiry InquiryResponse
	maxLUN  uint8

	state        botState
	currentCBW   CommandBlockWrapper
	dataLen      int
	pendingLBA   uint64
	writeResidue uint32

	senseKey uint8
	asc      uint8
	ascq     uint8

	cbwBuf   [CBWSize]byte
	cswBuf   [CSWSize]byte
	dataBuf  [MaxTransferSize]byte
	senseBuf [18]byte
}

// New returns an MSC class driver backed by storage. vendorID and
// productID are free-form identification strings reported in the
// standard INQUIRY response.
func New(storage Storage, vendorID, productID string) *MSC {
	m := &MSC{storage: storage}
	m.inquiry = *NewInquiryResponse(DeviceTypeDisk, storage.IsRemovable(), vendorID, productID, "1.0")
	m.setSense(SenseNoSense, ASCNoAdditionalInfo, 0)
	return m
}

// SetMaxLUN sets the maximum Logical Unit Number (0-15).
func (m *MSC) SetMaxLUN(lun uint8) {
	if lun <= 15 {
		m.maxLUN = lun
	}
}

// Attach allocates this class's bulk endpoints on b. Call once, before
// bus.Freeze.
func (m *MSC) Attach(b bus.Bus, maxPacketSize uint16) error {
	m.bus = b

	in := bus.In(0)
	h, err := b.Alloc(bus.EndpointConfig{Address: &in, Type: bus.TransferBulk, MaxPacketSize: maxPacketSize})
	if err != nil {
		return err
	}
	m.bulkInEP = h.Address

	out := bus.Out(0)
	h, err = b.Alloc(bus.EndpointConfig{Address: &out, Type: bus.TransferBulk, MaxPacketSize: maxPacketSize})
	if err != nil {
		return err
	}
	m.bulkOutEP = h.Address
	return nil
}

func (m *MSC) setSense(key, asc, ascq uint8) {
	m.senseKey = key
	m.asc = asc
	m.ascq = ascq
}

// Reset returns the command sequence to its idle state. It does not
// reallocate endpoints.
func (m *MSC) Reset() {
	m.state = botWaitCBW
	m.setSense(SenseNoSense, ASCNoAdditionalInfo, 0)
}

// Poll is a no-op; MSC has nothing to do outside of control and
// endpoint events.
func (m *MSC) Poll() {}

// ControlIn answers the class-specific GET_MAX_LUN request for this
// interface.
func (m *MSC) ControlIn(xfer *device.Responder) {
	req := xfer.Request()
	if !m.forThisInterface(req) || !req.IsClass() || req.Request != RequestGetMaxLUN {
		return
	}
	xfer.AcceptWith([]byte{m.maxLUN})
}

// ControlOut handles the class-specific Bulk-Only Mass Storage Reset
// request for this interface.
func (m *MSC) ControlOut(xfer *device.Responder) {
	req := xfer.Request()
	if !m.forThisInterface(req) || !req.IsClass() || req.Request != RequestBulkOnlyMassStorageReset {
		return
	}
	m.Reset()
	xfer.AcceptStatus()
}

func (m *MSC) forThisInterface(req *device.SetupPacket) bool {
	return req.IsInterfaceRecipient() && req.InterfaceNumber() == m.InterfaceNumber
}

// EndpointSetup is unused; BOT never expects a SETUP packet on a
// non-zero endpoint.
func (m *MSC) EndpointSetup(addr bus.EndpointAddress) {}

// EndpointOut advances the Bulk-Only Transport sequence when a CBW or a
// WRITE data chunk arrives on the bulk OUT endpoint.
func (m *MSC) EndpointOut(addr bus.EndpointAddress) {
	if addr != m.bulkOutEP {
		return
	}
	switch m.state {
	case botWaitCBW:
		m.receiveCBW()
	case botWaitDataOut:
		m.receiveWriteChunk()
	}
}

// EndpointInComplete advances the sequence once the host has
// acknowledged a queued data-in packet or the CSW.
func (m *MSC) EndpointInComplete(addr bus.EndpointAddress) {
	if addr != m.bulkInEP {
		return
	}
	switch m.state {
	case botWaitDataInAck:
		m.sendCSW(CSWStatusGood, m.writeResidue)
	case botWaitCSWAck:
		m.state = botWaitCBW
	}
}

func (m *MSC) receiveCBW() {
	n, err := m.bus.Read(m.bulkOutEP, m.cbwBuf[:])
	if err != nil || n != CBWSize || !ParseCBW(m.cbwBuf[:n], &m.currentCBW) {
		pkg.LogWarn(pkg.ComponentDevice, "invalid CBW")
		return
	}

	pkg.LogDebug(pkg.ComponentDevice, "CBW received",
		"tag", m.currentCBW.Tag,
		"opcode", m.currentCBW.CB[0])

	if m.currentCBW.LUN > m.maxLUN {
		m.setSense(SenseIllegalRequest, ASCInvalidFieldInCDB, 0)
		m.sendCSW(CSWStatusFailed, m.currentCBW.DataTransferLength)
		return
	}

	if m.currentCBW.CB[0] == SCSIWrite10 {
		m.beginWrite10(&m.currentCBW)
		return
	}

	status, residue, data := m.handleSCSICommand(&m.currentCBW)
	if len(data) == 0 {
		m.sendCSW(status, residue)
		return
	}
	if status != CSWStatusGood {
		m.sendCSW(status, residue)
		return
	}
	if _, err := m.bus.Write(m.bulkInEP, data); err != nil {
		m.sendCSW(CSWStatusFailed, m.currentCBW.DataTransferLength)
		return
	}
	m.writeResidue = residue
	m.state = botWaitDataInAck
}

func (m *MSC) beginWrite10(cbw *CommandBlockWrapper) {
	if !m.storage.IsPresent() {
		m.setSense(SenseNotReady, ASCMediumNotPresent, 0)
		m.sendCSW(CSWStatusFailed, cbw.DataTransferLength)
		return
	}
	if m.storage.IsReadOnly() {
		m.setSense(SenseDataProtect, ASCWriteProtected, 0)
		m.sendCSW(CSWStatusFailed, cbw.DataTransferLength)
		return
	}

	lba := parseU32BE(cbw.CB[:], 2)
	transferBlocks := parseU16BE(cbw.CB[:], 7)
	if transferBlocks == 0 {
		m.sendCSW(CSWStatusGood, 0)
		return
	}

	blockSize := m.storage.BlockSize()
	transferLength := uint32(transferBlocks) * blockSize
	if uint64(lba)+uint64(transferBlocks) > m.storage.BlockCount() || int(transferLength) > len(m.dataBuf) {
		m.setSense(SenseIllegalRequest, ASCLBAOutOfRange, 0)
		m.sendCSW(CSWStatusFailed, cbw.DataTransferLength)
		return
	}

	m.pendingLBA = uint64(lba)
	m.dataLen = 0
	m.state = botWaitDataOut
	m.receiveWriteChunk()
}

func (m *MSC) receiveWriteChunk() {
	cbw := &m.currentCBW
	blockSize := m.storage.BlockSize()
	transferBlocks := parseU16BE(cbw.CB[:], 7)
	want := int(uint32(transferBlocks) * blockSize)

	n, err := m.bus.Read(m.bulkOutEP, m.dataBuf[m.dataLen:want])
	if err != nil {
		if err == pkg.ErrWouldBlock {
			return
		}
		m.setSense(SenseHardwareError, ASCNoAdditionalInfo, 0)
		m.sendCSW(CSWStatusFailed, cbw.DataTransferLength)
		return
	}
	m.dataLen += n
	if m.dataLen < want {
		return
	}

	blocksWritten, err := m.storage.Write(m.pendingLBA, uint32(transferBlocks), m.dataBuf[:want])
	if err != nil {
		pkg.LogWarn(pkg.ComponentDevice, "write error", "error", err)
		m.setSense(SenseMediumError, ASCNoAdditionalInfo, 0)
		m.sendCSW(CSWStatusFailed, cbw.DataTransferLength)
		return
	}

	actualLength := blocksWritten * blockSize
	m.sendCSW(CSWStatusGood, cbw.DataTransferLength-actualLength)
}

func (m *MSC) sendCSW(status uint8, residue uint32) {
	csw := NewCSW(m.currentCBW.Tag, residue, status)
	n := csw.MarshalTo(m.cswBuf[:])
	if _, err := m.bus.Write(m.bulkInEP, m.cswBuf[:n]); err != nil {
		pkg.LogWarn(pkg.ComponentDevice, "CSW write failed", "error", err)
		return
	}
	m.state = botWaitCSWAck
}

// parseU16BE parses a big-endian uint16 from data at offset.
func parseU16BE(data []byte, offset int) uint16 {
	if offset+2 > len(data) {
		return 0
	}
	return binary.BigEndian.Uint16(data[offset:])
}

// parseU32BE parses a big-endian uint32 from data at offset.
func parseU32BE(data []byte, offset int) uint32 {
	if offset+4 > len(data) {
		return 0
	}
	return binary.BigEndian.Uint32(data[offset:])
}

// parseU64BE parses a big-endian uint64 from data at offset.
func parseU64BE(data []byte, offset int) uint64 {
	if offset+8 > len(data) {
		return 0
	}
	return binary.BigEndian.Uint64(data[offset:])
}

var _ device.Class = (*MSC)(nil)
