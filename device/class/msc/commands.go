package msc

import (
	"github.com/ardnew/usbengine/pkg"
)

// handleSCSICommand processes a SCSI command from a CBW synchronously and
// returns the status, data residue, and response bytes (if any) to send
// in the data-in phase. WRITE (10), which has a data-out phase, is
// handled separately by the caller before this is reached.
func (m *MSC) handleSCSICommand(cbw *CommandBlockWrapper) (status uint8, residue uint32, data []byte) {
	opcode := cbw.CB[0]

	pkg.LogDebug(pkg.ComponentDevice, "SCSI command", "opcode", opcode, "lun", cbw.LUN)

	switch opcode {
	case SCSITestUnitReady:
		return m.handleTestUnitReady(cbw)
	case SCSIRequestSense:
		return m.handleRequestSense(cbw)
	case SCSIInquiry:
		return m.handleInquiry(cbw)
	case SCSIReadCapacity10:
		return m.handleReadCapacity10(cbw)
	case SCSIRead10:
		return m.handleRead10(cbw)
	case SCSIModeSense6:
		return m.handleModeSense6(cbw)
	case SCSIPreventAllowRemoval:
		return m.handlePreventAllowRemoval(cbw)
	case SCSIStartStopUnit:
		return m.handleStartStopUnit(cbw)
	case SCSISynchronizeCache10:
		return m.handleSynchronizeCache10(cbw)
	case SCSIVerify10:
		return m.handleVerify10(cbw)
	case SCSIReadFormatCapacities:
		return m.handleReadFormatCapacities(cbw)
	case SCSIServiceActionIn16:
		if cbw.CB[1]&0x1F == ServiceActionReadCapacity16 {
			return m.handleReadCapacity16(cbw)
		}
		fallthrough
	default:
		pkg.LogWarn(pkg.ComponentDevice, "unsupported SCSI command", "opcode", opcode)
		m.setSense(SenseIllegalRequest, ASCInvalidCommand, 0)
		return CSWStatusFailed, cbw.DataTransferLength, nil
	}
}

func (m *MSC) handleTestUnitReady(cbw *CommandBlockWrapper) (uint8, uint32, []byte) {
	if !m.storage.IsPresent() {
		m.setSense(SenseNotReady, ASCMediumNotPresent, 0)
		return CSWStatusFailed, 0, nil
	}
	m.setSense(SenseNoSense, ASCNoAdditionalInfo, 0)
	return CSWStatusGood, 0, nil
}

func (m *MSC) handleRequestSense(cbw *CommandBlockWrapper) (uint8, uint32, []byte) {
	allocLength := cbw.CB[4]
	if allocLength == 0 {
		allocLength = 18
	}

	resp := NewRequestSenseResponse(m.senseKey, m.asc, m.ascq)
	n := resp.MarshalTo(m.senseBuf[:])

	sendLen := int(allocLength)
	if sendLen > n {
		sendLen = n
	}

	m.setSense(SenseNoSense, ASCNoAdditionalInfo, 0)
	return CSWStatusGood, cbw.DataTransferLength - uint32(sendLen), m.senseBuf[:sendLen]
}

func (m *MSC) handleInquiry(cbw *CommandBlockWrapper) (uint8, uint32, []byte) {
	allocLength := parseU16BE(cbw.CB[:], 3)
	if allocLength == 0 {
		return CSWStatusGood, 0, nil
	}

	n := m.inquiry.MarshalTo(m.dataBuf[:])
	sendLen := int(allocLength)
	if sendLen > n {
		sendLen = n
	}
	return CSWStatusGood, cbw.DataTransferLength - uint32(sendLen), m.dataBuf[:sendLen]
}

func (m *MSC) handleReadCapacity10(cbw *CommandBlockWrapper) (uint8, uint32, []byte) {
	if !m.storage.IsPresent() {
		m.setSense(SenseNotReady, ASCMediumNotPresent, 0)
		return CSWStatusFailed, cbw.DataTransferLength, nil
	}

	blockCount := m.storage.BlockCount()
	blockSize := m.storage.BlockSize()

	lastLBA := uint32(blockCount - 1)
	if blockCount > 0xFFFFFFFF {
		lastLBA = 0xFFFFFFFF
	}

	resp := ReadCapacity10Response{LastLBA: lastLBA, BlockLength: blockSize}
	n := resp.MarshalTo(m.dataBuf[:])
	return CSWStatusGood, cbw.DataTransferLength - uint32(n), m.dataBuf[:n]
}

func (m *MSC) handleReadCapacity16(cbw *CommandBlockWrapper) (uint8, uint32, []byte) {
	if !m.storage.IsPresent() {
		m.setSense(SenseNotReady, ASCMediumNotPresent, 0)
		return CSWStatusFailed, cbw.DataTransferLength, nil
	}

	blockCount := m.storage.BlockCount()
	blockSize := m.storage.BlockSize()

	resp := ReadCapacity16Response{LastLBA: blockCount - 1, BlockLength: blockSize}
	n := resp.MarshalTo(m.dataBuf[:])

	allocLength := parseU32BE(cbw.CB[:], 10)
	sendLen := int(allocLength)
	if sendLen > n {
		sendLen = n
	}
	return CSWStatusGood, cbw.DataTransferLength - uint32(sendLen), m.dataBuf[:sendLen]
}

func (m *MSC) handleRead10(cbw *CommandBlockWrapper) (uint8, uint32, []byte) {
	if !m.storage.IsPresent() {
		m.setSense(SenseNotReady, ASCMediumNotPresent, 0)
		return CSWStatusFailed, cbw.DataTransferLength, nil
	}

	lba := parseU32BE(cbw.CB[:], 2)
	transferBlocks := parseU16BE(cbw.CB[:], 7)
	if transferBlocks == 0 {
		return CSWStatusGood, 0, nil
	}

	blockSize := m.storage.BlockSize()
	transferLength := uint32(transferBlocks) * blockSize

	if uint64(lba)+uint64(transferBlocks) > m.storage.BlockCount() || int(transferLength) > len(m.dataBuf) {
		m.setSense(SenseIllegalRequest, ASCLBAOutOfRange, 0)
		return CSWStatusFailed, cbw.DataTransferLength, nil
	}

	pkg.LogDebug(pkg.ComponentDevice, "READ(10)", "lba", lba, "blocks", transferBlocks)

	blocksRead, err := m.storage.Read(uint64(lba), uint32(transferBlocks), m.dataBuf[:transferLength])
	if err != nil {
		pkg.LogWarn(pkg.ComponentDevice, "read error", "error", err)
		m.setSense(SenseMediumError, ASCNoAdditionalInfo, 0)
		return CSWStatusFailed, cbw.DataTransferLength, nil
	}

	actualLength := blocksRead * blockSize
	return CSWStatusGood, cbw.DataTransferLength - actualLength, m.dataBuf[:actualLength]
}

func (m *MSC) handleModeSense6(cbw *CommandBlockWrapper) (uint8, uint32, []byte) {
	allocLength := cbw.CB[4]
	if allocLength == 0 {
		return CSWStatusGood, 0, nil
	}

	resp := ModeSense6Response{ModeDataLength: 3}
	if m.storage.IsReadOnly() {
		resp.DeviceParam = 0x80
	}

	n := resp.MarshalTo(m.dataBuf[:])
	sendLen := int(allocLength)
	if sendLen > n {
		sendLen = n
	}
	return CSWStatusGood, cbw.DataTransferLength - uint32(sendLen), m.dataBuf[:sendLen]
}

func (m *MSC) handlePreventAllowRemoval(cbw *CommandBlockWrapper) (uint8, uint32, []byte) {
	prevent := cbw.CB[4] & 0x01
	pkg.LogDebug(pkg.ComponentDevice, "PREVENT/ALLOW MEDIUM REMOVAL", "prevent", prevent)
	m.setSense(SenseNoSense, ASCNoAdditionalInfo, 0)
	return CSWStatusGood, 0, nil
}

func (m *MSC) handleStartStopUnit(cbw *CommandBlockWrapper) (uint8, uint32, []byte) {
	start := cbw.CB[4]&0x01 != 0
	loej := cbw.CB[4]&0x02 != 0

	pkg.LogDebug(pkg.ComponentDevice, "START/STOP UNIT", "start", start, "loej", loej)

	if loej && !start && m.storage.IsRemovable() {
		if err := m.storage.Eject(); err != nil {
			m.setSense(SenseIllegalRequest, ASCInvalidFieldInCDB, 0)
			return CSWStatusFailed, 0, nil
		}
	}

	m.setSense(SenseNoSense, ASCNoAdditionalInfo, 0)
	return CSWStatusGood, 0, nil
}

func (m *MSC) handleSynchronizeCache10(cbw *CommandBlockWrapper) (uint8, uint32, []byte) {
	if err := m.storage.Sync(); err != nil {
		m.setSense(SenseHardwareError, ASCNoAdditionalInfo, 0)
		return CSWStatusFailed, 0, nil
	}
	m.setSense(SenseNoSense, ASCNoAdditionalInfo, 0)
	return CSWStatusGood, 0, nil
}

func (m *MSC) handleVerify10(cbw *CommandBlockWrapper) (uint8, uint32, []byte) {
	m.setSense(SenseNoSense, ASCNoAdditionalInfo, 0)
	return CSWStatusGood, 0, nil
}

func (m *MSC) handleReadFormatCapacities(cbw *CommandBlockWrapper) (uint8, uint32, []byte) {
	if !m.storage.IsPresent() {
		m.setSense(SenseNotReady, ASCMediumNotPresent, 0)
		return CSWStatusFailed, cbw.DataTransferLength, nil
	}

	allocLength := parseU16BE(cbw.CB[:], 7)
	if allocLength == 0 {
		return CSWStatusGood, 0, nil
	}

	blockCount := m.storage.BlockCount()
	blockSize := m.storage.BlockSize()

	offset := 0
	header := ReadFormatCapacitiesHeader{CapacityLength: 8}
	offset += header.MarshalTo(m.dataBuf[offset:])

	desc := CurrentMaximumCapacityDescriptor{
		BlockCount:  uint32(blockCount),
		DescType:    0x02,
		BlockLength: blockSize,
	}
	offset += desc.MarshalTo(m.dataBuf[offset:])

	sendLen := int(allocLength)
	if sendLen > offset {
		sendLen = offset
	}
	return CSWStatusGood, cbw.DataTransferLength - uint32(sendLen), m.dataBuf[:sendLen]
}
