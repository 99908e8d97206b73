package codec

import "fmt"

// FTMS Control Point opcodes
const (
	OpRequestControl      byte = 0x00
	OpReset               byte = 0x01
	OpSetTargetResistance byte = 0x04
	OpSetTargetPower      byte = 0x05
	OpStartOrResume       byte = 0x07
	OpStopOrPause         byte = 0x08
	OpResponseCode        byte = 0x80
)

// FTMS Control Point result codes, carried in responses a device may send.
const (
	ResultSuccess             byte = 0x01
	ResultOpCodeNotSupported  byte = 0x02
	ResultInvalidParameter    byte = 0x03
	ResultOperationFailed     byte = 0x04
	ResultControlNotPermitted byte = 0x05
)

// EncodeSetResistance frames a target resistance command:
// opcode 0x04 then level as int16 little-endian.
func EncodeSetResistance(level int16) []byte {
	return encodeInt16Command(OpSetTargetResistance, level)
}

// EncodeSetTargetPower frames a target power (ERG) command:
// opcode 0x05 then watts as int16 little-endian.
func EncodeSetTargetPower(watts int16) []byte {
	return encodeInt16Command(OpSetTargetPower, watts)
}

func EncodeRequestControl() []byte {
	return []byte{OpRequestControl}
}

func EncodeStartOrResume() []byte {
	return []byte{OpStartOrResume}
}

func encodeInt16Command(op byte, v int16) []byte {
	buf := make([]byte, 3)
	buf[0] = op
	putI16(buf[1:], v)
	return buf
}

// DescribeCommand renders a control point write for logs.
func DescribeCommand(data []byte) string {
	if len(data) == 0 {
		return "empty"
	}
	switch data[0] {
	case OpRequestControl:
		return "Request Control"
	case OpReset:
		return "Reset"
	case OpSetTargetResistance:
		if len(data) >= 3 {
			return fmt.Sprintf("Set Target Resistance: %d", i16(data[1:3]))
		}
		return "Set Target Resistance (malformed)"
	case OpSetTargetPower:
		if len(data) >= 3 {
			return fmt.Sprintf("Set Target Power: %dW", i16(data[1:3]))
		}
		return "Set Target Power (malformed)"
	case OpStartOrResume:
		return "Start/Resume"
	case OpStopOrPause:
		return "Stop/Pause"
	case OpResponseCode:
		return "Response"
	default:
		return fmt.Sprintf("Unknown opcode: 0x%02X", data[0])
	}
}
