package probe

import (
	"bytes"
	"encoding/binary"
)

// Wire constants of the A2S_INFO exchange served by stand-in game servers
const (
	simpleHeader   = 0xFFFFFFFF
	infoRequest    = 'T'
	infoResponse   = 'I'
	challengeReply = 'A'
	infoPayload    = "Source Engine Query\x00"

	edfGamePort = 0x80
	edfKeywords = 0x20
)

// EncodeInfoRequest builds an A2S_INFO request, with the challenge appended when set
func EncodeInfoRequest(challenge []byte) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(simpleHeader))
	buf.WriteByte(infoRequest)
	buf.WriteString(infoPayload)
	buf.Write(challenge)
	return buf.Bytes()
}

// ParseInfoRequest reports whether packet is an A2S_INFO request and returns its challenge, if any
func ParseInfoRequest(packet []byte) (challenge []byte, ok bool) {
	prefixLen := 5 + len(infoPayload)
	if len(packet) < prefixLen {
		return nil, false
	}
	if binary.LittleEndian.Uint32(packet[:4]) != simpleHeader || packet[4] != infoRequest {
		return nil, false
	}
	if string(packet[5:prefixLen]) != infoPayload {
		return nil, false
	}
	if len(packet) >= prefixLen+4 {
		return packet[prefixLen : prefixLen+4], true
	}
	return nil, true
}

// EncodeChallenge builds the S2C_CHALLENGE reply
func EncodeChallenge(challenge [4]byte) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(simpleHeader))
	buf.WriteByte(challengeReply)
	buf.Write(challenge[:])
	return buf.Bytes()
}

// EncodeInfo builds an A2S_INFO reply for info. GamePort and Keywords go into the extra data block.
func EncodeInfo(info *ServerInfo) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(simpleHeader))
	buf.WriteByte(infoResponse)
	buf.WriteByte(info.Protocol)
	writeString(&buf, info.Name)
	writeString(&buf, info.Map)
	writeString(&buf, info.Folder)
	writeString(&buf, info.Game)
	binary.Write(&buf, binary.LittleEndian, info.AppID)
	buf.WriteByte(byte(info.Players))
	buf.WriteByte(byte(info.MaxPlayers))
	buf.WriteByte(byte(info.Bots))
	buf.WriteByte('d')
	buf.WriteByte(environmentByte(info.Environment))
	buf.WriteByte(boolByte(info.PasswordRequired))
	buf.WriteByte(boolByte(info.VACSecured))
	writeString(&buf, info.Version)

	var edf byte
	if info.GamePort != 0 {
		edf |= edfGamePort
	}
	if info.Keywords != "" {
		edf |= edfKeywords
	}
	if edf != 0 {
		buf.WriteByte(edf)
		if info.GamePort != 0 {
			binary.Write(&buf, binary.LittleEndian, uint16(info.GamePort))
		}
		if info.Keywords != "" {
			writeString(&buf, info.Keywords)
		}
	}
	return buf.Bytes()
}

func writeString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func environmentByte(env string) byte {
	switch env {
	case "linux":
		return 'l'
	case "mac":
		return 'm'
	default:
		return 'w'
	}
}
