// Package crc computes the CRC-16 used by EN 13757 (M-Bus and wireless M-Bus).
package crc

import "github.com/sigurn/crc16"

var table = crc16.MakeTable(crc16.CRC16_EN_13757)

// Checksum returns the CRC-16/EN-13757 of data.
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, table)
}

// Bytes returns the checksum in wire order (most significant byte first).
func Bytes(data []byte) [2]byte {
	sum := Checksum(data)
	return [2]byte{byte(sum >> 8), byte(sum)}
}

// Match reports whether want holds the checksum of data in wire order.
func Match(want []byte, data []byte) bool {
	if len(want) < 2 {
		return false
	}
	got := Bytes(data)
	return want[0] == got[0] && want[1] == got[1]
}
