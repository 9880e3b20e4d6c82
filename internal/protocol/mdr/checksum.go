package mdr

// Checksum 计算 1 字节累加校验和（mod 256，溢出自动丢弃高位）。
// 覆盖范围由调用方决定：编码时为 type..payload（不含 header/校验和/trailer），
// 且在转义之前计算。
func Checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return sum
}
