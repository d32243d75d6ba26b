package config

import (
	"fmt"
	"strings"
)

func parseMagic(v int64) (uint16, error) {
	if v <= 0 || v > 0xFFFF {
		return 0, fmt.Errorf("magic 0x%X out of range", v)
	}
	return uint16(v), nil
}

func bytesFromInts(in []int64) ([]byte, error) {
	out := make([]byte, 0, len(in))
	for i, v := range in {
		if v < 0 || v > 0xFF {
			return nil, fmt.Errorf("byte[%d] value %d out of range", i, v)
		}
		out = append(out, byte(v))
	}
	return out, nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
