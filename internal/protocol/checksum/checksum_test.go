package checksum

import "testing"

func TestCalculateEmptyIsZero(t *testing.T) {
	if got := Calculate(nil); got != 0 {
		t.Fatalf("expected 0, got 0x%02X", got)
	}
	if got := Update(0x5A, nil); got != 0x5A {
		t.Fatalf("empty update must return seed, got 0x%02X", got)
	}
}

func TestCalculateKnownVectors(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want uint8
	}{
		{name: "status reply payload", in: []byte{0x00, 0x01, 0xCA}, want: 0x6D},
		{name: "single one", in: []byte{0x01}, want: 0x07},
		{name: "check string", in: []byte("123456789"), want: 0xF4},
	}
	for _, tc := range cases {
		if got := Calculate(tc.in); got != tc.want {
			t.Fatalf("%s: got 0x%02X want 0x%02X", tc.name, got, tc.want)
		}
	}
}

func TestIncrementalMatchesBatch(t *testing.T) {
	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i*31 + 7)
	}
	batch := Calculate(data)

	var seed uint8
	for i := range data {
		seed = Update(seed, data[i:i+1])
	}
	if seed != batch {
		t.Fatalf("byte-wise fold 0x%02X != batch 0x%02X", seed, batch)
	}

	for split := 0; split <= len(data); split += 17 {
		got := Update(Update(0, data[:split]), data[split:])
		if got != batch {
			t.Fatalf("split=%d: got 0x%02X want 0x%02X", split, got, batch)
		}
	}
}
