package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBytes(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1234", 1234},
		{"2 K", 2048},
		{"1.5 M", 1572864},
		{"2 G", 2147483648},
		{" 10.25 M ", 10747904},
		{"12 T", 13194139533312},
		{"1.5 T", 1649267441664},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseBytes(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "12 P", "12 k", "abc", "1.5", "1 2 3"} {
		t.Run("invalid "+bad, func(t *testing.T) {
			_, err := parseBytes(bad)
			assert.ErrorIs(t, err, ErrUnknownDataFormat)
		})
	}
}

func TestParseListing(t *testing.T) {
	out := []byte("nfcapd.202403011005\nnfcapd.202403010000\n\nnfcapd.202403010005\n")
	assert.Equal(t, []string{
		"nfcapd.202403010000",
		"nfcapd.202403010005",
		"nfcapd.202403011005",
	}, parseListing(out))
	assert.Empty(t, parseListing(nil))
}

func TestNfdumpRecords(t *testing.T) {
	out := []byte("Source | Destination | Bytes\n" +
		"10.0.0.1 | 0.0.0.0 | 100\n" +
		"10.0.0.2 | 0.0.0.0 | 1.0 M\n" +
		"Summary: total flows: 2\n" +
		"Time window: ...\n" +
		"Total flows processed: 2\n" +
		"Sys: 0.001s\n")

	assert.Equal(t, []string{
		"10.0.0.1 | 0.0.0.0 | 100",
		"10.0.0.2 | 0.0.0.0 | 1.0 M",
	}, nfdumpRecords(out))
	assert.Empty(t, nfdumpRecords([]byte("header\na\nb\nc\nd\n")))
}

func TestParseRecord(t *testing.T) {
	cells, err := parseRecord("\x0110.0.0.1 | 192.168.0.9\x01 |  512 ")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", recordAddress(cells, DirectionSource))
	assert.Equal(t, "192.168.0.9", recordAddress(cells, DirectionDestination))
	assert.Equal(t, "512", cells[2])

	_, err = parseRecord("10.0.0.1 512")
	assert.ErrorIs(t, err, ErrUnknownDataFormat)
}
