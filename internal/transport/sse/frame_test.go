package sse

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameWriteTo(t *testing.T) {
	cases := []struct {
		name  string
		frame Frame
		want  string
	}{
		{"event", Frame{Event: "new-order", Data: []byte(`{"orderId":1}`)}, "event: new-order\ndata: {\"orderId\":1}\n\n"},
		{"keepalive", Frame{Comment: "keep-alive"}, ": keep-alive\n\n"},
		{"multiline data", Frame{Data: []byte("a\nb")}, "data: a\ndata: b\n\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			n, err := tc.frame.WriteTo(&buf)
			require.NoError(t, err)
			assert.Equal(t, tc.want, buf.String())
			assert.Equal(t, int64(len(tc.want)), n)
		})
	}
}
