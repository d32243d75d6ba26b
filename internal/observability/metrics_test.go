package observability

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/danmuck/mxprint/internal/protocol"
	"github.com/danmuck/mxprint/internal/protocol/frame"
	"github.com/danmuck/mxprint/internal/protocol/stream"
	"github.com/danmuck/mxprint/internal/testutil/testlog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)

	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("mxprintd", "GET", "/health", 200, 12*time.Millisecond)
	RecordDelivery(20)
	RecordEvent(stream.Event{Kind: stream.KindAccepted, Header: frame.Header{Command: protocol.CmdStatus}})
	RecordEvent(stream.Event{Kind: stream.KindRejected, Err: frame.ErrChecksumMismatch})
	RecordReply(protocol.CmdStatus)
	SessionOpened()
	SessionClosed("eof")
}

func TestFramingReason(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&stream.CorruptionError{Want: frame.MagicStream}, "magic"},
		{fmt.Errorf("%w: x", frame.ErrChecksumMismatch), "checksum"},
		{fmt.Errorf("%w: x", frame.ErrTerminatorMismatch), "terminator"},
		{errors.Join(frame.ErrChecksumMismatch, frame.ErrTerminatorMismatch), "checksum_terminator"},
		{errors.New("boom"), "other"},
	}
	for _, tc := range cases {
		if got := FramingReason(tc.err); got != tc.want {
			t.Fatalf("FramingReason(%v) = %q want %q", tc.err, got, tc.want)
		}
	}
}
