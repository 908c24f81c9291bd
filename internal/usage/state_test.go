package usage_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/zsprackett/usage-bar/internal/usage"
)

func TestState_Variants(t *testing.T) {
	if k := usage.StateUnknown().Kind(); k != usage.StateKindUnknown {
		t.Errorf("unknown: got %q", k)
	}
	var zero usage.State
	if zero.Kind() != usage.StateKindUnknown {
		t.Errorf("zero state should be unknown, got %q", zero.Kind())
	}

	rec := usage.Record{Session: usage.KnownPercent(10), Weekly: usage.KnownPercent(20)}
	ok := usage.StateOK(rec)
	if got, present := ok.Record(); !present || got != rec {
		t.Errorf("ok state record: got %+v, %v", got, present)
	}
	if ok.Err() != nil {
		t.Error("ok state should carry no error")
	}

	failed := usage.StateErr(usage.Unparsable(""))
	if failed.Kind() != usage.StateKindErr {
		t.Errorf("err: got %q", failed.Kind())
	}
	if _, present := failed.Record(); present {
		t.Error("error state should carry no record")
	}
	if usage.StateErr(nil).Kind() != usage.StateKindUnknown {
		t.Error("StateErr(nil) should be unknown")
	}
}

func TestState_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(usage.StateErr(usage.ExecutableNotFound("/nope", nil)))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"kind":"error"`) || !strings.Contains(string(data), "executable-not-found") {
		t.Errorf("unexpected JSON: %s", data)
	}
}

func TestAsError(t *testing.T) {
	if usage.AsError(nil) != nil {
		t.Error("AsError(nil) should be nil")
	}
	wrapped := fmt.Errorf("poll: %w", usage.Unparsable("x"))
	if usage.AsError(wrapped).Kind != usage.KindUnparsableOutput {
		t.Error("wrapped usage error should keep its kind")
	}
	if usage.AsError(context.DeadlineExceeded).Kind != usage.KindTimeout {
		t.Error("deadline should map to timeout")
	}
	if usage.AsError(errors.New("boom")).Kind != usage.KindInvocationFailed {
		t.Error("unknown errors should map to invocation-failed")
	}
	if !errors.Is(wrapped, &usage.Error{Kind: usage.KindUnparsableOutput}) {
		t.Error("errors.Is should match on kind")
	}
}

func TestPercent_Clamped(t *testing.T) {
	cases := []struct {
		p    usage.Percent
		want float64
	}{
		{usage.KnownPercent(50), 50},
		{usage.KnownPercent(130), 100},
		{usage.KnownPercent(-4), 0},
		{usage.UnknownPercent("--%"), 0},
	}
	for _, tc := range cases {
		if got := tc.p.Clamped(); got != tc.want {
			t.Errorf("%+v.Clamped(): got %v want %v", tc.p, got, tc.want)
		}
	}
}
