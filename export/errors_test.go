package export

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessageIncludesCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := Upstream("fetch info cards", cause)
	assert.Equal(t, "fetch info cards: connection refused", err.Error())
	assert.True(t, errors.Is(err, cause))
}

func TestErrorWithoutCause(t *testing.T) {
	t.Parallel()

	err := InvalidMessage("missing required field %s", "eventId")
	assert.Equal(t, "missing required field eventId", err.Error())
	assert.NoError(t, err.Unwrap())
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	type testCase struct {
		name string
		err  error
		want Kind
	}
	cases := []testCase{
		{
			name: "upstream",
			err:  Upstream("fetch", errors.New("boom")),
			want: KindTransientUpstream,
		},
		{
			name: "storage_write",
			err:  StorageWrite("upload", errors.New("boom")),
			want: KindStorageWrite,
		},
		{
			name: "wrapped_domain_error",
			err:  fmt.Errorf("handle job: %w", UnsupportedReport("no builder")),
			want: KindUnsupportedReport,
		},
		{
			name: "unknown_error_defaults_to_transient",
			err:  errors.New("something else"),
			want: KindTransientUpstream,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}

func TestAcknowledgeable(t *testing.T) {
	t.Parallel()

	type testCase struct {
		name string
		err  error
		want bool
	}
	cases := []testCase{
		{name: "invalid_message", err: InvalidMessage("bad job"), want: true},
		{name: "unsupported_report", err: UnsupportedReport("no builder"), want: true},
		{name: "transient_upstream", err: Upstream("fetch", errors.New("boom")), want: false},
		{name: "storage_write", err: StorageWrite("upload", errors.New("boom")), want: false},
		{name: "storage_read", err: StorageRead("download", errors.New("boom")), want: false},
		{name: "notifier_failure", err: NotifierFailure("publish", errors.New("boom")), want: false},
		{name: "plain_error", err: errors.New("boom"), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Acknowledgeable(tc.err))
		})
	}
}

func TestErrorsAsFindsDomainError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("outer: %w", StorageRead("download workbook", errors.New("no such key")))
	var de *Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, KindStorageRead, de.Kind)
	assert.Equal(t, "download workbook", de.Message)
}
