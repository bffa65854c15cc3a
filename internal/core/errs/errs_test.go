package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"msg only", &Error{Kind: KindToolFatal, Msg: "exit 1"}, "exit 1"},
		{"op and msg", &Error{Kind: KindToolFatal, Op: "yt-dlp", Msg: "exit 1"}, "yt-dlp: exit 1"},
		{"wrapped", &Error{Kind: KindConfig, Op: "whisper", Err: errors.New("not found")}, "whisper: not found"},
		{"msg and wrapped", &Error{Kind: KindConfig, Op: "x", Msg: "a", Err: errors.New("b")}, "x: a: b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestKindOfThroughWrapping(t *testing.T) {
	base := New(KindArtifactNotFound, "resolve", "no transcript for %s", "a.mp3")
	wrapped := fmt.Errorf("transcribe: %w", base)

	assert.Equal(t, KindArtifactNotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindArtifactNotFound))
	assert.False(t, Is(nil, KindArtifactNotFound))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestFrom(t *testing.T) {
	assert.Nil(t, From(nil, KindToolFatal, "op"))

	e := New(KindConfig, "cfg", "missing")
	assert.Same(t, e, From(fmt.Errorf("ctx: %w", e), KindToolFatal, "op"))

	got := From(errors.New("boom"), KindAcquisitionFailed, "op")
	assert.Equal(t, KindAcquisitionFailed, got.Kind)
	assert.Equal(t, "op: boom", got.Error())
}
