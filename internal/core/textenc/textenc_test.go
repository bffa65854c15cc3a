package textenc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/guiyumin/streamscribe/internal/core/errs"
)

func TestDecode(t *testing.T) {
	gbk, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte("视频标题: 测试"))
	require.NoError(t, err)

	tests := []struct {
		name      string
		raw       []byte
		codecs    []Codec
		want      string
		wantCodec string
		wantErr   bool
	}{
		{name: "empty", raw: nil, want: "", wantCodec: "utf-8"},
		{name: "utf-8", raw: []byte("hello 世界"), want: "hello 世界", wantCodec: "utf-8"},
		{name: "utf-8 bom", raw: []byte("\xEF\xBB\xBFWEBVTT"), want: "WEBVTT", wantCodec: "utf-8"},
		{name: "gbk falls through", raw: gbk, want: "视频标题: 测试", wantCodec: "gb18030"},
		{name: "garbage default", raw: []byte{0xFF, 0xFF, 0xFF}, want: "<3 bytes of undecodable output>", wantErr: true},
		{name: "garbage lenient", raw: []byte{0xFF, 0xFF}, codecs: Lenient, want: "ÿÿ", wantCodec: "latin1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, codec, err := Decode(tt.raw, tt.codecs...)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				assert.True(t, errs.Is(err, errs.KindDecodeFailure))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCodec, codec)
		})
	}
}

func TestUTF16(t *testing.T) {
	le := []byte{0xFF, 0xFE, 'h', 0, 'i', 0}
	got, ok := UTF16(le)
	require.True(t, ok)
	assert.Equal(t, "hi", got)

	_, ok = UTF16([]byte("hi"))
	assert.False(t, ok)
}

func TestStripBOM(t *testing.T) {
	assert.Equal(t, "abc", StripBOM("\uFEFFabc"))
	assert.Equal(t, "abc", StripBOM("abc"))
}
