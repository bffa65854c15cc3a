package subtitle

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/guiyumin/streamscribe/internal/core/errs"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		in   string
		want string
	}{
		{
			name: "srt two cues",
			kind: KindSRT,
			in:   "1\n00:00:01,000 --> 00:00:02,000\nA\n\n2\n00:00:02,500 --> 00:00:04,000\nB\n",
			want: "A\nB",
		},
		{
			name: "srt crlf and tags",
			kind: KindSRT,
			in:   "\uFEFF1\r\n00:00:01,000 --> 00:00:02,000\r\n<i>你好</i> 世界\r\n\r\n",
			want: "你好 世界",
		},
		{
			name: "vtt header, note, identifiers",
			kind: KindVTT,
			in: "WEBVTT\nKind: captions\nLanguage: zh-Hans\n\nNOTE generated\nby tool\n\n" +
				"intro\n00:00:01.000 --> 00:00:02.000 align:start\n第一句\n\n" +
				"00:00:02.000 --> 00:00:03.000\n<c.colorE5E5E5>第二句</c>\n",
			want: "第一句\n第二句",
		},
		{
			name: "vtt rolling duplicates",
			kind: KindVTT,
			in: "WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nhello<00:00:01.500><c> there</c>\n\n" +
				"00:00:02.000 --> 00:00:03.000\nhello there\nnext line\n",
			want: "hello there\nnext line",
		},
		{
			name: "ass dialogue",
			kind: KindASS,
			in: "[Script Info]\nTitle: x\n\n[Events]\nFormat: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n" +
				"Dialogue: 0,0:00:01.00,0:00:02.00,Default,,0,0,0,,{\\an8}第一行\\N第二行\n" +
				"Comment: 0,0:00:02.00,0:00:03.00,Default,,0,0,0,,ignored\n" +
				"Dialogue: 0,0:00:03.00,0:00:04.00,Default,,0,0,0,,a, with commas\n",
			want: "第一行\n第二行\na, with commas",
		},
		{
			name: "plain text",
			kind: KindText,
			in:   "  one \n\n two\n",
			want: "one\ntwo",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeText(tt.in, tt.kind))
		})
	}
}

func TestNormalizeFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	gbk, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte("1\n00:00:01,000 --> 00:00:02,000\n中文字幕\n"))
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "/tmp/a.zh.srt", gbk, 0o644))

	got, err := Normalize(fs, "/tmp/a.zh.srt", KindUnknown)
	require.NoError(t, err)
	assert.Equal(t, "中文字幕", got)
}

func TestNormalizeErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := Normalize(fs, "/missing.srt", KindSRT)
	assert.True(t, errs.Is(err, errs.KindArtifactNotFound))

	require.NoError(t, afero.WriteFile(fs, "/a.xml", []byte("<x/>"), 0o644))
	_, err = Normalize(fs, "/a.xml", KindUnknown)
	assert.True(t, errs.Is(err, errs.KindUnsupportedInput))
}

func TestKindFromExt(t *testing.T) {
	assert.Equal(t, KindSRT, KindFromExt(".SRT"))
	assert.Equal(t, KindASS, KindFromExt("ssa"))
	assert.Equal(t, KindVTT, KindOf("/x/y.en.vtt"))
	assert.Equal(t, KindUnknown, KindFromExt(".xml"))
}

func TestWriteText(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, WriteText(fs, "/out/deep/a.txt", "A\nB"))
	b, err := afero.ReadFile(fs, "/out/deep/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "A\nB", string(b))
}
