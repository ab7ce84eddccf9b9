package sniffer

import (
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectHead(t *testing.T) {
	tests := []struct {
		name string
		head []byte
		want MediaType
	}{
		{"jpeg", []byte{0xff, 0xd8, 0xff, 0xe0}, TypeJPEG},
		{"png", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0}, TypePNG},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), TypeWEBP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := DetectHead(tt.head)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Type)
		})
	}
}

func TestDetectHeadRejectsUnknown(t *testing.T) {
	_, err := DetectHead([]byte("GIF89a......"))
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = DetectHead(nil)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestMimeTypeFromHTTP(t *testing.T) {
	header := http.Header{}
	header.Set("Content-Type", "image/jpeg; charset=binary")
	assert.Equal(t, "image/jpeg", MimeTypeFromHTTP(header))

	assert.Equal(t, "", MimeTypeFromHTTP(http.Header{}))
}

// Upload reads the declared type off a multipart file header, whose Header
// field is a textproto.MIMEHeader needing an explicit http.Header conversion.
func TestMimeTypeFromMultipartHeader(t *testing.T) {
	fh := &multipart.FileHeader{
		Filename: "room.png",
		Header:   textproto.MIMEHeader{"Content-Type": []string{"image/png"}},
	}
	assert.Equal(t, "image/png", MimeTypeFromHTTP(http.Header(fh.Header)))
}
