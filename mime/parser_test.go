// SPDX-License-Identifier: GPL-3.0-or-later

package mime

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSinglePartTextMessage(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"Subject: hello\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"hi there\r\n"

	part, err := Parse(strings.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "hello", part.Subject)
	assert.Equal(t, "text/plain", part.ContentType)
	assert.Empty(t, part.Children)
	assert.Equal(t, "hi there\r\n", string(part.Body))
}

func TestParseMultipartMixedWithAttachment(t *testing.T) {
	raw := "Subject: report\r\n" +
		"Content-Type: multipart/mixed; boundary=BOUNDARY\r\n" +
		"\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"see attached\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: application/octet-stream\r\n" +
		"Content-Disposition: attachment; filename=report.bin\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		"aGVsbG8=\r\n" +
		"--BOUNDARY--\r\n"

	part, err := Parse(strings.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "multipart/mixed", part.ContentType)
	require.Len(t, part.Children, 2)

	text, ok := TextBody(part)
	require.True(t, ok)
	assert.Equal(t, "see attached\r\n", string(text))

	atts := Attachments(part)
	require.Len(t, atts, 1)
	assert.Equal(t, "report.bin", atts[0].Filename)
	assert.Equal(t, "hello", string(atts[0].Data))
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	assert.Error(t, err)
}
