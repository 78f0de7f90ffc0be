// SPDX-License-Identifier: GPL-3.0-or-later

package mime

import "fmt"

// Attachment is one leaf [Part] that carries a filename or an
// "attachment" disposition, flattened out of the part tree for callers
// that just want the file list.
type Attachment struct {
	// ID identifies the attachment within the message: the part's
	// Content-ID/X-Attachment-Id header when present, else a synthetic
	// "smtp_atch_N" assigned in encounter order.
	ID          string
	Filename    string
	ContentType string
	Data        []byte
}

// Attachments walks part's tree and returns every leaf that looks like
// an attachment: an explicit "attachment" Content-Disposition, or a
// non-empty filename. Leaves inside a multipart/alternative branch are
// treated like any other leaf.
func Attachments(part *Part) []Attachment {
	var out []Attachment
	collectAttachments(part, &out)
	return out
}

func collectAttachments(part *Part, out *[]Attachment) {
	if len(part.Children) > 0 {
		for _, child := range part.Children {
			collectAttachments(child, out)
		}
		return
	}
	if part.Disposition != "attachment" && part.Filename == "" {
		return
	}
	id := part.ContentID
	if id == "" {
		id = fmt.Sprintf("smtp_atch_%d", len(*out))
	}
	*out = append(*out, Attachment{
		ID:          id,
		Filename:    part.Filename,
		ContentType: part.ContentType,
		Data:        part.Body,
	})
}

// TextBody returns the first "text/plain" leaf part's decoded body, or
// ok=false if part's tree contains none.
func TextBody(part *Part) (text []byte, ok bool) {
	if len(part.Children) == 0 {
		if part.ContentType == "text/plain" {
			return part.Body, true
		}
		return nil, false
	}
	for _, child := range part.Children {
		if text, ok = TextBody(child); ok {
			return text, true
		}
	}
	return nil, false
}
