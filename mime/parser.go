//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on foxcpp-maddy's internal/endpoint/smtp session.go, which
// parses inbound mail with github.com/emersion/go-message/textproto's
// [textproto.ReadHeader]; this package additionally uses the sibling
// top-level github.com/emersion/go-message package for Content-Type /
// Content-Disposition decoding, transfer-decoding (quoted-printable,
// base64), and multipart recursion, and blank-imports
// github.com/emersion/go-message/charset so non-UTF-8 bodies and
// RFC 2047 encoded-word headers decode to UTF-8 automatically.
//
// [message.Entity]'s exact field/method shape cannot be verified from
// the retrieval pack (no vendored source); this file assumes the
// widely-documented surface: [message.Read] returns an *Entity whose
// Body is already transfer-decoded, whose Header wraps textproto.Header
// with ContentType/ContentDisposition/Text accessors, and whose
// MultipartReader method yields child entities for a multipart body.
//

// Package mime parses a raw message into a recursive [Part] tree: header
// fields (RFC 2047-decoded), transfer-decoded body bytes, and, for
// multipart messages, child parts — with attachment extraction as a
// thin projection over that tree.
package mime

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
)

// Part is one node of a parsed message: either a leaf with decoded body
// bytes, or a multipart container with Children.
type Part struct {
	// ContentType is the lower-cased media type, e.g. "text/plain" or
	// "multipart/mixed".
	ContentType string

	// Params holds the Content-Type parameters (charset, boundary, …).
	Params map[string]string

	// Disposition is the Content-Disposition value ("attachment",
	// "inline", or "" if absent).
	Disposition string

	// Filename is the Content-Disposition/Content-Type "filename" (or
	// "name") parameter, decoded, or "" if absent.
	Filename string

	// ContentID is the Content-Id header value with its angle brackets
	// stripped, or the X-Attachment-Id header if Content-Id is absent,
	// or "" if neither is present.
	ContentID string

	// Subject carries the RFC 2047-decoded Subject header, populated
	// only on the top-level [Part].
	Subject string

	// Body holds this part's transfer-decoded bytes; empty for a
	// multipart container (its content lives in Children instead).
	Body []byte

	// Children holds this part's sub-parts, in wire order, for a
	// multipart container.
	Children []*Part
}

// Parse reads one MIME message from r into a [*Part] tree.
func Parse(r io.Reader) (*Part, error) {
	entity, err := message.Read(r)
	if err != nil {
		return nil, fmt.Errorf("mime: parse: %w", err)
	}
	part, err := buildPart(entity)
	if err != nil {
		return nil, err
	}
	if subject, err := entity.Header.Text("Subject"); err == nil {
		part.Subject = subject
	}
	return part, nil
}

func buildPart(entity *message.Entity) (*Part, error) {
	ct, params, err := entity.Header.ContentType()
	if err != nil {
		ct = "text/plain"
		params = map[string]string{}
	}

	disp, dispParams, _ := entity.Header.ContentDisposition()
	filename := dispParams["filename"]
	if filename == "" {
		filename = params["name"]
	}

	cid := strings.Trim(entity.Header.Get("Content-Id"), "<>")
	if cid == "" {
		cid = entity.Header.Get("X-Attachment-Id")
	}

	part := &Part{
		ContentType: ct,
		Params:      params,
		Disposition: disp,
		Filename:    filename,
		ContentID:   cid,
	}

	if mr := entity.MultipartReader(); mr != nil {
		for {
			child, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("mime: parse: multipart: %w", err)
			}
			childPart, err := buildPart(child)
			if err != nil {
				return nil, err
			}
			part.Children = append(part.Children, childPart)
		}
		return part, nil
	}

	data, err := io.ReadAll(entity.Body)
	if err != nil {
		return nil, fmt.Errorf("mime: parse: body: %w", err)
	}
	part.Body = data
	return part, nil
}
