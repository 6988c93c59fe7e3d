package sniffer

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
)

type MediaType string

const (
	TypePDF  MediaType = "pdf"
	TypeZIP  MediaType = "zip"
	TypePNG  MediaType = "png"
	TypeJPEG MediaType = "jpeg"
)

var ErrUnknownType = errors.New("unsupported file type")

type Result struct {
	Type MediaType
	MIME string
	// Ext is the file extension used when the upload name has none.
	Ext string
}

// declaredAliases maps every accepted declared content type to the type the
// content must sniff as.
var declaredAliases = map[string]MediaType{
	"application/pdf":              TypePDF,
	"application/zip":              TypeZIP,
	"application/x-zip-compressed": TypeZIP,
	"image/png":                    TypePNG,
	"image/jpeg":                   TypeJPEG,
	"image/jpg":                    TypeJPEG,
}

func Detect(r io.Reader) (Result, []byte, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Result{}, nil, err
	}
	head = head[:n]

	result, err := DetectHead(head)
	return result, head, err
}

func DetectHead(head []byte) (Result, error) {
	if len(head) == 0 {
		return Result{}, ErrUnknownType
	}

	if isPDF(head) {
		return Result{Type: TypePDF, MIME: "application/pdf", Ext: "pdf"}, nil
	}
	if isZIP(head) {
		return Result{Type: TypeZIP, MIME: "application/zip", Ext: "zip"}, nil
	}
	if isPNG(head) {
		return Result{Type: TypePNG, MIME: "image/png", Ext: "png"}, nil
	}
	if isJPEG(head) {
		return Result{Type: TypeJPEG, MIME: "image/jpeg", Ext: "jpg"}, nil
	}

	return Result{}, ErrUnknownType
}

// Accepts reports whether a declared content type is allowed for content
// sniffed as r. An empty or generic declaration defers to the sniffed type.
func Accepts(declared string, r Result) bool {
	if declared == "" || declared == "application/octet-stream" {
		return true
	}
	want, ok := declaredAliases[strings.ToLower(declared)]
	return ok && want == r.Type
}

func isPDF(head []byte) bool {
	// Some producers emit a few junk bytes before the header.
	idx := bytes.Index(head, []byte("%PDF-"))
	return idx >= 0 && idx < 16
}

func isZIP(head []byte) bool {
	if len(head) < 4 || head[0] != 'P' || head[1] != 'K' {
		return false
	}
	// Local file header, empty archive, or spanned archive.
	return (head[2] == 3 && head[3] == 4) ||
		(head[2] == 5 && head[3] == 6) ||
		(head[2] == 7 && head[3] == 8)
}

func isJPEG(head []byte) bool {
	return len(head) > 3 &&
		head[0] == 0xff &&
		head[1] == 0xd8 &&
		head[2] == 0xff
}

func isPNG(head []byte) bool {
	pngMagic := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	return len(head) >= len(pngMagic) && bytes.Equal(head[:len(pngMagic)], pngMagic)
}

func MimeTypeFromHTTP(header http.Header) string {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		return ""
	}
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		return strings.TrimSpace(contentType[:idx])
	}
	return strings.TrimSpace(contentType)
}
