// Package upload decides which candidate attachments may be sent with a step.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gobwas/glob"
)

// MaxFileSize is the largest attachment accepted, 5 MiB.
const MaxFileSize int64 = 5 << 20

var allowedTypes = map[string]struct{}{
	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
}

// Used when the client sent no usable content type.
var extensionTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

var (
	allowedNames    = glob.MustCompile("*.{pdf,doc,docx,jpg,jpeg,png}")
	executableNames = glob.MustCompile("*.{exe,msi,bat,cmd,com,scr,dll,sh,ps1,jar}")
)

// File describes one candidate attachment. Open is only needed by callers
// that transmit the content.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error) `json:"-" yaml:"-"`
}

// Rejection explains why a single file was refused.
type Rejection struct {
	File   File
	Reason string
}

func (r *Rejection) Error() string {
	return r.Reason
}

func IsRejection(err error) bool {
	var target *Rejection
	return errors.As(err, &target)
}

type Validator struct {
	maxSize int64
}

func NewValidator() *Validator {
	return &Validator{maxSize: MaxFileSize}
}

// Check returns nil when the file is accepted, or a *Rejection.
func (v *Validator) Check(f File) error {
	name := strings.ToLower(path.Base(f.Name))

	if executableNames.Match(name) || !v.allowedType(f.ContentType, name) {
		return &Rejection{
			File:   f,
			Reason: fmt.Sprintf("File %q is not a supported format. Please upload PDF, Word, or Image files.", f.Name),
		}
	}
	if f.Size > v.maxSize {
		return &Rejection{
			File: f,
			Reason: fmt.Sprintf("File %q is too large (%s). Maximum size allowed is %s.",
				f.Name, humanize.IBytes(uint64(f.Size)), humanize.IBytes(uint64(v.maxSize))),
		}
	}
	return nil
}

// Partition checks every file independently; one bad file does not block
// the others.
func (v *Validator) Partition(files []File) ([]File, []*Rejection) {
	var (
		accepted []File
		rejected []*Rejection
	)
	for _, f := range files {
		if err := v.Check(f); err != nil {
			var r *Rejection
			if errors.As(err, &r) {
				rejected = append(rejected, r)
			}
			continue
		}
		accepted = append(accepted, f)
	}
	return accepted, rejected
}

func (v *Validator) allowedType(contentType, name string) bool {
	mediaType := ""
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			mediaType = mt
		}
	}
	if mediaType == "" || mediaType == "application/octet-stream" {
		return allowedNames.Match(name)
	}
	_, ok := allowedTypes[mediaType]
	return ok
}

// DetectContentType guesses a media type from the file extension.
func DetectContentType(name string) string {
	if ct, ok := extensionTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// FormatSize renders a byte count for people.
func FormatSize(size int64) string {
	if size < 0 {
		size = 0
	}
	return humanize.IBytes(uint64(size))
}
