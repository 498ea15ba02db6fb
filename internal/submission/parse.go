// Package submission turns an inbound multipart form into a domain.JobSubmission.
// It has no dependency on the HTTP framework so it can be exercised directly.
package submission

import (
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/osvaldoandrade/jobgate/pkg/domain"
)

// Fields holds the validated scalar fields and the still-unread file header.
type Fields struct {
	File   *multipart.FileHeader
	Method string
	Lags   int
	Window int
}

// Validate type-checks the form. It never opens the uploaded file.
func Validate(form *multipart.Form) (Fields, error) {
	if form == nil {
		return Fields{}, &domain.ValidationError{Field: domain.FieldFile, Reason: "multipart form required"}
	}

	files := form.File[domain.FieldFile]
	if len(files) == 0 || files[0] == nil {
		return Fields{}, &domain.ValidationError{Field: domain.FieldFile, Reason: "required"}
	}
	fh := files[0]
	if fh.Size <= 0 {
		return Fields{}, &domain.ValidationError{Field: domain.FieldFile, Reason: "must not be empty"}
	}

	method, ok := formValue(form, domain.FieldMethod)
	if !ok || strings.TrimSpace(method) == "" {
		return Fields{}, &domain.ValidationError{Field: domain.FieldMethod, Reason: "required"}
	}
	lags, err := intValue(form, domain.FieldLags)
	if err != nil {
		return Fields{}, err
	}
	window, err := intValue(form, domain.FieldWindow)
	if err != nil {
		return Fields{}, err
	}

	return Fields{File: fh, Method: method, Lags: lags, Window: window}, nil
}

// ReadFile loads the upload into memory, keeping the client's filename.
func ReadFile(fh *multipart.FileHeader) (domain.NamedFile, error) {
	f, err := fh.Open()
	if err != nil {
		return domain.NamedFile{}, &domain.PayloadReadError{Filename: fh.Filename, Err: err}
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return domain.NamedFile{}, &domain.PayloadReadError{Filename: fh.Filename, Err: err}
	}
	return domain.NamedFile{Name: fh.Filename, Content: b}, nil
}

// FromForm validates the form and reads the file. A JobSubmission is only
// returned when all four fields are present and well typed.
func FromForm(form *multipart.Form) (domain.JobSubmission, error) {
	fields, err := Validate(form)
	if err != nil {
		return domain.JobSubmission{}, err
	}
	file, err := ReadFile(fields.File)
	if err != nil {
		return domain.JobSubmission{}, err
	}
	return domain.JobSubmission{
		File:   file,
		Method: fields.Method,
		Lags:   fields.Lags,
		Window: fields.Window,
	}, nil
}

func formValue(form *multipart.Form, name string) (string, bool) {
	vals := form.Value[name]
	if len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

func intValue(form *multipart.Form, name string) (int, error) {
	raw, ok := formValue(form, name)
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, &domain.ValidationError{Field: name, Reason: "required"}
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &domain.ValidationError{Field: name, Reason: "must be an integer"}
	}
	return n, nil
}
