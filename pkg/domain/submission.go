package domain

import (
	"bytes"
	"mime/multipart"
	"strconv"
)

// Multipart field names expected by the job runner, in the order they are written.
const (
	FieldFile   = "file"
	FieldMethod = "method"
	FieldLags   = "lags"
	FieldWindow = "window"
)

// NamedFile is an uploaded payload together with the filename the client sent.
type NamedFile struct {
	Name    string
	Content []byte
}

// JobSubmission is a fully validated inbound request. Method is opaque to the
// gateway; Lags and Window are only known to be integers.
type JobSubmission struct {
	File   NamedFile
	Method string
	Lags   int
	Window int
}

// OutboundJobRequest is the multipart body sent to the runner. It is built
// fresh for every forward and never reused.
type OutboundJobRequest struct {
	body        []byte
	contentType string
}

func (r OutboundJobRequest) Body() []byte        { return r.body }
func (r OutboundJobRequest) ContentType() string { return r.contentType }

// Encode writes the submission as multipart/form-data with a generated boundary.
func (s JobSubmission) Encode() (OutboundJobRequest, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile(FieldFile, s.File.Name)
	if err != nil {
		return OutboundJobRequest{}, err
	}
	if _, err := part.Write(s.File.Content); err != nil {
		return OutboundJobRequest{}, err
	}
	if err := w.WriteField(FieldMethod, s.Method); err != nil {
		return OutboundJobRequest{}, err
	}
	if err := w.WriteField(FieldLags, strconv.Itoa(s.Lags)); err != nil {
		return OutboundJobRequest{}, err
	}
	if err := w.WriteField(FieldWindow, strconv.Itoa(s.Window)); err != nil {
		return OutboundJobRequest{}, err
	}
	if err := w.Close(); err != nil {
		return OutboundJobRequest{}, err
	}
	return OutboundJobRequest{body: buf.Bytes(), contentType: w.FormDataContentType()}, nil
}

// RunnerResponse is whatever the runner answered, relayed as-is.
type RunnerResponse struct {
	StatusCode  int
	Body        []byte
	ContentType string
}
