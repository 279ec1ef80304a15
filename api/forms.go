package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/rpupo63/portfolio-backend/errs"
	"github.com/rpupo63/portfolio-backend/services"
	"github.com/rpupo63/portfolio-backend/storage"
)

const (
	imageField           = "image"
	multipartMemoryBytes = 32 << 20
)

// projectForm is a decoded create/update request. close releases the upload and any temp files.
type projectForm struct {
	fields services.ProjectFields
	upload *storage.Upload
	close  func()
}

// parseProjectForm reads multipart, JSON or urlencoded bodies into the same field set.
// A key that was not sent stays nil, so updates can tell "absent" from "blank".
func parseProjectForm(r *http.Request) (projectForm, error) {
	form := projectForm{close: func() {}}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		return parseMultipart(r)
	case "application/json":
		fields, err := parseJSONFields(r.Body)
		if err != nil {
			return form, err
		}
		form.fields = fields
		return form, nil
	default:
		if err := r.ParseForm(); err != nil {
			return form, bodyError("form", err)
		}
		form.fields = fieldsFromValues(r.PostForm)
		return form, nil
	}
}

func parseMultipart(r *http.Request) (projectForm, error) {
	form := projectForm{close: func() {}}
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		return form, bodyError("multipart", err)
	}
	mf := r.MultipartForm
	form.close = func() { _ = mf.RemoveAll() }
	form.fields = fieldsFromValues(mf.Value)

	for name, files := range mf.File {
		if name != imageField || len(files) > 1 {
			form.close()
			return projectForm{close: func() {}}, errs.NewValidationError(name, "Unexpected field")
		}
	}

	files := mf.File[imageField]
	if len(files) == 0 {
		return form, nil
	}
	upload, closeFile, err := openUpload(files[0])
	if err != nil {
		form.close()
		return projectForm{close: func() {}}, err
	}
	removeAll := form.close
	form.upload = upload
	form.close = func() {
		closeFile()
		removeAll()
	}
	return form, nil
}

func openUpload(fh *multipart.FileHeader) (*storage.Upload, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return nil, nil, errs.NewMalformedPayloadError("multipart", err)
	}
	return &storage.Upload{
		Body:     f,
		Filename: fh.Filename,
		MIMEType: fh.Header.Get("Content-Type"),
		Size:     fh.Size,
	}, func() { _ = f.Close() }, nil
}

// fieldsFromValues uses the first value of every known key.
func fieldsFromValues(values map[string][]string) services.ProjectFields {
	get := func(key string) *string {
		v, ok := values[key]
		if !ok {
			return nil
		}
		s := ""
		if len(v) > 0 {
			s = v[0]
		}
		return &s
	}
	return services.ProjectFields{
		Title:        get("title"),
		Description:  get("description"),
		GithubLink:   get("githubLink"),
		VideoLink:    get("videoLink"),
		Technologies: get("technologies"),
	}
}

// parseJSONFields accepts technologies either as a JSON-encoded string or as an array.
func parseJSONFields(body io.Reader) (services.ProjectFields, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return services.ProjectFields{}, nil
		}
		return services.ProjectFields{}, bodyError("json", err)
	}

	fields := services.ProjectFields{
		Title:       jsonText(raw, "title"),
		Description: jsonText(raw, "description"),
		GithubLink:  jsonText(raw, "githubLink"),
		VideoLink:   jsonText(raw, "videoLink"),
	}
	if v, ok := raw["technologies"]; ok {
		trimmed := bytes.TrimSpace(v)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			s := string(trimmed)
			fields.Technologies = &s
		} else {
			fields.Technologies = jsonText(raw, "technologies")
		}
	}
	return fields, nil
}

// jsonText returns strings as-is, null as "", and any other value as its JSON text.
func jsonText(raw map[string]json.RawMessage, key string) *string {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return &s
	}
	text := strings.TrimSpace(string(v))
	if text == "null" {
		text = ""
	}
	return &text
}

func bodyError(payloadType string, err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return errs.NewMaxBodySizeExceededError(maxErr.Limit)
	}
	return errs.NewMalformedPayloadError(payloadType, err)
}
