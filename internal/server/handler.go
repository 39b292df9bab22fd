package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/howard-nolan/blogsmith/internal/blog"
	"github.com/howard-nolan/blogsmith/internal/provider"
)

// maxRequestBodyBytes caps POST bodies. A blog request is a few hundred bytes.
const maxRequestBodyBytes = 64 * 1024

// rootInfo is the fixed body of GET /.
type rootInfo struct {
	Message   string   `json:"message"`
	Endpoints []string `json:"endpoints"`
	Docs      string   `json:"docs"`
}

// errorDetail is the body of every non-validation error response.
type errorDetail struct {
	Detail string `json:"detail"`
}

// fieldError is one entry in a 422 response, laid out the way browser
// clients of this API already parse it.
type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

type validationErrors struct {
	Detail []fieldError `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleHealth is a liveness probe. It never touches the upstream provider.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rootInfo{
		Message:   "AI Blog Generator API",
		Endpoints: []string{"/health", "/generate-blog"},
		Docs:      "/docs",
	})
}

// handleGenerateBlog handles POST /generate-blog.
//
// Three outcomes, exactly one response each: 422 when the body doesn't
// validate (the generator is never called), 502 when anything goes wrong
// upstream, 200 with the generated text otherwise.
func (s *Server) handleGenerateBlog(w http.ResponseWriter, r *http.Request) {
	// Start from the defaults so fields the client leaves out keep them.
	req := blog.NewRequest()

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := decodeJSON(r.Body, &req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorDetail{
				Detail: fmt.Sprintf("request body exceeds %d bytes", tooBig.Limit),
			})
			return
		}
		writeJSON(w, http.StatusUnprocessableEntity, validationErrors{Detail: []fieldError{decodeFieldError(err)}})
		return
	}

	if fields := s.validateRequest(req); len(fields) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, validationErrors{Detail: fields})
		return
	}

	res, err := s.generator.Generate(r.Context(), req)
	if err != nil {
		// Everything that fails here is reported as an upstream error, even
		// an error type the generator didn't wrap.
		var upErr *blog.UpstreamError
		if !errors.As(err, &upErr) {
			err = &blog.UpstreamError{Provider: provider.GroqDisplayName, Err: err}
		}
		s.log.WarnContext(r.Context(), "generate-blog failed",
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		writeJSON(w, http.StatusBadGateway, errorDetail{Detail: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// validateRequest runs the struct tags on req and converts failures into
// 422 entries.
func (s *Server) validateRequest(req blog.Request) []fieldError {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []fieldError{{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error"}}
	}

	out := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		entry := fieldError{Loc: []string{"body", fe.Field()}}
		switch fe.Tag() {
		case "required":
			entry.Msg = "Field required"
			entry.Type = "missing"
		default:
			entry.Msg = fmt.Sprintf("failed %q validation", fe.Tag())
			entry.Type = "value_error"
		}
		out = append(out, entry)
	}
	return out
}

// errTrailingData is reported when the body holds more than one JSON value.
var errTrailingData = errors.New("unexpected data after the JSON body")

// decodeJSON decodes exactly one JSON value from body into v.
func decodeJSON(body io.Reader, v any) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		return err
	}

	var extra json.RawMessage
	err := dec.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return err
	}
	return errTrailingData
}

// decodeFieldError describes a JSON decoding failure as a single 422 entry.
func decodeFieldError(err error) fieldError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		// An empty field means the body itself isn't a JSON object.
		if typeErr.Field == "" {
			return fieldError{
				Loc:  []string{"body"},
				Msg:  "Input should be a valid dictionary or object to extract fields from",
				Type: "type_error",
			}
		}
		return fieldError{
			Loc:  []string{"body", typeErr.Field},
			Msg:  fmt.Sprintf("Input should be a valid %s", typeErr.Type.Kind()),
			Type: "type_error",
		}
	}
	if errors.Is(err, io.EOF) {
		return fieldError{Loc: []string{"body"}, Msg: "Field required", Type: "missing"}
	}
	return fieldError{Loc: []string{"body"}, Msg: "JSON decode error: " + err.Error(), Type: "json_invalid"}
}
