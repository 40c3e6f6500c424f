package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/autolot/internal/common"
	"github.com/dmitrijs2005/autolot/internal/server/imageset"
	"github.com/dmitrijs2005/autolot/internal/server/models"
	"github.com/dmitrijs2005/autolot/internal/server/services"
)

const (
	imagesField     = "images"
	imageOrderField = "imagesOrder"

	// formOverhead is the allowance for scalar fields and multipart framing
	// on top of the image bytes.
	formOverhead = 1 << 20
	// maxFieldBytes caps a single scalar form field.
	maxFieldBytes = 64 << 10
)

type vehicleResponse struct {
	Vehicle   *models.Vehicle `json:"vehicle"`
	Submitted int             `json:"submitted"`
	Stored    int             `json:"stored"`
}

type inventoryResponse struct {
	Vehicles   []*models.Vehicle `json:"vehicles"`
	Page       int               `json:"page"`
	PerPage    int               `json:"perPage"`
	Total      int               `json:"total"`
	TotalPages int               `json:"totalPages"`
	Makes      []string          `json:"makes"`
	Years      []int             `json:"years"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
}

func (s *HTTPServer) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) listVehicles(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r.URL.Query())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	inv, err := s.vehicles.List(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := inventoryResponse{
		Vehicles:   inv.Vehicles,
		Page:       inv.Page,
		PerPage:    inv.PerPage,
		Total:      inv.Total,
		TotalPages: inv.TotalPages,
		Makes:      inv.Makes,
		Years:      inv.Years,
	}
	if resp.Vehicles == nil {
		resp.Vehicles = []*models.Vehicle{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) featuredVehicle(w http.ResponseWriter, r *http.Request) {
	v, err := s.vehicles.Featured(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *HTTPServer) getVehicle(w http.ResponseWriter, r *http.Request) {
	v, err := s.vehicles.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("ETag", etag(v.Version))
	writeJSON(w, http.StatusOK, v)
}

func (s *HTTPServer) login(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.allow(r) {
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	var req loginRequest
	if isJSON(r) {
		if err := json.NewDecoder(io.LimitReader(r.Body, formOverhead)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed login request")
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, formOverhead)
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "malformed login request")
			return
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	}

	token, err := s.admin.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{AccessToken: token, TokenType: "Bearer"})
}

func (s *HTTPServer) createVehicle(w http.ResponseWriter, r *http.Request) {
	values, uploads, err := s.readForm(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	fields, err := parseVehicleFields(values)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.vehicles.Create(r.Context(), services.CreateVehicleRequest{Fields: fields, Uploads: uploads})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Location", "/vehicles/"+res.Vehicle.ID)
	w.Header().Set("ETag", etag(res.Vehicle.Version))
	writeJSON(w, http.StatusCreated, vehicleResponse{Vehicle: res.Vehicle, Submitted: res.Submitted, Stored: res.Stored})
}

func (s *HTTPServer) editVehicle(w http.ResponseWriter, r *http.Request) {
	expected, err := parseIfMatch(r.Header.Get("If-Match"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	values, uploads, err := s.readForm(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	patch, err := parseVehiclePatch(values)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	req := services.EditVehicleRequest{
		ID:              r.PathValue("id"),
		Patch:           patch,
		Uploads:         uploads,
		ExpectedVersion: expected,
	}
	if _, ok := values[imageOrderField]; ok {
		req.HasOrder = true
		req.ImageOrder = imageset.ParseOrder(values.Get(imageOrderField))
	}

	res, err := s.vehicles.Edit(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("ETag", etag(res.Vehicle.Version))
	writeJSON(w, http.StatusOK, vehicleResponse{Vehicle: res.Vehicle, Submitted: res.Submitted, Stored: res.Stored})
}

func (s *HTTPServer) deleteVehicle(w http.ResponseWriter, r *http.Request) {
	if err := s.vehicles.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readForm parses a multipart or url-encoded body. Multipart bodies are
// walked part by part, so a batch over the file cap or a file over the
// size cap is rejected as soon as it shows up, before the rest of the body
// is read.
func (s *HTTPServer) readForm(w http.ResponseWriter, r *http.Request) (url.Values, []models.RawUpload, error) {
	limit := int64(s.opts.MaxFiles)*s.opts.MaxFileBytes + formOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := r.ParseForm(); err != nil {
			return nil, nil, formError(err)
		}
		return r.PostForm, nil, nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, nil, formError(err)
	}

	values := url.Values{}
	uploads := []models.RawUpload{}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, formError(err)
		}

		name := part.FormName()
		switch {
		case name == "":
			part.Close()

		case part.FileName() == "":
			data, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
			if err != nil {
				return nil, nil, formError(err)
			}
			if len(data) > maxFieldBytes {
				return nil, nil, fmt.Errorf("%w: field %q is too long", common.ErrorValidation, name)
			}
			values.Add(name, string(data))

		case name == imagesField:
			if s.opts.MaxFiles > 0 && len(uploads) >= s.opts.MaxFiles {
				return nil, nil, fmt.Errorf("%w: more than %d files", common.ErrBatchTooLarge, s.opts.MaxFiles)
			}
			u, err := s.readPart(part, len(uploads))
			if err != nil {
				return nil, nil, err
			}
			uploads = append(uploads, u)

		default:
			part.Close()
		}
	}

	return values, uploads, nil
}

// readPart loads one image part, reading at most one byte past the size
// cap. The part is not drained on rejection.
func (s *HTTPServer) readPart(part *multipart.Part, index int) (models.RawUpload, error) {
	var src io.Reader = part
	if s.opts.MaxFileBytes > 0 {
		src = io.LimitReader(part, s.opts.MaxFileBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return models.RawUpload{}, formError(err)
	}
	if s.opts.MaxFileBytes > 0 && int64(len(data)) > s.opts.MaxFileBytes {
		return models.RawUpload{}, fmt.Errorf("%w: file %d (%q) exceeds %d bytes",
			common.ErrFileTooLarge, index, part.FileName(), s.opts.MaxFileBytes)
	}

	return models.RawUpload{
		Data:      data,
		MediaType: part.Header.Get("Content-Type"),
		Filename:  part.FileName(),
		Size:      int64(len(data)),
	}, nil
}

func formError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return fmt.Errorf("%w: request body exceeds %d bytes", common.ErrBatchTooLarge, tooBig.Limit)
	}
	return fmt.Errorf("%w: malformed form: %v", common.ErrorValidation, err)
}

func parseIfMatch(h string) (int64, error) {
	h = strings.TrimSpace(h)
	if h == "" || h == "*" {
		return 0, nil
	}
	h = strings.TrimPrefix(h, "W/")
	h = strings.Trim(h, `"`)
	v, err := strconv.ParseInt(h, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: If-Match must be a listing version", common.ErrorValidation)
	}
	return v, nil
}

func etag(version int64) string {
	return strconv.Quote(strconv.FormatInt(version, 10))
}

func isJSON(r *http.Request) bool {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mediaType == "application/json"
}

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, common.ErrBatchTooLarge), errors.Is(err, common.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrVersionConflict), errors.Is(err, common.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
