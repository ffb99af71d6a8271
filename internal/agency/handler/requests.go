package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"resqnet/internal/agency/models"
	"resqnet/internal/documents"
	dErrors "resqnet/pkg/domain-errors"
)

// saveRequest is the parsed multipart form of POST /agency/registration.
type saveRequest struct {
	Draft   bool
	Fields  models.Fields
	Uploads map[models.DocumentSlot]*documents.Upload
	files   []multipart.File
}

// Close releases the uploaded file handles.
func (r *saveRequest) Close() {
	for _, f := range r.files {
		_ = f.Close()
	}
}

// parseSaveRequest reads the form. isDraft defaults to true and is matched
// case-insensitively; services_offered is a ", " separated list; an empty
// team_size means unknown.
func parseSaveRequest(r *http.Request, maxMemory int64) (*saveRequest, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, dErrors.New(dErrors.CodeValidation, "request body too large")
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			return nil, dErrors.New(dErrors.CodeBadRequest, "invalid multipart form")
		}
		if err := r.ParseForm(); err != nil {
			return nil, dErrors.New(dErrors.CodeBadRequest, "invalid form")
		}
	}

	form := func(key string) string { return strings.TrimSpace(r.FormValue(key)) }

	req := &saveRequest{
		Draft:   strings.EqualFold(valueOr(form("isDraft"), "true"), "true"),
		Uploads: make(map[models.DocumentSlot]*documents.Upload),
	}

	teamSize, err := parseTeamSize(form("team_size"))
	if err != nil {
		return nil, err
	}

	req.Fields = models.Fields{
		AgencyName:         form("agency_name"),
		AgencyType:         models.AgencyType(form("agency_type")),
		AgencyAddress:      form("agency_address"),
		City:               form("city"),
		State:              form("state"),
		PinCode:            form("pin_code"),
		TeamSize:           teamSize,
		ServicesOffered:    splitServices(r.FormValue("services_offered")),
		PAN:                form("pan"),
		GST:                form("gst"),
		NGODarpanID:        form("ngo_darpan_id"),
		CIN:                form("cin"),
		MedicalRegNumber:   form("medical_reg_number"),
		OwnerAadhaarMasked: form("owner_aadhaar_masked"),
		OwnerPANMasked:     form("owner_pan_masked"),
		OwnerPhone:         form("owner_phone"),
		PhoneVerified:      strings.EqualFold(form("phone_verified"), "true"),
	}

	for _, slot := range models.DocumentSlots {
		file, header, err := r.FormFile(string(slot))
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
				continue
			}
			req.Close()
			return nil, dErrors.New(dErrors.CodeBadRequest, "invalid file field "+string(slot))
		}
		req.files = append(req.files, file)
		req.Uploads[slot] = &documents.Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Content:     file,
		}
	}
	return req, nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func parseTeamSize(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	// Bounded to the INTEGER column.
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || v < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "team_size must be a non-negative number")
	}
	n := int(v)
	return &n, nil
}

func splitServices(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ", ")
}
