package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"detectserver/internal/logger"
	"detectserver/internal/model"
	"detectserver/internal/service"
)

// formField is the multipart field carrying the image.
const formField = "file"

// StatusFor maps a pipeline failure to its HTTP status.
func StatusFor(err error) int {
	switch service.KindOf(err) {
	case service.KindUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case service.KindDecodeFailure:
		return http.StatusUnprocessableEntity
	case service.KindInvalidModelSelector:
		return http.StatusBadRequest
	case service.KindModelInvocation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PredictHandler runs the detection pipeline on the uploaded file and
// streams back the annotated JPEG.
func PredictHandler(manager *service.Manager, maxUploadBytes int64, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		selector, err := model.ParseModelSelector(r.URL.Query().Get("model"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if maxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		}
		upload, closer, err := readUpload(r)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
				logger.Warning("Upload rejected: larger than %d bytes", maxUploadBytes)
				writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", maxUploadBytes))
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if closer != nil {
			defer closer.Close()
		}

		prediction, err := manager.Predict(r.Context(), upload, selector)
		if err != nil {
			writeError(w, StatusFor(err), err.Error())
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("X-Detections", strconv.Itoa(len(prediction.Detections)))
		w.WriteHeader(http.StatusOK)
		_, streamErr := io.Copy(w, prediction.Body)
		manager.Complete(prediction, streamErr)
	}
}

// readUpload extracts the file field. A part sent without a filename is
// still passed on, with an empty name, so that it is rejected as an
// unsupported file rather than as a missing one.
func readUpload(r *http.Request) (model.Upload, io.Closer, error) {
	file, header, err := r.FormFile(formField)
	if err == nil {
		return model.Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Content:     file,
		}, file, nil
	}

	if errors.Is(err, http.ErrMissingFile) && r.MultipartForm != nil {
		if values := r.MultipartForm.Value[formField]; len(values) > 0 {
			return model.Upload{Content: strings.NewReader(values[0])}, nil, nil
		}
	}
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return model.Upload{}, nil, fmt.Errorf("multipart field %q with an image file is required", formField)
	}
	return model.Upload{}, nil, err
}
