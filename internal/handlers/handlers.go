// Package handlers exposes the preference pipeline over HTTP.
package handlers

import (
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/nfnt/resize"

	"github.com/colorpref/colorpref/internal/hexcolor"
	"github.com/colorpref/colorpref/internal/logging"
	"github.com/colorpref/colorpref/internal/model"
	"github.com/colorpref/colorpref/internal/pipeline"
)

// maxImageBytes caps /predict/image uploads.
const maxImageBytes = 10 << 20

// averageSize is the edge length images are downscaled to before
// averaging; small enough to make averaging cheap, large enough to keep
// the resampling stable.
const averageSize = 32

// Handler serves the pipeline's HTTP surface.
type Handler struct {
	srv      *model.Server
	validate *validator.Validate
}

// NewHandler wires the handlers to the model server.
func NewHandler(srv *model.Server) *Handler {
	return &Handler{
		srv:      srv,
		validate: validator.New(),
	}
}

// Health reports service and model status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.HealthResponse{
		Status:   "healthy",
		Restored: h.srv.Restored(),
		Trained:  h.srv.Trained(),
	})
}

// Train runs one training run over the posted labeled colors.
func (h *Handler) Train(w http.ResponseWriter, r *http.Request) {
	var req model.TrainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "liked and disliked must each contain at least one color")
		return
	}

	resp, err := h.srv.Train(r.Context(), req.Liked, req.Disliked)
	if err != nil {
		h.writeTrainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Predict returns the preference prediction for one hex color.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	var req model.PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "color is required")
		return
	}

	resp, err := h.srv.Predict(req.Color)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logging.Error().Err(err).Msg("prediction failed")
		writeError(w, http.StatusInternalServerError, "prediction failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// PredictFromImage extracts the average color of an uploaded image and
// predicts preference for it. The form field name is "image".
func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no image file provided; use 'image' as the form field name")
		return
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid image; supported formats: JPEG, PNG, GIF")
		return
	}
	logging.Debug().
		Str("file", header.Filename).
		Str("format", format).
		Int64("size", header.Size).
		Msg("image upload received")

	rgb := averageColor(img)
	resp, err := h.srv.PredictRGB(rgb)
	if err != nil {
		logging.Error().Err(err).Msg("prediction failed")
		writeError(w, http.StatusInternalServerError, "prediction failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeTrainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrInvalidInput), errors.Is(err, pipeline.ErrNoData):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrTrainingInProgress):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logging.Error().Err(err).Msg("training failed")
		writeError(w, http.StatusInternalServerError, "training failed")
	}
}

// averageColor downscales the image and averages its pixels into one
// normalized RGB vector.
func averageColor(img image.Image) hexcolor.RGB {
	small := resize.Thumbnail(averageSize, averageSize, img, resize.Lanczos3)
	bounds := small.Bounds()

	var sum [hexcolor.Channels]float64
	var count float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := small.At(x, y).RGBA()
			sum[0] += float64(r) / 65535.0
			sum[1] += float64(g) / 65535.0
			sum[2] += float64(b) / 65535.0
			count++
		}
	}
	if count == 0 {
		return hexcolor.RGB{}
	}
	return hexcolor.RGB{sum[0] / count, sum[1] / count, sum[2] / count}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("encoding response failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}
