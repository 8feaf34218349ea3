package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/playconnect/apiserver/internal/services"
	"github.com/playconnect/apiserver/internal/store"
	"github.com/playconnect/apiserver/types"
)

const (
	maxImageBytes  = 5 << 20
	formFieldImage = "image"

	minPlayerAge = 13
	maxPlayerAge = 40
	minHeightCm  = 140
	maxHeightCm  = 220
	minWeightKg  = 40
	maxWeightKg  = 120
	maxBioLength = 500
	minSkill     = 1
	maxSkill     = 100
)

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/webp"}

// PlayerHandler provides profile and search endpoints. Every route is
// behind the access gate; handlers operate on the account the gate
// attached, so a caller can never address a foreign profile.
type PlayerHandler struct {
	playerService *services.PlayerService
}

// NewPlayerHandler constructs a handler with the provided service.
func NewPlayerHandler(playerService *services.PlayerService) *PlayerHandler {
	return &PlayerHandler{playerService: playerService}
}

// PlayerRouter registers player routes on the given router.
func PlayerRouter(r chi.Router, playerService *services.PlayerService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewPlayerHandler(playerService)

	r.Use(authMiddleware)
	r.Get("/profile", handler.GetProfile)
	r.Put("/profile", handler.UpdateProfile)
	r.Post("/profile/image", handler.UploadProfileImage)
	r.Get("/image/*", handler.GetProfileImage)
	r.Get("/search", handler.SearchPlayers)
}

// GetProfile returns the caller's own profile.
func (h *PlayerHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	current, err := h.playerService.Get(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		writeServerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ProfileResponse{User: current})
}

// UpdateProfile applies a partial edit to the caller's own profile.
// Out-of-range or unknown enum values reject the request; absent
// fields are left untouched.
func (h *PlayerHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	var update types.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validateProfileUpdate(update); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.playerService.UpdateProfile(r.Context(), user.ID, update)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		writeServerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{
		Message: "Profile updated successfully",
		User:    updated,
	})
}

// SearchPlayers returns players matching the query filters. Results
// never include email addresses or credential material.
func (h *PlayerHandler) SearchPlayers(w http.ResponseWriter, r *http.Request) {
	filter, err := parsePlayerFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	players, err := h.playerService.Search(r.Context(), filter)
	if err != nil {
		writeServerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Players: players,
		Count:   len(players),
	})
}

// UploadProfileImage stores a new profile picture for the caller.
func (h *PlayerHandler) UploadProfileImage(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	if !h.playerService.ImageUploadsEnabled() {
		writeError(w, http.StatusServiceUnavailable, "Image uploads are not configured")
		return
	}

	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile(formFieldImage)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Image file is required")
		return
	}
	defer file.Close()

	if header.Size > maxImageBytes {
		writeError(w, http.StatusBadRequest, "Image exceeds the 5 MiB limit")
		return
	}

	contentType, reader, err := sniffContentType(file)
	if err != nil {
		writeServerError(w, err)
		return
	}
	if !slices.Contains(allowedImageTypes, contentType) {
		writeError(w, http.StatusBadRequest, "Image must be JPEG, PNG, or WebP")
		return
	}

	updated, err := h.playerService.SaveProfileImage(r.Context(), user.ID, reader, header.Size, contentType)
	if err != nil {
		writeServerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{
		Message: "Profile image updated successfully",
		User:    updated,
	})
}

// GetProfileImage streams a stored profile picture.
func (h *PlayerHandler) GetProfileImage(w http.ResponseWriter, r *http.Request) {
	if !h.playerService.ImageUploadsEnabled() {
		writeError(w, http.StatusServiceUnavailable, "Image uploads are not configured")
		return
	}

	key := chi.URLParam(r, "*")
	if strings.TrimSpace(key) == "" || strings.Contains(key, "..") {
		writeError(w, http.StatusBadRequest, "Invalid image key")
		return
	}

	object, err := h.playerService.OpenProfileImage(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusNotFound, "Image not found")
		return
	}
	defer object.Close()

	contentType, reader, err := sniffContentType(object)
	if err != nil {
		writeError(w, http.StatusNotFound, "Image not found")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}

// ProfileResponse is returned by the profile read endpoint.
type ProfileResponse struct {
	User types.User `json:"user"`
}

// SearchResponse is the search result payload.
type SearchResponse struct {
	Players []types.User `json:"players"`
	Count   int          `json:"count"`
}

func validateProfileUpdate(update types.ProfileUpdate) error {
	if update.Position != nil && !types.ValidPosition(*update.Position) {
		return errors.New("Invalid position")
	}
	if update.DominantFoot != nil && !types.ValidDominantFoot(*update.DominantFoot) {
		return errors.New("Invalid dominant foot")
	}
	if update.Age != nil && (*update.Age < minPlayerAge || *update.Age > maxPlayerAge) {
		return fmt.Errorf("Age must be between %d and %d", minPlayerAge, maxPlayerAge)
	}
	if update.Height != nil && (*update.Height < minHeightCm || *update.Height > maxHeightCm) {
		return fmt.Errorf("Height must be between %d and %d cm", minHeightCm, maxHeightCm)
	}
	if update.Weight != nil && (*update.Weight < minWeightKg || *update.Weight > maxWeightKg) {
		return fmt.Errorf("Weight must be between %d and %d kg", minWeightKg, maxWeightKg)
	}
	if update.Bio != nil && len(*update.Bio) > maxBioLength {
		return fmt.Errorf("Bio must be at most %d characters", maxBioLength)
	}
	if update.Skills != nil {
		for _, name := range types.SkillNames() {
			rating := update.Skills.Rating(name)
			if rating != nil && (*rating < minSkill || *rating > maxSkill) {
				return fmt.Errorf("Skill %s must be between %d and %d", name, minSkill, maxSkill)
			}
		}
	}
	return nil
}

func parsePlayerFilter(r *http.Request) (types.PlayerFilter, error) {
	query := r.URL.Query()
	filter := types.PlayerFilter{
		Position: strings.TrimSpace(query.Get("position")),
	}
	if filter.Position != "" && !types.ValidPosition(filter.Position) {
		return types.PlayerFilter{}, errors.New("Invalid position")
	}

	var err error
	if filter.MinAge, err = parseIntParam(query.Get("minAge")); err != nil {
		return types.PlayerFilter{}, errors.New("Invalid minAge")
	}
	if filter.MaxAge, err = parseIntParam(query.Get("maxAge")); err != nil {
		return types.PlayerFilter{}, errors.New("Invalid maxAge")
	}

	skill := strings.TrimSpace(query.Get("skill"))
	minRating, err := parseIntParam(query.Get("minRating"))
	if err != nil {
		return types.PlayerFilter{}, errors.New("Invalid minRating")
	}

	// The skill threshold only applies when both halves are present.
	if skill != "" && minRating != nil {
		if !slices.Contains(types.SkillNames(), skill) {
			return types.PlayerFilter{}, errors.New("Unknown skill")
		}
		filter.Skill = skill
		filter.MinRating = minRating
	}

	return filter, nil
}

func parseIntParam(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// sniffContentType reads the first bytes of r to detect its media type
// and returns a reader that replays them.
func sniffContentType(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, err
	}
	head = head[:n]
	return http.DetectContentType(head), io.MultiReader(strings.NewReader(string(head)), r), nil
}
