package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"terrenos/internal/adapters/geocode"
	"terrenos/internal/app"
	"terrenos/internal/domain"
)

type Handlers struct {
	Catalog *app.CatalogService
	Mod     *app.ModerationService
	Geo     domain.Geocoder
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers, a *Auth) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/plots", h.listPublicPlots)

	s.mux.Group(func(r chi.Router) {
		r.Use(a.RequireUser)
		r.Post("/v1/listings", h.createListing)
		r.Patch("/v1/listings/{id}/photos", h.setListingPhotos)
	})

	s.mux.Route("/v1/admin", func(r chi.Router) {
		r.Use(a.RequireUser, a.RequireAdmin)
		r.Get("/plots", h.adminListPlots)
		r.Post("/plots", h.createPlots)
		r.Patch("/plots", h.patchPlot)
		r.Delete("/plots", h.deletePlot)
		r.Post("/plots/import", h.importPlots)
		r.Get("/listings", h.listSubmissions)
		r.Patch("/listings", h.decideSubmission)
		r.Post("/geocode", h.geocodeAddress)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// writeError maps domain errors to statuses; everything else passes the
// upstream message through as a 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeProblem(w, http.StatusConflict, "Conflict", "submission already decided")
	case errors.Is(err, domain.ErrNoValidRows):
		writeProblem(w, http.StatusBadRequest, "Invalid Input", "no valid rows found")
	default:
		writeProblem(w, http.StatusInternalServerError, "Upstream Error", err.Error())
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

/********** wire types **********/

type plotJSON struct {
	ID          string    `json:"id,omitempty"`
	Title       string    `json:"title"`
	Location    string    `json:"location"`
	PriceUSD    float64   `json:"price_usd"`
	AreaM2      float64   `json:"area_m2"`
	Status      string    `json:"status,omitempty"`
	Type        string    `json:"type,omitempty"`
	Description *string   `json:"description,omitempty"`
	ImageURL    *string   `json:"image_url,omitempty"`
	ImageURLs   []string  `json:"image_urls,omitempty"`
	Lat         *float64  `json:"lat,omitempty"`
	Lng         *float64  `json:"lng,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

func toPlotJSON(p domain.Plot) plotJSON {
	return plotJSON{
		ID: p.ID, Title: p.Title, Location: p.Location,
		PriceUSD: p.PriceUSD, AreaM2: p.AreaM2,
		Status: p.Status, Type: p.Type,
		Description: p.Description, ImageURL: p.ImageURL, ImageURLs: p.ImageURLs,
		Lat: p.Lat, Lng: p.Lng, CreatedAt: p.CreatedAt,
	}
}

func fromPlotJSON(in plotJSON) domain.Plot {
	return domain.Plot{
		Title: in.Title, Location: in.Location,
		PriceUSD: in.PriceUSD, AreaM2: in.AreaM2,
		Status: in.Status, Type: in.Type,
		Description: in.Description, ImageURL: in.ImageURL, ImageURLs: in.ImageURLs,
		Lat: in.Lat, Lng: in.Lng,
	}
}

type submissionJSON struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Location    string    `json:"location"`
	PriceUSD    float64   `json:"price_usd"`
	AreaM2      float64   `json:"area_m2"`
	Type        string    `json:"type"`
	DealType    string    `json:"deal_type"`
	Description *string   `json:"description,omitempty"`
	Status      string    `json:"status"`
	ImageURLs   []string  `json:"image_urls"`
	Lat         *float64  `json:"lat,omitempty"`
	Lng         *float64  `json:"lng,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toSubmissionJSON(s domain.Submission) submissionJSON {
	imgs := s.ImageURLs
	if imgs == nil {
		imgs = []string{}
	}
	return submissionJSON{
		ID: s.ID, UserID: s.UserID, Title: s.Title, Location: s.Location,
		PriceUSD: s.PriceUSD, AreaM2: s.AreaM2, Type: s.Type, DealType: s.DealType,
		Description: s.Description, Status: s.Status, ImageURLs: imgs,
		Lat: s.Lat, Lng: s.Lng, CreatedAt: s.CreatedAt,
	}
}

/********** public catalog **********/

func (h *Handlers) listPublicPlots(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Catalog.ListPlots(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]plotJSON, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPlotJSON(p))
	}
	resp := map[string]any{"plots": out}

	etag, body := calcETagAndBody(resp)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write plots body")
	}
}

/********** admin catalog CRUD **********/

func (h *Handlers) adminListPlots(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Catalog.ListPlots(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]plotJSON, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPlotJSON(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"plots": out})
}

func (h *Handlers) createPlots(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Plot  *plotJSON  `json:"plot"`
		Plots []plotJSON `json:"plots"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", "malformed request body")
		return
	}
	incoming := payload.Plots
	if len(incoming) == 0 && payload.Plot != nil {
		incoming = []plotJSON{*payload.Plot}
	}
	if len(incoming) == 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid Input", "no plots provided")
		return
	}

	ps := make([]domain.Plot, 0, len(incoming))
	for _, in := range incoming {
		ps = append(ps, fromPlotJSON(in))
	}
	count, err := h.Catalog.CreatePlots(r.Context(), ps)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *Handlers) patchPlot(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ID      string `json:"id"`
		Updates struct {
			Title       *string  `json:"title"`
			Location    *string  `json:"location"`
			PriceUSD    *float64 `json:"price_usd"`
			AreaM2      *float64 `json:"area_m2"`
			Status      *string  `json:"status"`
			Type        *string  `json:"type"`
			Description *string  `json:"description"`
			ImageURL    *string  `json:"image_url"`
			Lat         *float64 `json:"lat"`
			Lng         *float64 `json:"lng"`
		} `json:"updates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", "malformed request body")
		return
	}
	if payload.ID == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid Input", "missing plot id")
		return
	}
	u := payload.Updates
	patch := domain.PlotPatch{
		Title: u.Title, Location: u.Location,
		PriceUSD: u.PriceUSD, AreaM2: u.AreaM2,
		Status: u.Status, Type: u.Type,
		Description: u.Description, ImageURL: u.ImageURL,
		Lat: u.Lat, Lng: u.Lng,
	}
	if err := h.Catalog.UpdatePlot(r.Context(), payload.ID, patch); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handlers) deletePlot(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", "malformed request body")
		return
	}
	if payload.ID == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid Input", "missing plot id")
		return
	}
	if err := h.Catalog.DeletePlot(r.Context(), payload.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// importPlots accepts a multipart CSV upload, runs it through the row
// normalizer, and reports only the persisted count.
func (h *Handlers) importPlots(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Upload", "expected multipart form with a file field")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Upload", "missing file field")
		return
	}
	defer file.Close()

	count, err := h.Catalog.ImportCSV(r.Context(), file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

/********** moderation **********/

func (h *Handlers) listSubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.Mod.ListSubmissions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]submissionJSON, 0, len(subs))
	for _, s := range subs {
		out = append(out, toSubmissionJSON(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"listings": out})
}

func (h *Handlers) decideSubmission(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ID     string `json:"id"`
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", "malformed request body")
		return
	}
	if payload.ID == "" || payload.Action == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid Input", "missing action or id")
		return
	}
	if payload.Action != "approve" && payload.Action != "reject" {
		writeProblem(w, http.StatusBadRequest, "Invalid Input", "action must be approve or reject")
		return
	}
	if err := h.Mod.Decide(r.Context(), payload.ID, payload.Action); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

/********** geocoding **********/

func (h *Handlers) geocodeAddress(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", "malformed request body")
		return
	}
	if payload.Address == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid Input", "missing address")
		return
	}

	lat, lng, err := h.Geo.Search(r.Context(), payload.Address)
	switch {
	case err == nil:
	case errors.Is(err, geocode.ErrNoResults):
		writeProblem(w, http.StatusNotFound, "Not Found", "no results found")
		return
	case errors.Is(err, geocode.ErrBadCoords):
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid Coordinates", "provider returned unusable coordinates")
		return
	default:
		writeProblem(w, http.StatusBadGateway, "Geocoding Failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"lat": lat, "lng": lng})
}

/********** user submissions **********/

func (h *Handlers) createListing(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFrom(r.Context())
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "valid session required")
		return
	}

	var payload struct {
		Title       string   `json:"title"`
		Location    string   `json:"location"`
		PriceUSD    float64  `json:"price_usd"`
		AreaM2      float64  `json:"area_m2"`
		Type        string   `json:"type"`
		DealType    string   `json:"deal_type"`
		Description *string  `json:"description"`
		Lat         *float64 `json:"lat"`
		Lng         *float64 `json:"lng"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", "malformed request body")
		return
	}

	sub, err := h.Mod.CreateSubmission(r.Context(), domain.Submission{
		UserID:      u.ID,
		Title:       payload.Title,
		Location:    payload.Location,
		PriceUSD:    payload.PriceUSD,
		AreaM2:      payload.AreaM2,
		Type:        payload.Type,
		DealType:    payload.DealType,
		Description: payload.Description,
		Lat:         payload.Lat,
		Lng:         payload.Lng,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNoValidRows) {
			writeProblem(w, http.StatusBadRequest, "Invalid Input", "title, location, price and area are required")
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": sub.ID})
}

func (h *Handlers) setListingPhotos(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFrom(r.Context())
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "valid session required")
		return
	}
	id := chi.URLParam(r, "id")

	var payload struct {
		ImageURLs []string `json:"image_urls"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", "malformed request body")
		return
	}
	if err := h.Mod.SetPhotos(r.Context(), id, u.ID, payload.ImageURLs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
