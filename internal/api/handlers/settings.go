package handlers

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tiMaxal/pairs3d/internal/config"
	"github.com/tiMaxal/pairs3d/internal/db"
)

// SettingsHandler exposes the persisted defaults (last folder and
// thresholds) that pre-fill the next job start.
type SettingsHandler struct {
	DB  *sql.DB
	Cfg *config.Config
}

type settingsBody struct {
	LastRoot            string  `json:"last_root"`
	Recurse             bool    `json:"recurse"`
	TimeDeltaMaxSeconds float64 `json:"time_delta_max_seconds"`
	HashDistanceMax     int     `json:"hash_distance_max"`
}

// Get handles GET /api/settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	body := settingsBody{
		LastRoot:            h.Cfg.WatchRoot,
		Recurse:             h.Cfg.Recurse,
		TimeDeltaMaxSeconds: h.Cfg.TimeDeltaMaxSec,
		HashDistanceMax:     h.Cfg.HashDistanceMax,
	}
	settings, err := db.LoadSettings(h.DB)
	if err != nil {
		slog.Error("settings: load", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	if v, ok := settings[db.SettingLastRoot]; ok && v != "" {
		body.LastRoot = v
	}
	if v, ok := settings[db.SettingRecurse]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			body.Recurse = b
		}
	}
	if v, ok := settings[db.SettingTimeDeltaMaxMs]; ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms > 0 {
			body.TimeDeltaMaxSeconds = float64(ms) / 1000
		}
	}
	if v, ok := settings[db.SettingHashDistanceMax]; ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			body.HashDistanceMax = n
		}
	}
	writeJSON(w, http.StatusOK, body)
}

// patchBody uses pointers so only supplied fields are updated.
type patchBody struct {
	LastRoot            *string  `json:"last_root"`
	Recurse             *bool    `json:"recurse"`
	TimeDeltaMaxSeconds *float64 `json:"time_delta_max_seconds"`
	HashDistanceMax     *int     `json:"hash_distance_max"`
}

// Update handles PATCH /api/settings.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req patchBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Malformed JSON body")
		return
	}

	save := func(key, value string) bool {
		if err := db.SaveSetting(h.DB, key, value); err != nil {
			slog.Error("settings: save", "key", key, "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
			return false
		}
		return true
	}

	if req.LastRoot != nil {
		if !save(db.SettingLastRoot, *req.LastRoot) {
			return
		}
	}
	if req.Recurse != nil {
		if !save(db.SettingRecurse, strconv.FormatBool(*req.Recurse)) {
			return
		}
	}
	if req.TimeDeltaMaxSeconds != nil {
		if *req.TimeDeltaMaxSeconds <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_VALUE", "time_delta_max_seconds must be positive")
			return
		}
		ms := int64(*req.TimeDeltaMaxSeconds * 1000)
		if !save(db.SettingTimeDeltaMaxMs, strconv.FormatInt(ms, 10)) {
			return
		}
	}
	if req.HashDistanceMax != nil {
		if *req.HashDistanceMax < 0 || *req.HashDistanceMax > 64 {
			writeError(w, http.StatusBadRequest, "INVALID_VALUE", "hash_distance_max must be between 0 and 64")
			return
		}
		if !save(db.SettingHashDistanceMax, strconv.Itoa(*req.HashDistanceMax)) {
			return
		}
	}

	h.Get(w, r)
}
