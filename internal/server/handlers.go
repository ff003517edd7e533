package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/railtrack-insight/trackwatch/internal/login"
	"github.com/railtrack-insight/trackwatch/internal/utils"
	"github.com/railtrack-insight/trackwatch/pkg/expiry"
	"github.com/railtrack-insight/trackwatch/pkg/inventory"
	"github.com/railtrack-insight/trackwatch/pkg/notify"
	"github.com/railtrack-insight/trackwatch/pkg/storage"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := s.now()
	if v := q.Get("now"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("now must be YYYY-MM-DD: %w", err))
			return
		}
		now = t
	}

	items, err := s.Source.List(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	rep := expiry.Aggregate(items, now, s.thresholds())
	switch q.Get("sort") {
	case "", "input":
	case "urgency":
		rep.SortByUrgency()
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown sort %q", q.Get("sort")))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

type NotifyRequest struct {
	ItemKey        string `json:"item_key"`
	LotNumber      string `json:"lot_number"`
	RailPoleNumber string `json:"rail_pole_number"`
	Channel        string `json:"channel"`
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req NotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ch, err := notify.ParseChannel(req.Channel)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ItemKey == "" && req.LotNumber == "" {
		writeError(w, http.StatusBadRequest, errors.New("item_key or lot_number is required"))
		return
	}

	items, err := s.Source.List(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	matches := inventory.Match(items, req.ItemKey, req.LotNumber, req.RailPoleNumber)
	switch len(matches) {
	case 0:
		writeError(w, http.StatusNotFound, errors.New("no inventory item matches the request"))
		return
	case 1:
	default:
		writeError(w, http.StatusConflict, fmt.Errorf("%d items match; add rail_pole_number or use item_key", len(matches)))
		return
	}

	d, sendErr := s.Notifier.Send(r.Context(), matches[0], ch)
	s.record(r, d, sendErr)
	if sendErr != nil {
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{"error": sendErr.Error(), "delivery": d})
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) record(r *http.Request, d notify.Delivery, sendErr error) {
	if s.DB == nil {
		return
	}
	n := storage.Notification{
		SentAt:         d.SentAt,
		ItemKey:        d.ItemKey,
		LotNumber:      d.LotNumber,
		ItemType:       d.ItemType,
		RailPoleNumber: d.RailPoleNumber,
		Channel:        string(d.Channel),
		Message:        d.Message,
		Status:         storage.StatusSent,
	}
	if sendErr != nil {
		n.Status = storage.StatusFailed
		n.Error = sendErr.Error()
	}
	if s.Lock != nil {
		if err := s.Lock.LockContext(r.Context()); err != nil {
			utils.Log.Warnf("Could not record notification for %s: %v", d.LotNumber, err)
			return
		}
		defer s.Lock.Unlock()
	}
	if _, err := s.DB.RecordNotification(r.Context(), n); err != nil {
		utils.Log.Warnf("Could not record notification for %s: %v", d.LotNumber, err)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.DB.GetStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func limitParam(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 50, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	return n, nil
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	changes, err := s.DB.ListRecentChanges(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, changes)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	list, err := s.DB.ListNotifications(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Captcha.New())
}

type LoginRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	CaptchaID     string `json:"captcha_id"`
	CaptchaAnswer int    `json:"captcha_answer"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Captcha.Verify(req.CaptchaID, req.CaptchaAnswer); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := login.CheckCredentials(s.LoginUsername, s.LoginPassword, req.Username, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"username": req.Username})
}
