package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/transitwatch/verifier/internal/types"
)

// NotifyService decides whether a published incident should be surfaced
// to a user and delivers accepted incidents to the notification gateway.
type NotifyService struct {
	gatewayURL string
	client     *retryablehttp.Client
	logger     *logrus.Logger
}

func NewNotifyService(gatewayURL string) *NotifyService {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil
	return &NotifyService{
		gatewayURL: gatewayURL,
		client:     client,
		logger:     logrus.WithField("service", "notify").Logger,
	}
}

// ShouldNotify applies the targeting rules: active journey membership
// beats favorites, severity escalates the priority one step, and an
// incident with no lines never notifies.
func ShouldNotify(incidentLines, activeJourney, favorites []string, class types.IncidentClass) types.NotificationDecision {
	if len(incidentLines) == 0 {
		return types.NotificationDecision{}
	}

	if intersects(incidentLines, activeJourney) {
		if class == types.ClassSevere {
			return types.NotificationDecision{ShouldNotify: true, Priority: types.NotifyCritical}
		}
		return types.NotificationDecision{ShouldNotify: true, Priority: types.NotifyHigh}
	}

	if intersects(incidentLines, favorites) {
		if class == types.ClassSevere {
			return types.NotificationDecision{ShouldNotify: true, Priority: types.NotifyHigh}
		}
		return types.NotificationDecision{ShouldNotify: true, Priority: types.NotifyMedium}
	}

	return types.NotificationDecision{}
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// ExtractFavoriteLineIDs collects the line IDs of always-notify favorite
// routes, deduplicated, first occurrence order preserved.
func ExtractFavoriteLineIDs(routes []types.FavoriteRoute) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, route := range routes {
		if !route.NotifyAlways {
			continue
		}
		for _, id := range route.LineIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

type notificationPayload struct {
	Incident *types.Incident     `json:"incident"`
	Class    types.IncidentClass `json:"class"`
}

// Dispatch pushes a published incident to the notification gateway, which
// owns per-user fan-out. Incidents without affected lines are dropped.
func (s *NotifyService) Dispatch(ctx context.Context, incident *types.Incident) error {
	if len(incident.LineIDs) == 0 {
		s.logger.WithField("incident_id", incident.ID).
			Debug("incident has no lines, skipping notification")
		return nil
	}
	if s.gatewayURL == "" {
		return nil
	}

	body, err := json.Marshal(notificationPayload{
		Incident: incident,
		Class:    types.ClassForKind(incident.Kind),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, s.gatewayURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver notification: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("notification gateway returned status %d", resp.StatusCode)
	}

	s.logger.WithFields(logrus.Fields{
		"incident_id": incident.ID,
		"lines":       len(incident.LineIDs),
	}).Info("notification dispatched")
	return nil
}
